package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// ClearStore implements domain.ClearStore using PostgreSQL.
type ClearStore struct {
	db DB
}

var _ domain.ClearStore = (*ClearStore)(nil)

// NewClearStore creates a store over the given query surface.
func NewClearStore(db DB) *ClearStore {
	return &ClearStore{db: db}
}

func (s *ClearStore) PutClear(ctx context.Context, clear domain.Clear) error {
	const query = `
		INSERT INTO clears (
			id, orderbook, sender,
			alice_input, alice_output, bob_input, bob_output,
			alice_bounty, bob_bounty, alice_bounty_id, bob_bounty_id,
			tx_hash, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(clear.ID), addrBytes(clear.Orderbook), addrBytes(clear.Sender),
		floatBytes(clear.AliceInput), floatBytes(clear.AliceOutput),
		floatBytes(clear.BobInput), floatBytes(clear.BobOutput),
		floatBytes(clear.AliceBounty), floatBytes(clear.BobBounty),
		nilableHash(clear.AliceBountyID), nilableHash(clear.BobBountyID),
		hashBytes(clear.TxHash), clear.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put clear %s: %w", clear.ID.Hex(), err)
	}
	return nil
}

func (s *ClearStore) PutBounty(ctx context.Context, bounty domain.ClearBounty) error {
	const query = `
		INSERT INTO clear_bounties (id, vault_id, sender, amount, old_balance, new_balance, tx_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(bounty.ID), hashBytes(bounty.VaultID), addrBytes(bounty.Sender),
		floatBytes(bounty.Amount), floatBytes(bounty.OldBalance),
		floatBytes(bounty.NewBalance), hashBytes(bounty.TxHash), bounty.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put bounty %s: %w", bounty.ID.Hex(), err)
	}
	return nil
}

const clearColumns = `
	id, orderbook, sender,
	alice_input, alice_output, bob_input, bob_output,
	alice_bounty, bob_bounty, alice_bounty_id, bob_bounty_id,
	tx_hash, ts`

func (s *ClearStore) GetClear(ctx context.Context, id common.Hash) (domain.Clear, error) {
	query := `SELECT ` + clearColumns + ` FROM clears WHERE id = $1`

	row := s.db.QueryRow(ctx, query, hashBytes(id))
	clear, err := scanClear(row)
	if err != nil {
		return domain.Clear{}, notFound(err)
	}
	return clear, nil
}

func (s *ClearStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Clear, error) {
	query := `SELECT ` + clearColumns + `
		FROM clears
		ORDER BY ts DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list clears: %w", err)
	}
	defer rows.Close()

	var out []domain.Clear
	for rows.Next() {
		clear, err := scanClear(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan clear: %w", err)
		}
		out = append(out, clear)
	}
	return out, rows.Err()
}

func scanClear(row scanner) (domain.Clear, error) {
	var (
		clear                            domain.Clear
		id, orderbook, sender, tx        []byte
		aIn, aOut, bIn, bOut             []byte
		aBounty, bBounty, aBID, bBID     []byte
	)
	err := row.Scan(&id, &orderbook, &sender,
		&aIn, &aOut, &bIn, &bOut,
		&aBounty, &bBounty, &aBID, &bBID,
		&tx, &clear.Timestamp)
	if err != nil {
		return domain.Clear{}, err
	}
	clear.ID = toHash(id)
	clear.Orderbook = toAddr(orderbook)
	clear.Sender = toAddr(sender)
	clear.AliceInput = toFloat(aIn)
	clear.AliceOutput = toFloat(aOut)
	clear.BobInput = toFloat(bIn)
	clear.BobOutput = toFloat(bOut)
	clear.AliceBounty = toFloat(aBounty)
	clear.BobBounty = toFloat(bBounty)
	clear.AliceBountyID = toNilableHash(aBID)
	clear.BobBountyID = toNilableHash(bBID)
	clear.TxHash = toHash(tx)
	return clear, nil
}
