package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// VaultEventStore implements domain.VaultEventStore using PostgreSQL. All
// writes are keyed on content-derived event ids, so replays are no-ops.
type VaultEventStore struct {
	db DB
}

var _ domain.VaultEventStore = (*VaultEventStore)(nil)

// NewVaultEventStore creates a store over the given query surface.
func NewVaultEventStore(db DB) *VaultEventStore {
	return &VaultEventStore{db: db}
}

func (s *VaultEventStore) PutDeposit(ctx context.Context, d domain.Deposit) error {
	const query = `
		INSERT INTO deposits (id, vault_id, tx_hash, sender, token, amount, old_balance, new_balance, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(d.ID), hashBytes(d.VaultID), hashBytes(d.TxHash), addrBytes(d.Sender),
		addrBytes(d.Token), floatBytes(d.Amount), floatBytes(d.OldBalance),
		floatBytes(d.NewBalance), d.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put deposit %s: %w", d.ID.Hex(), err)
	}
	return nil
}

func (s *VaultEventStore) PutWithdrawal(ctx context.Context, w domain.Withdrawal) error {
	const query = `
		INSERT INTO withdrawals (id, vault_id, tx_hash, sender, token, target_amount, amount, old_balance, new_balance, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(w.ID), hashBytes(w.VaultID), hashBytes(w.TxHash), addrBytes(w.Sender),
		addrBytes(w.Token), floatBytes(w.TargetAmount), floatBytes(w.Amount),
		floatBytes(w.OldBalance), floatBytes(w.NewBalance), w.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put withdrawal %s: %w", w.ID.Hex(), err)
	}
	return nil
}

func (s *VaultEventStore) ListDepositsByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.Deposit, error) {
	const query = `
		SELECT id, vault_id, tx_hash, sender, token, amount, old_balance, new_balance, ts
		FROM deposits WHERE vault_id = $1
		ORDER BY ts
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, hashBytes(vaultID), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits: %w", err)
	}
	defer rows.Close()

	var out []domain.Deposit
	for rows.Next() {
		var (
			d                        domain.Deposit
			id, vid, tx, sender, tok []byte
			amount, oldB, newB       []byte
		)
		if err := rows.Scan(&id, &vid, &tx, &sender, &tok, &amount, &oldB, &newB, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan deposit: %w", err)
		}
		d.ID, d.VaultID, d.TxHash = toHash(id), toHash(vid), toHash(tx)
		d.Sender, d.Token = toAddr(sender), toAddr(tok)
		d.Amount, d.OldBalance, d.NewBalance = toFloat(amount), toFloat(oldB), toFloat(newB)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *VaultEventStore) ListWithdrawalsByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.Withdrawal, error) {
	const query = `
		SELECT id, vault_id, tx_hash, sender, token, target_amount, amount, old_balance, new_balance, ts
		FROM withdrawals WHERE vault_id = $1
		ORDER BY ts
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, hashBytes(vaultID), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		var (
			w                          domain.Withdrawal
			id, vid, tx, sender, tok   []byte
			target, amount, oldB, newB []byte
		)
		if err := rows.Scan(&id, &vid, &tx, &sender, &tok, &target, &amount, &oldB, &newB, &w.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan withdrawal: %w", err)
		}
		w.ID, w.VaultID, w.TxHash = toHash(id), toHash(vid), toHash(tx)
		w.Sender, w.Token = toAddr(sender), toAddr(tok)
		w.TargetAmount, w.Amount = toFloat(target), toFloat(amount)
		w.OldBalance, w.NewBalance = toFloat(oldB), toFloat(newB)
		out = append(out, w)
	}
	return out, rows.Err()
}
