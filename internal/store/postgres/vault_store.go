package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// VaultStore implements domain.VaultStore using PostgreSQL.
type VaultStore struct {
	db DB
}

var _ domain.VaultStore = (*VaultStore)(nil)

// NewVaultStore creates a store over the given query surface.
func NewVaultStore(db DB) *VaultStore {
	return &VaultStore{db: db}
}

func (s *VaultStore) Put(ctx context.Context, vault domain.Vault) error {
	const query = `
		INSERT INTO vaults (id, orderbook, owner, vault_id, token, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance`

	_, err := s.db.Exec(ctx, query,
		hashBytes(vault.ID), addrBytes(vault.Orderbook), addrBytes(vault.Owner),
		hashBytes(vault.VaultID), addrBytes(vault.Token), floatBytes(vault.Balance))
	if err != nil {
		return fmt.Errorf("postgres: put vault %s: %w", vault.ID.Hex(), err)
	}
	return nil
}

func (s *VaultStore) Get(ctx context.Context, id common.Hash) (domain.Vault, error) {
	const query = `
		SELECT id, orderbook, owner, vault_id, token, balance
		FROM vaults WHERE id = $1`

	row := s.db.QueryRow(ctx, query, hashBytes(id))
	vault, err := scanVault(row)
	if err != nil {
		return domain.Vault{}, notFound(err)
	}
	return vault, nil
}

func (s *VaultStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Vault, error) {
	const query = `
		SELECT id, orderbook, owner, vault_id, token, balance
		FROM vaults WHERE owner = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, addrBytes(owner), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vaults by owner: %w", err)
	}
	defer rows.Close()

	var out []domain.Vault
	for rows.Next() {
		vault, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan vault: %w", err)
		}
		out = append(out, vault)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVault(row scanner) (domain.Vault, error) {
	var (
		vault                              domain.Vault
		id, orderbook, owner, vid, token, balance []byte
	)
	if err := row.Scan(&id, &orderbook, &owner, &vid, &token, &balance); err != nil {
		return domain.Vault{}, err
	}
	vault.ID = toHash(id)
	vault.Orderbook = toAddr(orderbook)
	vault.Owner = toAddr(owner)
	vault.VaultID = toHash(vid)
	vault.Token = toAddr(token)
	vault.Balance = toFloat(balance)
	return vault, nil
}

// limitOf clamps a ListOpts limit to a sane default for SQL.
func limitOf(opts domain.ListOpts) int {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		return 1000
	}
	return opts.Limit
}
