package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	db DB
}

var _ domain.TransactionStore = (*TransactionStore)(nil)

// NewTransactionStore creates a store over the given query surface.
func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Put(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO transactions (hash, block_number, ts, sender)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(tx.Hash), tx.BlockNumber, tx.Timestamp, addrBytes(tx.From))
	if err != nil {
		return fmt.Errorf("postgres: put transaction %s: %w", tx.Hash.Hex(), err)
	}
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, hash common.Hash) (domain.Transaction, error) {
	const query = `
		SELECT hash, block_number, ts, sender
		FROM transactions WHERE hash = $1`

	var (
		tx     domain.Transaction
		h      []byte
		sender []byte
	)
	err := s.db.QueryRow(ctx, query, hashBytes(hash)).
		Scan(&h, &tx.BlockNumber, &tx.Timestamp, &sender)
	if err != nil {
		return domain.Transaction{}, notFound(err)
	}
	tx.Hash = toHash(h)
	tx.From = toAddr(sender)
	return tx, nil
}
