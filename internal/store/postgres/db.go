package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quaylabs/obindexer/internal/domain"
)

// DB is the query surface shared by pgxpool.Pool and pgx.Tx. Stores are
// built over it so the same code runs standalone or inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewStores builds the full entity store bundle over db.
func NewStores(db DB) domain.Stores {
	return domain.Stores{
		Orderbooks:   NewOrderbookStore(db),
		Tokens:       NewTokenStore(db),
		Transactions: NewTransactionStore(db),
		Vaults:       NewVaultStore(db),
		VaultEvents:  NewVaultEventStore(db),
		Orders:       NewOrderStore(db),
		Trades:       NewTradeStore(db),
		Clears:       NewClearStore(db),
		Staging:      NewStagingStore(db),
	}
}

// TxRunner executes a function with every store bound to one database
// transaction. The pipeline commits each processing pass and its checkpoint
// through it, so the cursor can never run ahead of the entity writes it
// accounts for: vault balance updates are read-modify-write and would
// double-count if a crash let a half-committed range be re-applied.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner over the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx runs fn inside a single transaction. fn's error rolls everything
// back, including the checkpoint.
func (r *TxRunner) InTx(ctx context.Context, fn func(domain.Stores, domain.CheckpointStore) error) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewStores(tx), NewCheckpointStore(tx))
	})
	if err != nil {
		return fmt.Errorf("postgres: tx: %w", err)
	}
	return nil
}
