package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// OrderbookStore persists orderbook contract records.
type OrderbookStore interface {
	Put(ctx context.Context, ob Orderbook) error
	Get(ctx context.Context, addr common.Address) (Orderbook, error)
}

// TokenStore persists ERC20 metadata records.
type TokenStore interface {
	Put(ctx context.Context, token ERC20) error
	Get(ctx context.Context, addr common.Address) (ERC20, error)
}

// TransactionStore persists per-transaction metadata.
type TransactionStore interface {
	Put(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, hash common.Hash) (Transaction, error)
}

// VaultStore persists vaults. Put is an upsert: the same content-derived id
// always addresses the same row.
type VaultStore interface {
	Put(ctx context.Context, vault Vault) error
	Get(ctx context.Context, id common.Hash) (Vault, error)
	ListByOwner(ctx context.Context, owner common.Address, opts ListOpts) ([]Vault, error)
}

// VaultEventStore persists deposit/withdrawal audit records.
type VaultEventStore interface {
	PutDeposit(ctx context.Context, d Deposit) error
	PutWithdrawal(ctx context.Context, w Withdrawal) error
	ListDepositsByVault(ctx context.Context, vaultID common.Hash, opts ListOpts) ([]Deposit, error)
	ListWithdrawalsByVault(ctx context.Context, vaultID common.Hash, opts ListOpts) ([]Withdrawal, error)
}

// OrderStore persists orders and their add/remove audit records.
type OrderStore interface {
	Put(ctx context.Context, order Order) error
	Get(ctx context.Context, id common.Hash) (Order, error)
	ListByOwner(ctx context.Context, owner common.Address, opts ListOpts) ([]Order, error)
	ListActive(ctx context.Context, orderbook common.Address, opts ListOpts) ([]Order, error)
	PutAdd(ctx context.Context, rec AddOrder) error
	PutRemove(ctx context.Context, rec RemoveOrder) error
}

// TradeStore persists trades and their vault balance changes.
type TradeStore interface {
	PutTrade(ctx context.Context, trade Trade) error
	PutBalanceChange(ctx context.Context, change TradeVaultBalanceChange) error
	GetTrade(ctx context.Context, id common.Hash) (Trade, error)
	ListByOrder(ctx context.Context, orderID common.Hash, opts ListOpts) ([]Trade, error)
	ListChangesByVault(ctx context.Context, vaultID common.Hash, opts ListOpts) ([]TradeVaultBalanceChange, error)
}

// ClearStore persists settlement summaries and bounty records.
type ClearStore interface {
	PutClear(ctx context.Context, clear Clear) error
	PutBounty(ctx context.Context, bounty ClearBounty) error
	GetClear(ctx context.Context, id common.Hash) (Clear, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Clear, error)
}

// StagingStore persists the transient announce-half data of a settlement.
// Get returns ErrNotFound for unknown keys; Delete on an unknown key is a
// no-op.
type StagingStore interface {
	Put(ctx context.Context, staging ClearStaging) error
	Get(ctx context.Context, id common.Hash) (ClearStaging, error)
	Delete(ctx context.Context, id common.Hash) error
}

// CheckpointStore persists the ingestion cursor.
type CheckpointStore interface {
	Put(ctx context.Context, cp Checkpoint) error
	Get(ctx context.Context) (Checkpoint, error)
}

// Stores bundles one store per entity. The engine writes the ledger through
// it; implementations may bind the whole bundle to one database transaction.
type Stores struct {
	Orderbooks   OrderbookStore
	Tokens       TokenStore
	Transactions TransactionStore
	Vaults       VaultStore
	VaultEvents  VaultEventStore
	Orders       OrderStore
	Trades       TradeStore
	Clears       ClearStore
	Staging      StagingStore
}
