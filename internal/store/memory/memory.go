// Package memory provides in-memory implementations of every store
// interface. They back the engine tests and the replay mode, where the whole
// ledger is rebuilt from archived logs without touching Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// db holds the shared state behind every typed store. Event processing is
// single-threaded; the lock only guards concurrent API reads.
type db struct {
	mu sync.RWMutex

	orderbooks   map[common.Address]domain.Orderbook
	tokens       map[common.Address]domain.ERC20
	transactions map[common.Hash]domain.Transaction
	vaults       map[common.Hash]domain.Vault
	deposits     []domain.Deposit
	withdrawals  []domain.Withdrawal
	orders       map[common.Hash]domain.Order
	orderAdds    []domain.AddOrder
	orderRemoves []domain.RemoveOrder
	trades       map[common.Hash]domain.Trade
	tradeOrder   []common.Hash // insertion order of trade ids
	changes      []domain.TradeVaultBalanceChange
	clears       map[common.Hash]domain.Clear
	clearOrder   []common.Hash
	bounties     []domain.ClearBounty
	staging      map[common.Hash]domain.ClearStaging
	checkpoint   *domain.Checkpoint
}

// Stores bundles one typed store per entity, all over the same state.
type Stores struct {
	db *db

	Orderbooks   *OrderbookStore
	Tokens       *TokenStore
	Transactions *TransactionStore
	Vaults       *VaultStore
	VaultEvents  *VaultEventStore
	Orders       *OrderStore
	Trades       *TradeStore
	Clears       *ClearStore
	Staging      *StagingStore
	Checkpoints  *CheckpointStore
}

// New returns an empty store bundle.
func New() *Stores {
	d := &db{
		orderbooks:   make(map[common.Address]domain.Orderbook),
		tokens:       make(map[common.Address]domain.ERC20),
		transactions: make(map[common.Hash]domain.Transaction),
		vaults:       make(map[common.Hash]domain.Vault),
		orders:       make(map[common.Hash]domain.Order),
		trades:       make(map[common.Hash]domain.Trade),
		clears:       make(map[common.Hash]domain.Clear),
		staging:      make(map[common.Hash]domain.ClearStaging),
	}
	return &Stores{
		db:           d,
		Orderbooks:   &OrderbookStore{d},
		Tokens:       &TokenStore{d},
		Transactions: &TransactionStore{d},
		Vaults:       &VaultStore{d},
		VaultEvents:  &VaultEventStore{d},
		Orders:       &OrderStore{d},
		Trades:       &TradeStore{d},
		Clears:       &ClearStore{d},
		Staging:      &StagingStore{d},
		Checkpoints:  &CheckpointStore{d},
	}
}

// Bundle returns the entity stores in the shape the engine consumes.
func (s *Stores) Bundle() domain.Stores {
	return domain.Stores{
		Orderbooks:   s.Orderbooks,
		Tokens:       s.Tokens,
		Transactions: s.Transactions,
		Vaults:       s.Vaults,
		VaultEvents:  s.VaultEvents,
		Orders:       s.Orders,
		Trades:       s.Trades,
		Clears:       s.Clears,
		Staging:      s.Staging,
	}
}

// InTx runs fn against the stores directly. The in-memory set has no
// transactions; tests observe write ordering instead of atomicity.
func (s *Stores) InTx(ctx context.Context, fn func(domain.Stores, domain.CheckpointStore) error) error {
	return fn(s.Bundle(), s.Checkpoints)
}

var (
	_ domain.OrderbookStore   = (*OrderbookStore)(nil)
	_ domain.TokenStore       = (*TokenStore)(nil)
	_ domain.TransactionStore = (*TransactionStore)(nil)
	_ domain.VaultStore       = (*VaultStore)(nil)
	_ domain.VaultEventStore  = (*VaultEventStore)(nil)
	_ domain.OrderStore       = (*OrderStore)(nil)
	_ domain.TradeStore       = (*TradeStore)(nil)
	_ domain.ClearStore       = (*ClearStore)(nil)
	_ domain.StagingStore     = (*StagingStore)(nil)
	_ domain.CheckpointStore  = (*CheckpointStore)(nil)
)

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// OrderbookStore is the in-memory domain.OrderbookStore.
type OrderbookStore struct{ db *db }

func (s *OrderbookStore) Put(ctx context.Context, ob domain.Orderbook) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.orderbooks[ob.Address] = ob
	return nil
}

func (s *OrderbookStore) Get(ctx context.Context, addr common.Address) (domain.Orderbook, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	ob, ok := s.db.orderbooks[addr]
	if !ok {
		return domain.Orderbook{}, domain.ErrNotFound
	}
	return ob, nil
}

// TokenStore is the in-memory domain.TokenStore.
type TokenStore struct{ db *db }

func (s *TokenStore) Put(ctx context.Context, token domain.ERC20) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.tokens[token.Address] = token
	return nil
}

func (s *TokenStore) Get(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	tok, ok := s.db.tokens[addr]
	if !ok {
		return domain.ERC20{}, domain.ErrNotFound
	}
	return tok, nil
}

// TransactionStore is the in-memory domain.TransactionStore.
type TransactionStore struct{ db *db }

func (s *TransactionStore) Put(ctx context.Context, tx domain.Transaction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.transactions[tx.Hash] = tx
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, hash common.Hash) (domain.Transaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	tx, ok := s.db.transactions[hash]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return tx, nil
}

// VaultStore is the in-memory domain.VaultStore.
type VaultStore struct{ db *db }

func (s *VaultStore) Put(ctx context.Context, vault domain.Vault) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.vaults[vault.ID] = vault
	return nil
}

func (s *VaultStore) Get(ctx context.Context, id common.Hash) (domain.Vault, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	vault, ok := s.db.vaults[id]
	if !ok {
		return domain.Vault{}, domain.ErrNotFound
	}
	return vault, nil
}

func (s *VaultStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Vault, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Vault
	for _, vault := range s.db.vaults {
		if vault.Owner == owner {
			out = append(out, vault)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, opts), nil
}

// VaultEventStore is the in-memory domain.VaultEventStore. Put is idempotent
// on the event id so replays don't duplicate audit rows.
type VaultEventStore struct{ db *db }

func (s *VaultEventStore) PutDeposit(ctx context.Context, d domain.Deposit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.deposits {
		if existing.ID == d.ID {
			return nil
		}
	}
	s.db.deposits = append(s.db.deposits, d)
	return nil
}

func (s *VaultEventStore) PutWithdrawal(ctx context.Context, w domain.Withdrawal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.withdrawals {
		if existing.ID == w.ID {
			return nil
		}
	}
	s.db.withdrawals = append(s.db.withdrawals, w)
	return nil
}

func (s *VaultEventStore) ListDepositsByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.Deposit, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Deposit
	for _, d := range s.db.deposits {
		if d.VaultID == vaultID {
			out = append(out, d)
		}
	}
	return paginate(out, opts), nil
}

func (s *VaultEventStore) ListWithdrawalsByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.Withdrawal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Withdrawal
	for _, w := range s.db.withdrawals {
		if w.VaultID == vaultID {
			out = append(out, w)
		}
	}
	return paginate(out, opts), nil
}

// OrderStore is the in-memory domain.OrderStore.
type OrderStore struct{ db *db }

func (s *OrderStore) Put(ctx context.Context, order domain.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.orders[order.ID] = order
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id common.Hash) (domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	order, ok := s.db.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (s *OrderStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.db.orders {
		if o.Owner == owner {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, opts), nil
}

func (s *OrderStore) ListActive(ctx context.Context, orderbook common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.db.orders {
		if o.Active && o.Orderbook == orderbook {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return paginate(out, opts), nil
}

func (s *OrderStore) PutAdd(ctx context.Context, rec domain.AddOrder) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.orderAdds {
		if existing.ID == rec.ID {
			return nil
		}
	}
	s.db.orderAdds = append(s.db.orderAdds, rec)
	return nil
}

func (s *OrderStore) PutRemove(ctx context.Context, rec domain.RemoveOrder) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.orderRemoves {
		if existing.ID == rec.ID {
			return nil
		}
	}
	s.db.orderRemoves = append(s.db.orderRemoves, rec)
	return nil
}

// TradeStore is the in-memory domain.TradeStore.
type TradeStore struct{ db *db }

func (s *TradeStore) PutTrade(ctx context.Context, trade domain.Trade) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.trades[trade.ID]; !ok {
		s.db.tradeOrder = append(s.db.tradeOrder, trade.ID)
	}
	s.db.trades[trade.ID] = trade
	return nil
}

func (s *TradeStore) PutBalanceChange(ctx context.Context, change domain.TradeVaultBalanceChange) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.changes {
		if existing.ID == change.ID {
			return nil
		}
	}
	s.db.changes = append(s.db.changes, change)
	return nil
}

func (s *TradeStore) GetTrade(ctx context.Context, id common.Hash) (domain.Trade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	trade, ok := s.db.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return trade, nil
}

func (s *TradeStore) ListByOrder(ctx context.Context, orderID common.Hash, opts domain.ListOpts) ([]domain.Trade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Trade
	for _, id := range s.db.tradeOrder {
		if t := s.db.trades[id]; t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return paginate(out, opts), nil
}

func (s *TradeStore) ListChangesByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.TradeVaultBalanceChange, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.TradeVaultBalanceChange
	for _, c := range s.db.changes {
		if c.VaultID == vaultID {
			out = append(out, c)
		}
	}
	return paginate(out, opts), nil
}

// ClearStore is the in-memory domain.ClearStore.
type ClearStore struct{ db *db }

func (s *ClearStore) PutClear(ctx context.Context, clear domain.Clear) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.clears[clear.ID]; !ok {
		s.db.clearOrder = append(s.db.clearOrder, clear.ID)
	}
	s.db.clears[clear.ID] = clear
	return nil
}

func (s *ClearStore) PutBounty(ctx context.Context, bounty domain.ClearBounty) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.bounties {
		if existing.ID == bounty.ID {
			return nil
		}
	}
	s.db.bounties = append(s.db.bounties, bounty)
	return nil
}

func (s *ClearStore) GetClear(ctx context.Context, id common.Hash) (domain.Clear, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	clear, ok := s.db.clears[id]
	if !ok {
		return domain.Clear{}, domain.ErrNotFound
	}
	return clear, nil
}

func (s *ClearStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Clear, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]domain.Clear, 0, len(s.db.clearOrder))
	for i := len(s.db.clearOrder) - 1; i >= 0; i-- {
		out = append(out, s.db.clears[s.db.clearOrder[i]])
	}
	return paginate(out, opts), nil
}

// Bounties returns every stored bounty record, in write order. Test helper.
func (s *ClearStore) Bounties() []domain.ClearBounty {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]domain.ClearBounty, len(s.db.bounties))
	copy(out, s.db.bounties)
	return out
}

// StagingStore is the in-memory domain.StagingStore.
type StagingStore struct{ db *db }

func (s *StagingStore) Put(ctx context.Context, staging domain.ClearStaging) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.staging[staging.ID] = staging
	return nil
}

func (s *StagingStore) Get(ctx context.Context, id common.Hash) (domain.ClearStaging, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	staging, ok := s.db.staging[id]
	if !ok {
		return domain.ClearStaging{}, domain.ErrNotFound
	}
	return staging, nil
}

func (s *StagingStore) Delete(ctx context.Context, id common.Hash) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.staging, id)
	return nil
}

// Count reports how many announce records are currently staged. Used by the
// orphan check at transaction boundaries and in tests.
func (s *StagingStore) Count() int {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.staging)
}

// CheckpointStore is the in-memory domain.CheckpointStore.
type CheckpointStore struct{ db *db }

func (s *CheckpointStore) Put(ctx context.Context, cp domain.Checkpoint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.checkpoint = &cp
	return nil
}

func (s *CheckpointStore) Get(ctx context.Context) (domain.Checkpoint, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if s.db.checkpoint == nil {
		return domain.Checkpoint{}, domain.ErrNotFound
	}
	return *s.db.checkpoint, nil
}
