// Package engine turns decoded chain events into ledger writes. Processing
// is strictly single-threaded in event order; every handler is idempotent
// because all ids are content-derived, so replaying a block range converges
// on the same state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
	"github.com/quaylabs/obindexer/internal/observability"
)

// Engine applies events to the ledger.
type Engine struct {
	stores  domain.Stores
	calc    domain.Calculator
	tokens  *TokenRegistry
	vaults  *vaultLedger
	bus     domain.SignalBus // nil disables update notifications
	metrics *observability.Metrics
	log     *slog.Logger
}

// New builds an engine. bus may be nil when no live subscribers exist (tests,
// replay).
func New(stores domain.Stores, calc domain.Calculator, tokens *TokenRegistry, bus domain.SignalBus, metrics *observability.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		stores:  stores,
		calc:    calc,
		tokens:  tokens,
		vaults:  &vaultLedger{store: stores.Vaults, calc: calc},
		bus:     bus,
		metrics: metrics,
		log:     log.With("component", "engine"),
	}
}

// WithStores returns a copy of the engine writing through stores. The
// pipeline uses it to bind one processing pass to one database transaction;
// the engine itself keeps no state between events, so copies are free.
func (e *Engine) WithStores(stores domain.Stores) *Engine {
	bound := *e
	bound.stores = stores
	bound.vaults = &vaultLedger{store: stores.Vaults, calc: e.calc}
	return &bound
}

// Process applies one event. An error means the event could not be applied
// and the current block must not be checkpointed.
func (e *Engine) Process(ctx context.Context, ev domain.Event) error {
	meta := ev.Meta()
	if err := e.ensureContext(ctx, meta); err != nil {
		return err
	}

	var (
		kind string
		err  error
	)
	switch ev := ev.(type) {
	case *domain.DepositEvent:
		kind, err = "deposit", e.onDeposit(ctx, ev)
	case *domain.WithdrawEvent:
		kind, err = "withdraw", e.onWithdraw(ctx, ev)
	case *domain.AddOrderEvent:
		kind, err = "add_order", e.onAddOrder(ctx, ev)
	case *domain.RemoveOrderEvent:
		kind, err = "remove_order", e.onRemoveOrder(ctx, ev)
	case *domain.MetaEvent:
		kind, err = "meta", e.onMeta(ctx, ev)
	case *domain.ClearEvent:
		kind, err = "clear", e.onClear(ctx, ev)
	case *domain.AfterClearEvent:
		kind, err = "after_clear", e.onAfterClear(ctx, ev)
	default:
		e.log.Warn("unhandled event type", "type", fmt.Sprintf("%T", ev))
		return nil
	}

	if err != nil {
		e.metrics.EventFailures.WithLabelValues(kind).Inc()
		return fmt.Errorf("engine: %s at block %d log %d: %w", kind, meta.BlockNumber, meta.LogIndex, err)
	}
	e.metrics.EventsProcessed.WithLabelValues(kind).Inc()
	return nil
}

// FinishTx runs the transaction-boundary check: an announce record staged in
// this transaction that was never consumed by a settle half is an orphan. It
// is logged, counted, and discarded so it can never pair with a later
// transaction's settle event.
func (e *Engine) FinishTx(ctx context.Context, orderbook common.Address, txHash common.Hash) error {
	key := identity.CorrelationKey(orderbook, txHash)
	_, err := e.stores.Staging.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: check staging at tx boundary: %w", err)
	}

	e.log.Error("announce half never settled, discarding",
		"orderbook", orderbook.Hex(), "tx", txHash.Hex())
	e.metrics.OrphanedStagings.Inc()
	if err := e.stores.Staging.Delete(ctx, key); err != nil {
		return fmt.Errorf("engine: discard orphaned staging: %w", err)
	}
	return nil
}

// ensureContext lazily creates the orderbook and transaction rows every
// event's foreign keys point at.
func (e *Engine) ensureContext(ctx context.Context, meta domain.EventMeta) error {
	if _, err := e.stores.Orderbooks.Get(ctx, meta.Orderbook); errors.Is(err, domain.ErrNotFound) {
		ob := domain.Orderbook{
			Address:        meta.Orderbook,
			FirstSeenBlock: meta.BlockNumber,
			FirstSeenAt:    meta.Timestamp,
		}
		if err := e.stores.Orderbooks.Put(ctx, ob); err != nil {
			return fmt.Errorf("engine: create orderbook: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("engine: load orderbook: %w", err)
	}

	// The store dedupes on hash, so no in-process memo is kept. A memo would
	// survive a rolled-back pass and leave the row missing on retry.
	tx := domain.Transaction{
		Hash:        meta.TxHash,
		BlockNumber: meta.BlockNumber,
		Timestamp:   meta.Timestamp,
		From:        meta.Sender,
	}
	if err := e.stores.Transactions.Put(ctx, tx); err != nil {
		return fmt.Errorf("engine: create transaction: %w", err)
	}
	return nil
}

// notify publishes an entity update. Publish failures are logged, never
// fatal; notifications are best-effort.
func (e *Engine) notify(ctx context.Context, channel string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn("marshal notification", "channel", channel, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.log.Warn("publish notification", "channel", channel, "error", err)
	}
}

// calcErr wraps calculator failures. These are fatal for the current event;
// the engine never substitutes a locally computed amount.
func (e *Engine) calcErr(op string, err error) error {
	e.metrics.CalculatorFailures.Inc()
	return fmt.Errorf("calculator %s: %w", op, err)
}
