package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

func (e *Engine) onAddOrder(ctx context.Context, ev *domain.AddOrderEvent) error {
	encoded, err := identity.EncodeOrder(ev.Order)
	if err != nil {
		return err
	}

	// Declared slots get zero-balance vaults up front. This is the one path
	// that creates vaults with no prior balance event.
	resolve := func(ios []domain.IO) ([]common.Hash, error) {
		ids := make([]common.Hash, 0, len(ios))
		for _, io := range ios {
			if _, err := e.tokens.Resolve(ctx, io.Token); err != nil {
				return nil, err
			}
			vault, err := e.vaults.ensure(ctx, ev.Orderbook, ev.Order.Owner, io.Token, io.VaultID)
			if err != nil {
				return nil, err
			}
			ids = append(ids, vault.ID)
		}
		return ids, nil
	}

	inputs, err := resolve(ev.Order.ValidInputs)
	if err != nil {
		return err
	}
	outputs, err := resolve(ev.Order.ValidOutputs)
	if err != nil {
		return err
	}

	orderID := identity.OrderKey(ev.Orderbook, ev.OrderHash)
	order := domain.Order{
		ID:         orderID,
		Orderbook:  ev.Orderbook,
		OrderHash:  ev.OrderHash,
		Owner:      ev.Order.Owner,
		Nonce:      ev.Order.Nonce,
		OrderBytes: encoded,
		Inputs:     inputs,
		Outputs:    outputs,
		Active:     true,
		AddedAt:    ev.Timestamp,
		TxHash:     ev.TxHash,
	}

	// Re-adding a removed order flips the existing row back to active but
	// keeps any metadata attached in the meantime.
	if existing, err := e.stores.Orders.Get(ctx, orderID); err == nil {
		order.Meta = existing.Meta
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load order: %w", err)
	}

	if err := e.stores.Orders.Put(ctx, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	audit := domain.AddOrder{
		ID:        identity.EventID(ev.EventMeta),
		OrderID:   orderID,
		TxHash:    ev.TxHash,
		Sender:    ev.Sender,
		Timestamp: ev.Timestamp,
	}
	if err := e.stores.Orders.PutAdd(ctx, audit); err != nil {
		return fmt.Errorf("persist add record: %w", err)
	}

	e.log.Info("order added", "order", ev.OrderHash.Hex(), "owner", ev.Order.Owner.Hex())
	e.notify(ctx, "orders", order)
	return nil
}

func (e *Engine) onRemoveOrder(ctx context.Context, ev *domain.RemoveOrderEvent) error {
	orderID := identity.OrderKey(ev.Orderbook, ev.OrderHash)

	order, err := e.stores.Orders.Get(ctx, orderID)
	switch {
	case err == nil:
		order.Active = false
		if err := e.stores.Orders.Put(ctx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		e.notify(ctx, "orders", order)
	case errors.Is(err, domain.ErrNotFound):
		// The audit record is still written; removal of an order this
		// indexer never saw is logged, not fatal.
		e.log.Warn("remove for unknown order", "order", ev.OrderHash.Hex())
	default:
		return fmt.Errorf("load order: %w", err)
	}

	audit := domain.RemoveOrder{
		ID:        identity.EventID(ev.EventMeta),
		OrderID:   orderID,
		TxHash:    ev.TxHash,
		Sender:    ev.Sender,
		Timestamp: ev.Timestamp,
	}
	if err := e.stores.Orders.PutRemove(ctx, audit); err != nil {
		return fmt.Errorf("persist remove record: %w", err)
	}
	return nil
}

// onMeta attaches a metadata payload to an existing order. Metadata for an
// order that was never added is dropped without error.
func (e *Engine) onMeta(ctx context.Context, ev *domain.MetaEvent) error {
	orderID := identity.OrderKey(ev.Orderbook, ev.Subject)
	order, err := e.stores.Orders.Get(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		e.log.Debug("metadata for unknown order dropped", "subject", ev.Subject.Hex())
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	order.Meta = ev.Payload
	if err := e.stores.Orders.Put(ctx, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	e.notify(ctx, "orders", order)
	return nil
}
