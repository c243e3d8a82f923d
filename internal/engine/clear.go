package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

// onClear stages the announce half of a settlement. No balances move here;
// the event only tells us which orders and vault slots the settle half's
// amounts will belong to.
func (e *Engine) onClear(ctx context.Context, ev *domain.ClearEvent) error {
	alice, err := stagingSide(ev.Alice, ev.Config.AliceInputIOIndex, ev.Config.AliceOutputIOIndex, ev.Config.AliceBountyVaultID)
	if err != nil {
		return fmt.Errorf("alice: %w", err)
	}
	bob, err := stagingSide(ev.Bob, ev.Config.BobInputIOIndex, ev.Config.BobOutputIOIndex, ev.Config.BobBountyVaultID)
	if err != nil {
		return fmt.Errorf("bob: %w", err)
	}

	key := identity.CorrelationKey(ev.Orderbook, ev.TxHash)
	if _, err := e.stores.Staging.Get(ctx, key); err == nil {
		// A second announce in the same transaction before the first
		// settled. The later announce wins; in-transaction log order means
		// the settle half that follows belongs to it.
		e.log.Warn("overwriting unconsumed announce", "tx", ev.TxHash.Hex())
		e.metrics.OrphanedStagings.Inc()
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check staging: %w", err)
	}

	staging := domain.ClearStaging{
		ID:        key,
		Orderbook: ev.Orderbook,
		TxHash:    ev.TxHash,
		Alice:     alice,
		Bob:       bob,
	}
	if err := e.stores.Staging.Put(ctx, staging); err != nil {
		return fmt.Errorf("persist staging: %w", err)
	}
	return nil
}

// stagingSide resolves one party's concrete slots from the announce event's
// index configuration and computes their order hash.
func stagingSide(order domain.OrderDef, inputIdx, outputIdx uint64, bountyVaultID common.Hash) (domain.ClearStagingSide, error) {
	if inputIdx >= uint64(len(order.ValidInputs)) {
		return domain.ClearStagingSide{}, fmt.Errorf("input index %d out of range (%d declared)", inputIdx, len(order.ValidInputs))
	}
	if outputIdx >= uint64(len(order.ValidOutputs)) {
		return domain.ClearStagingSide{}, fmt.Errorf("output index %d out of range (%d declared)", outputIdx, len(order.ValidOutputs))
	}

	hash, err := identity.HashOrder(order)
	if err != nil {
		return domain.ClearStagingSide{}, err
	}

	in := order.ValidInputs[inputIdx]
	out := order.ValidOutputs[outputIdx]
	return domain.ClearStagingSide{
		Address:       order.Owner,
		OrderHash:     hash,
		InputToken:    in.Token,
		InputVaultID:  in.VaultID,
		OutputToken:   out.Token,
		OutputVaultID: out.VaultID,
		BountyVaultID: bountyVaultID,
	}, nil
}

// onAfterClear consumes the staged announce half and materializes the
// settlement: two trades, four balance changes, up to two bounties, and one
// clear summary.
func (e *Engine) onAfterClear(ctx context.Context, ev *domain.AfterClearEvent) error {
	key := identity.CorrelationKey(ev.Orderbook, ev.TxHash)
	staging, err := e.stores.Staging.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		// A settle half with no announce half cannot be attributed to any
		// order or vault. Report it and move on; halting the pipeline would
		// be worse than the gap.
		e.log.Error("settle event with no staged announce",
			"orderbook", ev.Orderbook.Hex(), "tx", ev.TxHash.Hex())
		e.metrics.OrphanedSettles.Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load staging: %w", err)
	}

	eventID := identity.EventID(ev.EventMeta)

	aliceTrade, err := e.settleSide(ctx, ev, eventID, staging.Alice, ev.State.AliceInput, ev.State.AliceOutput)
	if err != nil {
		return fmt.Errorf("alice: %w", err)
	}
	bobTrade, err := e.settleSide(ctx, ev, eventID, staging.Bob, ev.State.BobInput, ev.State.BobOutput)
	if err != nil {
		return fmt.Errorf("bob: %w", err)
	}

	clear := domain.Clear{
		ID:          eventID,
		Orderbook:   ev.Orderbook,
		Sender:      ev.Sender,
		AliceInput:  ev.State.AliceInput,
		AliceOutput: ev.State.AliceOutput,
		BobInput:    ev.State.BobInput,
		BobOutput:   ev.State.BobOutput,
		TxHash:      ev.TxHash,
		Timestamp:   ev.Timestamp,
	}

	// Each party's bounty is their output minus the counterparty's input,
	// kept by whoever sent the settle transaction.
	clear.AliceBounty, clear.AliceBountyID, err = e.settleBounty(ctx, ev, eventID, staging.Alice, ev.State.AliceOutput, ev.State.BobInput)
	if err != nil {
		return fmt.Errorf("alice bounty: %w", err)
	}
	clear.BobBounty, clear.BobBountyID, err = e.settleBounty(ctx, ev, eventID, staging.Bob, ev.State.BobOutput, ev.State.AliceInput)
	if err != nil {
		return fmt.Errorf("bob bounty: %w", err)
	}

	if err := e.stores.Clears.PutClear(ctx, clear); err != nil {
		return fmt.Errorf("persist clear: %w", err)
	}

	// Consuming read: the staged record must not survive this event.
	if err := e.stores.Staging.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete staging: %w", err)
	}

	e.log.Info("settlement cleared",
		"tx", ev.TxHash.Hex(),
		"alice_order", staging.Alice.OrderHash.Hex(),
		"bob_order", staging.Bob.OrderHash.Hex())
	e.notify(ctx, "clears", clear)
	e.notify(ctx, "trades", aliceTrade)
	e.notify(ctx, "trades", bobTrade)
	return nil
}

// settleSide applies one party's input credit and output debit and records
// their trade. The input and output changes may hit different vaults and
// different tokens.
func (e *Engine) settleSide(ctx context.Context, ev *domain.AfterClearEvent, eventID common.Hash, side domain.ClearStagingSide, input, output domain.Float) (domain.Trade, error) {
	inputChange, err := e.applyTradeChange(ctx, ev, eventID, side.Address, side.InputToken, side.InputVaultID, input, false)
	if err != nil {
		return domain.Trade{}, err
	}
	outputChange, err := e.applyTradeChange(ctx, ev, eventID, side.Address, side.OutputToken, side.OutputVaultID, output, true)
	if err != nil {
		return domain.Trade{}, err
	}

	trade := domain.Trade{
		ID:             identity.TradeID(eventID, side.OrderHash),
		Orderbook:      ev.Orderbook,
		OrderID:        identity.OrderKey(ev.Orderbook, side.OrderHash),
		OrderHash:      side.OrderHash,
		InputChangeID:  inputChange.ID,
		OutputChangeID: outputChange.ID,
		TxHash:         ev.TxHash,
		Timestamp:      ev.Timestamp,
	}
	if err := e.stores.Trades.PutTrade(ctx, trade); err != nil {
		return domain.Trade{}, fmt.Errorf("persist trade: %w", err)
	}
	return trade, nil
}

// applyTradeChange moves one amount through one vault and records the delta.
// The debit side negates the amount before it reaches the ledger.
func (e *Engine) applyTradeChange(ctx context.Context, ev *domain.AfterClearEvent, eventID common.Hash, owner common.Address, token common.Address, vaultID common.Hash, amount domain.Float, debit bool) (domain.TradeVaultBalanceChange, error) {
	if _, err := e.tokens.Resolve(ctx, token); err != nil {
		return domain.TradeVaultBalanceChange{}, err
	}

	delta := amount
	if debit {
		var err error
		delta, err = e.calc.Minus(ctx, amount)
		if err != nil {
			return domain.TradeVaultBalanceChange{}, e.calcErr("minus", err)
		}
	}

	vault, err := e.vaults.ensure(ctx, ev.Orderbook, owner, token, vaultID)
	if err != nil {
		return domain.TradeVaultBalanceChange{}, err
	}
	old, updated, err := e.vaults.apply(ctx, vault, delta)
	if err != nil {
		return domain.TradeVaultBalanceChange{}, err
	}

	change := domain.TradeVaultBalanceChange{
		ID:         identity.BalanceChangeID(eventID, vault.ID),
		VaultID:    vault.ID,
		TxHash:     ev.TxHash,
		Amount:     delta,
		OldBalance: old,
		NewBalance: updated,
		Timestamp:  ev.Timestamp,
	}
	if err := e.stores.Trades.PutBalanceChange(ctx, change); err != nil {
		return domain.TradeVaultBalanceChange{}, fmt.Errorf("persist balance change: %w", err)
	}
	return change, nil
}

// settleBounty computes one party's surplus (their output minus the
// counterparty's input) and, when strictly positive, pays it into the settle
// sender's bounty vault. Zero and negative surpluses clamp to zero with no
// record and no vault mutation.
func (e *Engine) settleBounty(ctx context.Context, ev *domain.AfterClearEvent, eventID common.Hash, side domain.ClearStagingSide, output, counterInput domain.Float) (domain.Float, *common.Hash, error) {
	bounty, err := e.calc.Sub(ctx, output, counterInput)
	if err != nil {
		return domain.Float{}, nil, e.calcErr("sub", err)
	}
	positive, err := e.calc.Gt(ctx, bounty, domain.FloatZero)
	if err != nil {
		return domain.Float{}, nil, e.calcErr("gt", err)
	}
	if !positive {
		return domain.FloatZero, nil, nil
	}

	// The surplus is denominated in the party's output token and credited
	// to the settle sender, not to the party.
	vault, err := e.vaults.ensure(ctx, ev.Orderbook, ev.Sender, side.OutputToken, side.BountyVaultID)
	if err != nil {
		return domain.Float{}, nil, err
	}
	old, updated, err := e.vaults.apply(ctx, vault, bounty)
	if err != nil {
		return domain.Float{}, nil, err
	}

	rec := domain.ClearBounty{
		ID:         identity.BountyID(vault.ID, eventID),
		VaultID:    vault.ID,
		Sender:     ev.Sender,
		Amount:     bounty,
		OldBalance: old,
		NewBalance: updated,
		TxHash:     ev.TxHash,
		Timestamp:  ev.Timestamp,
	}
	if err := e.stores.Clears.PutBounty(ctx, rec); err != nil {
		return domain.Float{}, nil, fmt.Errorf("persist bounty: %w", err)
	}
	return bounty, &rec.ID, nil
}
