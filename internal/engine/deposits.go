package engine

import (
	"context"
	"fmt"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

func (e *Engine) onDeposit(ctx context.Context, ev *domain.DepositEvent) error {
	token, err := e.tokens.Resolve(ctx, ev.Token)
	if err != nil {
		return err
	}

	amount, err := e.calc.FromFixedDecimal(ctx, ev.Amount, token.Scale())
	if err != nil {
		return e.calcErr("fromFixedDecimal", err)
	}

	vault, err := e.vaults.ensure(ctx, ev.Orderbook, ev.Sender, ev.Token, ev.VaultID)
	if err != nil {
		return err
	}
	old, updated, err := e.vaults.apply(ctx, vault, amount)
	if err != nil {
		return err
	}

	deposit := domain.Deposit{
		ID:         identity.EventID(ev.EventMeta),
		VaultID:    vault.ID,
		TxHash:     ev.TxHash,
		Sender:     ev.Sender,
		Token:      ev.Token,
		Amount:     amount,
		OldBalance: old,
		NewBalance: updated,
		Timestamp:  ev.Timestamp,
	}
	if err := e.stores.VaultEvents.PutDeposit(ctx, deposit); err != nil {
		return fmt.Errorf("persist deposit: %w", err)
	}

	e.log.Debug("deposit applied",
		"vault", vault.ID.Hex(), "token", ev.Token.Hex(), "block", ev.BlockNumber)
	e.notify(ctx, "vaults", vault)
	return nil
}

func (e *Engine) onWithdraw(ctx context.Context, ev *domain.WithdrawEvent) error {
	token, err := e.tokens.Resolve(ctx, ev.Token)
	if err != nil {
		return err
	}

	// Amount is what actually settled; it may be less than TargetAmount when
	// the withdrawal was capped at the available balance.
	amount, err := e.calc.FromFixedDecimal(ctx, ev.Amount, token.Scale())
	if err != nil {
		return e.calcErr("fromFixedDecimal", err)
	}
	delta, err := e.calc.Minus(ctx, amount)
	if err != nil {
		return e.calcErr("minus", err)
	}

	vault, err := e.vaults.ensure(ctx, ev.Orderbook, ev.Sender, ev.Token, ev.VaultID)
	if err != nil {
		return err
	}
	old, updated, err := e.vaults.apply(ctx, vault, delta)
	if err != nil {
		return err
	}

	withdrawal := domain.Withdrawal{
		ID:           identity.EventID(ev.EventMeta),
		VaultID:      vault.ID,
		TxHash:       ev.TxHash,
		Sender:       ev.Sender,
		Token:        ev.Token,
		TargetAmount: ev.TargetAmount,
		Amount:       amount,
		OldBalance:   old,
		NewBalance:   updated,
		Timestamp:    ev.Timestamp,
	}
	if err := e.stores.VaultEvents.PutWithdrawal(ctx, withdrawal); err != nil {
		return fmt.Errorf("persist withdrawal: %w", err)
	}

	e.log.Debug("withdrawal applied",
		"vault", vault.ID.Hex(), "token", ev.Token.Hex(), "block", ev.BlockNumber)
	e.notify(ctx, "vaults", vault)
	return nil
}
