package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

// vaultLedger owns all vault balance mutation. Every delta goes through the
// calculator; the engine never folds balances itself.
type vaultLedger struct {
	store domain.VaultStore
	calc  domain.Calculator
}

// ensure loads the vault for (orderbook, owner, token, vaultId), creating a
// zero-balance row on first reference.
func (l *vaultLedger) ensure(ctx context.Context, orderbook, owner, token common.Address, vaultID common.Hash) (domain.Vault, error) {
	id := identity.VaultKey(orderbook, owner, token, vaultID)
	vault, err := l.store.Get(ctx, id)
	if err == nil {
		return vault, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Vault{}, fmt.Errorf("load vault %s: %w", id.Hex(), err)
	}

	vault = domain.Vault{
		ID:        id,
		Orderbook: orderbook,
		Owner:     owner,
		VaultID:   vaultID,
		Token:     token,
		Balance:   domain.FloatZero,
	}
	if err := l.store.Put(ctx, vault); err != nil {
		return domain.Vault{}, fmt.Errorf("create vault %s: %w", id.Hex(), err)
	}
	return vault, nil
}

// apply adds a signed delta to a vault's balance and persists the result.
// It returns the balance before and after the change.
func (l *vaultLedger) apply(ctx context.Context, vault domain.Vault, delta domain.Float) (old, updated domain.Float, err error) {
	old = vault.Balance
	updated, err = l.calc.Add(ctx, old, delta)
	if err != nil {
		return domain.Float{}, domain.Float{}, fmt.Errorf("calculator add: %w", err)
	}
	vault.Balance = updated
	if err := l.store.Put(ctx, vault); err != nil {
		return domain.Float{}, domain.Float{}, fmt.Errorf("persist vault %s: %w", vault.ID.Hex(), err)
	}
	return old, updated, nil
}
