package engine

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

func addOrderEvent(t *testing.T, tx common.Hash, logIndex uint) *domain.AddOrderEvent {
	t.Helper()
	order := aliceOrder()
	hash, err := identity.HashOrder(order)
	require.NoError(t, err)
	return &domain.AddOrderEvent{
		EventMeta: meta(tx, logIndex),
		OrderHash: hash,
		Order:     order,
	}
}

func TestAddOrderCreatesDeclaredVaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := addOrderEvent(t, common.HexToHash("0xadd"), 0)
	require.NoError(t, env.engine.Process(ctx, ev))

	orderID := identity.OrderKey(testOrderbook, ev.OrderHash)
	order, err := env.stores.Orders.Get(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, order.Active)
	assert.Equal(t, aliceAddr, order.Owner)
	require.Len(t, order.Inputs, 1)
	require.Len(t, order.Outputs, 1)
	assert.NotEmpty(t, order.OrderBytes)

	// declared slots exist as zero-balance vaults
	vault, err := env.stores.Vaults.Get(ctx, order.Inputs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.FloatZero, vault.Balance)
	assert.Equal(t, tokenUSD, vault.Token)
}

func TestRemoveOrderDeactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	add := addOrderEvent(t, common.HexToHash("0xadd"), 0)
	require.NoError(t, env.engine.Process(ctx, add))

	require.NoError(t, env.engine.Process(ctx, &domain.RemoveOrderEvent{
		EventMeta: meta(common.HexToHash("0xdel"), 0),
		OrderHash: add.OrderHash,
		Order:     add.Order,
	}))

	order, err := env.stores.Orders.Get(ctx, identity.OrderKey(testOrderbook, add.OrderHash))
	require.NoError(t, err)
	assert.False(t, order.Active)
}

func TestRemoveUnknownOrderIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := aliceOrder()
	hash, err := identity.HashOrder(order)
	require.NoError(t, err)
	require.NoError(t, env.engine.Process(ctx, &domain.RemoveOrderEvent{
		EventMeta: meta(common.HexToHash("0xdel"), 0),
		OrderHash: hash,
		Order:     order,
	}))

	_, err = env.stores.Orders.Get(ctx, identity.OrderKey(testOrderbook, hash))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReAddFlipsActiveAndKeepsMeta(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	add := addOrderEvent(t, common.HexToHash("0xadd"), 0)
	require.NoError(t, env.engine.Process(ctx, add))

	require.NoError(t, env.engine.Process(ctx, &domain.MetaEvent{
		EventMeta: meta(common.HexToHash("0xadd"), 1),
		Subject:   add.OrderHash,
		Payload:   []byte("hello"),
	}))
	require.NoError(t, env.engine.Process(ctx, &domain.RemoveOrderEvent{
		EventMeta: meta(common.HexToHash("0xdel"), 0),
		OrderHash: add.OrderHash,
		Order:     add.Order,
	}))
	require.NoError(t, env.engine.Process(ctx, addOrderEvent(t, common.HexToHash("0xadd2"), 0)))

	order, err := env.stores.Orders.Get(ctx, identity.OrderKey(testOrderbook, add.OrderHash))
	require.NoError(t, err)
	assert.True(t, order.Active)
	assert.Equal(t, []byte("hello"), order.Meta)
}

func TestMetaForUnknownOrderDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.engine.Process(ctx, &domain.MetaEvent{
		EventMeta: meta(common.HexToHash("0x3e7a"), 0),
		Subject:   common.HexToHash("0x1234"),
		Payload:   []byte("orphan"),
	}))

	_, err := env.stores.Orders.Get(ctx, identity.OrderKey(testOrderbook, common.HexToHash("0x1234")))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
