package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/identity"
)

var (
	aliceAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenUSD  = common.HexToAddress("0x0000000000000000000000000000000000000101")
	tokenETH  = common.HexToAddress("0x0000000000000000000000000000000000000102")
)

// counterparty orders: alice takes USD in and pays ETH out, bob the reverse.
func aliceOrder() domain.OrderDef {
	return domain.OrderDef{
		Owner:        aliceAddr,
		ValidInputs:  []domain.IO{{Token: tokenUSD, VaultID: common.HexToHash("0xa1")}},
		ValidOutputs: []domain.IO{{Token: tokenETH, VaultID: common.HexToHash("0xa2")}},
		Nonce:        common.HexToHash("0x01"),
	}
}

func bobOrder() domain.OrderDef {
	return domain.OrderDef{
		Owner:        bobAddr,
		ValidInputs:  []domain.IO{{Token: tokenETH, VaultID: common.HexToHash("0xb1")}},
		ValidOutputs: []domain.IO{{Token: tokenUSD, VaultID: common.HexToHash("0xb2")}},
		Nonce:        common.HexToHash("0x02"),
	}
}

func clearConfig() domain.ClearConfig {
	return domain.ClearConfig{
		AliceBountyVaultID: common.HexToHash("0xf1"),
		BobBountyVaultID:   common.HexToHash("0xf2"),
	}
}

func fundVaults(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	deposits := []struct {
		owner common.Address
		token common.Address
		slot  common.Hash
	}{
		{aliceAddr, tokenETH, common.HexToHash("0xa2")},
		{bobAddr, tokenUSD, common.HexToHash("0xb2")},
	}
	for i, d := range deposits {
		ev := &domain.DepositEvent{
			EventMeta: meta(common.HexToHash("0xfeed"), uint(i)),
			Token:     d.token,
			VaultID:   d.slot,
			Amount:    big.NewInt(1000),
		}
		ev.Sender = d.owner
		require.NoError(t, env.engine.Process(ctx, ev))
	}
}

func TestClearSettlesBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fundVaults(t, env)

	tx := common.HexToHash("0xc1ea5")
	announce := &domain.ClearEvent{
		EventMeta: meta(tx, 3),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    clearConfig(),
	}
	require.NoError(t, env.engine.Process(ctx, announce))
	assert.Equal(t, 1, env.stores.Staging.Count())

	settle := &domain.AfterClearEvent{
		EventMeta: meta(tx, 4),
		State: domain.ClearStateChange{
			AliceInput:  amt(90), // alice receives 90 USD
			AliceOutput: amt(50), // alice pays 50 ETH
			BobInput:    amt(50), // bob receives 50 ETH
			BobOutput:   amt(90), // bob pays 90 USD
		},
	}
	require.NoError(t, env.engine.Process(ctx, settle))

	// staging is consumed
	assert.Equal(t, 0, env.stores.Staging.Count())

	// alice: USD input vault created and credited, ETH output vault debited
	aliceIn, err := env.stores.Vaults.Get(ctx,
		identity.VaultKey(testOrderbook, aliceAddr, tokenUSD, common.HexToHash("0xa1")))
	require.NoError(t, err)
	assert.Equal(t, amt(90), aliceIn.Balance)

	aliceOut, err := env.stores.Vaults.Get(ctx,
		identity.VaultKey(testOrderbook, aliceAddr, tokenETH, common.HexToHash("0xa2")))
	require.NoError(t, err)
	assert.Equal(t, amt(950), aliceOut.Balance)

	// bob: ETH input credited, USD output debited
	bobIn, err := env.stores.Vaults.Get(ctx,
		identity.VaultKey(testOrderbook, bobAddr, tokenETH, common.HexToHash("0xb1")))
	require.NoError(t, err)
	assert.Equal(t, amt(50), bobIn.Balance)

	bobOut, err := env.stores.Vaults.Get(ctx,
		identity.VaultKey(testOrderbook, bobAddr, tokenUSD, common.HexToHash("0xb2")))
	require.NoError(t, err)
	assert.Equal(t, amt(910), bobOut.Balance)

	// one clear, two trades, four balance changes
	eventID := identity.EventID(settle.EventMeta)
	clear, err := env.stores.Clears.GetClear(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, amt(90), clear.AliceInput)
	assert.Equal(t, amt(90), clear.BobOutput)

	aliceHash, err := identity.HashOrder(aliceOrder())
	require.NoError(t, err)
	trade, err := env.stores.Trades.GetTrade(ctx, identity.TradeID(eventID, aliceHash))
	require.NoError(t, err)
	assert.Equal(t, identity.BalanceChangeID(eventID, aliceIn.ID), trade.InputChangeID)
	assert.Equal(t, identity.BalanceChangeID(eventID, aliceOut.ID), trade.OutputChangeID)

	changes, err := env.stores.Trades.ListChangesByVault(ctx, aliceOut.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, amt(-50), changes[0].Amount)
	assert.Equal(t, amt(1000), changes[0].OldBalance)
	assert.Equal(t, amt(950), changes[0].NewBalance)
}

func TestSettleWithoutAnnounceDoesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	settle := &domain.AfterClearEvent{
		EventMeta: meta(common.HexToHash("0x107e"), 0),
		State: domain.ClearStateChange{
			AliceInput:  amt(1),
			AliceOutput: amt(1),
			BobInput:    amt(1),
			BobOutput:   amt(1),
		},
	}
	require.NoError(t, env.engine.Process(ctx, settle))

	clears, err := env.stores.Clears.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, clears)
}

func TestBountyPaidToSettleSender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fundVaults(t, env)

	tx := common.HexToHash("0xb0b71")
	require.NoError(t, env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(tx, 0),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    clearConfig(),
	}))

	// alice pays out 55 ETH but bob only receives 50: a 5 ETH surplus for
	// the settle sender.
	settle := &domain.AfterClearEvent{
		EventMeta: meta(tx, 1),
		State: domain.ClearStateChange{
			AliceInput:  amt(90),
			AliceOutput: amt(55),
			BobInput:    amt(50),
			BobOutput:   amt(90),
		},
	}
	require.NoError(t, env.engine.Process(ctx, settle))

	eventID := identity.EventID(settle.EventMeta)
	clear, err := env.stores.Clears.GetClear(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, amt(5), clear.AliceBounty)
	require.NotNil(t, clear.AliceBountyID)
	assert.Equal(t, domain.FloatZero, clear.BobBounty)
	assert.Nil(t, clear.BobBountyID)

	// bounty vault belongs to the settle sender, denominated in alice's
	// output token
	bountyVault, err := env.stores.Vaults.Get(ctx,
		identity.VaultKey(testOrderbook, testSender, tokenETH, common.HexToHash("0xf1")))
	require.NoError(t, err)
	assert.Equal(t, amt(5), bountyVault.Balance)

	bounties := env.stores.Clears.Bounties()
	require.Len(t, bounties, 1)
	assert.Equal(t, testSender, bounties[0].Sender)
	assert.Equal(t, *clear.AliceBountyID, bounties[0].ID)
}

func TestZeroBountyClampsWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fundVaults(t, env)

	tx := common.HexToHash("0x2e70")
	require.NoError(t, env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(tx, 0),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    clearConfig(),
	}))
	settle := &domain.AfterClearEvent{
		EventMeta: meta(tx, 1),
		State: domain.ClearStateChange{
			AliceInput:  amt(90),
			AliceOutput: amt(50),
			BobInput:    amt(50),
			BobOutput:   amt(90),
		},
	}
	require.NoError(t, env.engine.Process(ctx, settle))

	clear, err := env.stores.Clears.GetClear(ctx, identity.EventID(settle.EventMeta))
	require.NoError(t, err)
	assert.Equal(t, domain.FloatZero, clear.AliceBounty)
	assert.Nil(t, clear.AliceBountyID)
	assert.Empty(t, env.stores.Clears.Bounties())
}

func TestAnnounceOverwriteLastWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := common.HexToHash("0xd0b1e")
	require.NoError(t, env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(tx, 0),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    clearConfig(),
	}))

	// second announce in the same transaction with swapped parties
	require.NoError(t, env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(tx, 1),
		Alice:     bobOrder(),
		Bob:       aliceOrder(),
		Config:    clearConfig(),
	}))

	staged, err := env.stores.Staging.Get(ctx, identity.CorrelationKey(testOrderbook, tx))
	require.NoError(t, err)
	bobHash, err := identity.HashOrder(bobOrder())
	require.NoError(t, err)
	assert.Equal(t, bobHash, staged.Alice.OrderHash)
	assert.Equal(t, 1, env.stores.Staging.Count())
}

func TestAnnounceIndexOutOfRangeFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg := clearConfig()
	cfg.AliceInputIOIndex = 5
	err := env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(common.HexToHash("0xbad"), 0),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    cfg,
	})
	require.Error(t, err)
	assert.Equal(t, 0, env.stores.Staging.Count())
}

func TestFinishTxDiscardsOrphanedAnnounce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := common.HexToHash("0x0f0a7")
	require.NoError(t, env.engine.Process(ctx, &domain.ClearEvent{
		EventMeta: meta(tx, 0),
		Alice:     aliceOrder(),
		Bob:       bobOrder(),
		Config:    clearConfig(),
	}))
	assert.Equal(t, 1, env.stores.Staging.Count())

	require.NoError(t, env.engine.FinishTx(ctx, testOrderbook, tx))
	assert.Equal(t, 0, env.stores.Staging.Count())

	// a later settle for that transaction now finds nothing
	require.NoError(t, env.engine.Process(ctx, &domain.AfterClearEvent{
		EventMeta: meta(tx, 5),
		State:     domain.ClearStateChange{},
	}))
	clears, err := env.stores.Clears.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, clears)
}
