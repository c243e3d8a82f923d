package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/store/memory"
)

func TestTokenRegistryReadsChainOnce(t *testing.T) {
	stores := memory.New()
	decimals := uint8(6)
	source := &fakeTokenSource{decimals: &decimals}
	reg := NewTokenRegistry(stores.Tokens, nil, source, slog.New(slog.DiscardHandler))
	ctx := context.Background()
	addr := common.HexToAddress("0x42")

	first, err := reg.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), first.Scale())

	_, err = reg.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	// persisted for the next process lifetime
	stored, err := stores.Tokens.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestTokenRegistryPrefersStoreOverChain(t *testing.T) {
	stores := memory.New()
	ctx := context.Background()
	addr := common.HexToAddress("0x43")
	name := "Stored"
	require.NoError(t, stores.Tokens.Put(ctx, domain.ERC20{Address: addr, Name: &name}))

	source := &fakeTokenSource{}
	reg := NewTokenRegistry(stores.Tokens, nil, source, slog.New(slog.DiscardHandler))

	tok, err := reg.Resolve(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "Stored", *tok.Name)
	assert.Equal(t, 0, source.calls)
}

func TestTokenWithoutDecimalsScalesRaw(t *testing.T) {
	stores := memory.New()
	source := &fakeTokenSource{} // nil decimals: metadata reads reverted
	reg := NewTokenRegistry(stores.Tokens, nil, source, slog.New(slog.DiscardHandler))

	tok, err := reg.Resolve(context.Background(), common.HexToAddress("0x44"))
	require.NoError(t, err)
	assert.Nil(t, tok.Decimals)
	assert.Equal(t, uint8(0), tok.Scale())
}
