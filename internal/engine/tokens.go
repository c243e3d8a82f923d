package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// TokenSource reads ERC20 metadata from the chain. A returned error is a
// transport failure; individual metadata reads that revert are reported as
// nil fields on the result, which is a terminal cached outcome.
type TokenSource interface {
	Metadata(ctx context.Context, addr common.Address) (domain.ERC20, error)
}

// TokenRegistry resolves token metadata with a three-level lookup: an
// in-process memo, the optional shared cache, then the store, falling back
// to a chain read that is persisted at every level.
type TokenRegistry struct {
	store  domain.TokenStore
	cache  domain.TokenCache // nil when no cache is configured
	source TokenSource
	memo   map[common.Address]domain.ERC20
	log    *slog.Logger
}

// NewTokenRegistry builds a registry. cache may be nil.
func NewTokenRegistry(store domain.TokenStore, cache domain.TokenCache, source TokenSource, log *slog.Logger) *TokenRegistry {
	return &TokenRegistry{
		store:  store,
		cache:  cache,
		source: source,
		memo:   make(map[common.Address]domain.ERC20),
		log:    log.With("component", "tokens"),
	}
}

// Resolve returns the metadata record for a token address, creating it on
// first sight.
func (r *TokenRegistry) Resolve(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	if tok, ok := r.memo[addr]; ok {
		return tok, nil
	}

	if r.cache != nil {
		tok, err := r.cache.Get(ctx, addr)
		if err == nil {
			r.memo[addr] = tok
			return tok, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn("token cache read failed", "token", addr.Hex(), "error", err)
		}
	}

	tok, err := r.store.Get(ctx, addr)
	if err == nil {
		r.memo[addr] = tok
		r.fillCache(ctx, tok)
		return tok, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ERC20{}, fmt.Errorf("engine: load token %s: %w", addr.Hex(), err)
	}

	tok, err = r.source.Metadata(ctx, addr)
	if err != nil {
		return domain.ERC20{}, fmt.Errorf("engine: read token metadata %s: %w", addr.Hex(), err)
	}
	if tok.Decimals == nil {
		r.log.Warn("token reports no decimals, amounts treated as raw integers", "token", addr.Hex())
	}
	if err := r.store.Put(ctx, tok); err != nil {
		return domain.ERC20{}, fmt.Errorf("engine: persist token %s: %w", addr.Hex(), err)
	}
	r.memo[addr] = tok
	r.fillCache(ctx, tok)
	return tok, nil
}

func (r *TokenRegistry) fillCache(ctx context.Context, tok domain.ERC20) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, tok); err != nil {
		r.log.Warn("token cache write failed", "token", tok.Address.Hex(), "error", err)
	}
}
