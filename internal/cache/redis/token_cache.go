package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/quaylabs/obindexer/internal/domain"
)

// Token metadata is immutable once read, but the cache still expires so a
// token that later gains metadata (proxy upgrades) is eventually re-read.
const tokenTTL = 24 * time.Hour

// TokenCache implements domain.TokenCache with JSON-serialized ERC20 records.
//
// Key schema:
//
//	token:{address} - JSON-encoded metadata
type TokenCache struct {
	rdb *redis.Client
}

var _ domain.TokenCache = (*TokenCache)(nil)

// NewTokenCache creates a TokenCache backed by the given Client.
func NewTokenCache(c *Client) *TokenCache {
	return &TokenCache{rdb: c.Underlying()}
}

func tokenKey(addr common.Address) string {
	return "token:" + addr.Hex()
}

// Set stores token metadata.
func (tc *TokenCache) Set(ctx context.Context, token domain.ERC20) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("redis: marshal token %s: %w", token.Address.Hex(), err)
	}
	if err := tc.rdb.Set(ctx, tokenKey(token.Address), data, tokenTTL).Err(); err != nil {
		return fmt.Errorf("redis: set token %s: %w", token.Address.Hex(), err)
	}
	return nil
}

// Get retrieves token metadata, returning domain.ErrNotFound on a miss.
func (tc *TokenCache) Get(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	data, err := tc.rdb.Get(ctx, tokenKey(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ERC20{}, domain.ErrNotFound
		}
		return domain.ERC20{}, fmt.Errorf("redis: get token %s: %w", addr.Hex(), err)
	}

	var token domain.ERC20
	if err := json.Unmarshal(data, &token); err != nil {
		return domain.ERC20{}, fmt.Errorf("redis: unmarshal token %s: %w", addr.Hex(), err)
	}
	return token, nil
}
