package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TokenCache is an optional read-through cache in front of the token store,
// so restarts don't re-query metadata for every token already seen.
type TokenCache interface {
	Get(ctx context.Context, addr common.Address) (ERC20, error)
	Set(ctx context.Context, token ERC20) error
}

// SignalBus provides pub/sub used to fan entity updates out to the
// WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
