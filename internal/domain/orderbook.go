package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Orderbook is one deployed orderbook contract. Created lazily on the first
// event referencing its address and never mutated afterwards.
type Orderbook struct {
	Address        common.Address
	FirstSeenBlock uint64
	FirstSeenAt    time.Time
}

// ERC20 is cached token metadata, keyed by token address. Name, symbol, and
// decimals are nil when the corresponding read reverted; that is a terminal
// cached result, not a transient failure.
type ERC20 struct {
	Address  common.Address
	Name     *string
	Symbol   *string
	Decimals *uint8
}

// Scale returns the decimal scale to use for fixed-decimal conversion,
// falling back to 0 (raw integer) when the token never reported decimals.
func (t ERC20) Scale() uint8 {
	if t.Decimals == nil {
		return 0
	}
	return *t.Decimals
}

// Transaction is per-transaction metadata shared by every event in the same
// transaction. Keyed by hash; written once.
type Transaction struct {
	Hash        common.Hash
	BlockNumber uint64
	Timestamp   time.Time
	From        common.Address
}
