package domain

import (
	"context"
	"math/big"
)

// Calculator is the external deterministic decimal arithmetic collaborator.
// All ledger arithmetic goes through it; the engine never computes amounts
// itself. A returned error is not locally recoverable: the current event must
// abort loudly rather than corrupt the ledger invariant.
type Calculator interface {
	Add(ctx context.Context, a, b Float) (Float, error)
	Sub(ctx context.Context, a, b Float) (Float, error)
	Minus(ctx context.Context, a Float) (Float, error)
	Gt(ctx context.Context, a, b Float) (bool, error)

	// FromFixedDecimal encodes an integer token amount expressed with the
	// given number of decimal places.
	FromFixedDecimal(ctx context.Context, value *big.Int, decimals uint8) (Float, error)

	// Parse decodes a human-readable decimal string.
	Parse(ctx context.Context, s string) (Float, error)
}
