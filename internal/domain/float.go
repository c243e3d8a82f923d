package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Float is the opaque fixed-width encoded amount produced by the external
// decimal calculator. The engine never interprets its bits; it only moves the
// value between events, calculator calls, and entity fields. Bit-exact
// agreement with on-chain arithmetic is why this stays opaque.
type Float [32]byte

// FloatZero is the calculator encoding of zero (all zero bytes).
var FloatZero Float

// FloatFromHex parses a 0x-prefixed 32-byte hex string into a Float.
func FloatFromHex(s string) (Float, error) {
	var f Float
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 64 {
		return f, fmt.Errorf("domain: float hex must be 32 bytes, got %d chars", len(raw))
	}
	if _, err := hex.Decode(f[:], []byte(raw)); err != nil {
		return f, fmt.Errorf("domain: decode float hex: %w", err)
	}
	return f, nil
}

// FloatFromBytes copies up to 32 bytes into a Float, right-aligned, matching
// the ABI encoding of a bytes32 value.
func FloatFromBytes(b []byte) Float {
	var f Float
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(f[32-len(b):], b)
	return f
}

// Hex returns the 0x-prefixed hex encoding.
func (f Float) Hex() string {
	return "0x" + hex.EncodeToString(f[:])
}

// IsZero reports whether the value is the zero encoding.
func (f Float) IsZero() bool {
	return f == FloatZero
}

// MarshalText implements encoding.TextMarshaler so Floats serialize as hex in
// JSON API responses and archive records.
func (f Float) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Float) UnmarshalText(text []byte) error {
	parsed, err := FloatFromHex(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
