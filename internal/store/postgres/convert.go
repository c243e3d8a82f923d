package postgres

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/quaylabs/obindexer/internal/domain"
)

// notFound maps pgx's sentinel onto the domain's.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func hashBytes(h common.Hash) []byte    { return h.Bytes() }
func addrBytes(a common.Address) []byte { return a.Bytes() }

func toHash(b []byte) common.Hash    { return common.BytesToHash(b) }
func toAddr(b []byte) common.Address { return common.BytesToAddress(b) }

func floatBytes(f domain.Float) []byte { return f[:] }

func toFloat(b []byte) domain.Float {
	return domain.FloatFromBytes(b)
}

func hashesBytes(hs []common.Hash) [][]byte {
	out := make([][]byte, len(hs))
	for i, h := range hs {
		out[i] = h.Bytes()
	}
	return out
}

func toHashes(bs [][]byte) []common.Hash {
	out := make([]common.Hash, len(bs))
	for i, b := range bs {
		out[i] = common.BytesToHash(b)
	}
	return out
}

// nilableHash handles optional hash references.
func nilableHash(h *common.Hash) []byte {
	if h == nil {
		return nil
	}
	return h.Bytes()
}

func toNilableHash(b []byte) *common.Hash {
	if len(b) == 0 {
		return nil
	}
	h := common.BytesToHash(b)
	return &h
}
