package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Order tracks one order's lifecycle. The entity id is
// keccak(orderbook, orderHash); the orderHash itself depends only on the
// order content and owner, so removing and re-adding the same order flips
// Active on a single row instead of creating a new one.
type Order struct {
	ID         common.Hash
	Orderbook  common.Address
	OrderHash  common.Hash
	Owner      common.Address
	Nonce      common.Hash
	OrderBytes []byte // canonical ABI encoding of the order struct
	Inputs     []common.Hash
	Outputs    []common.Hash
	Active     bool
	Meta       []byte // nil until a metadata event attaches a payload
	AddedAt    time.Time
	TxHash     common.Hash
}

// AddOrder is the append-only audit record of one add event.
type AddOrder struct {
	ID        common.Hash // event id
	OrderID   common.Hash
	TxHash    common.Hash
	Sender    common.Address
	Timestamp time.Time
}

// RemoveOrder is the append-only audit record of one remove event. It is
// written even when the referenced order was never seen by this indexer.
type RemoveOrder struct {
	ID        common.Hash
	OrderID   common.Hash
	TxHash    common.Hash
	Sender    common.Address
	Timestamp time.Time
}
