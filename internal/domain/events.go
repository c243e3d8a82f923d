package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventMeta carries the chain coordinates shared by every decoded event.
type EventMeta struct {
	Orderbook   common.Address
	TxHash      common.Hash
	TxIndex     uint
	LogIndex    uint
	BlockNumber uint64
	Timestamp   time.Time
	Sender      common.Address
}

// Event is any decoded orderbook contract event.
type Event interface {
	Meta() EventMeta
}

// IO is one declared (token, vault) slot of an order definition.
type IO struct {
	Token   common.Address
	VaultID common.Hash
}

// Evaluable is the interpreter dispatch of an order definition. The engine
// treats it as inert bytes; it only participates in the canonical order
// encoding.
type Evaluable struct {
	Interpreter common.Address
	Store       common.Address
	Bytecode    []byte
}

// OrderDef is the on-chain order struct as it appears inside add/remove and
// clear events.
type OrderDef struct {
	Owner        common.Address
	Evaluable    Evaluable
	ValidInputs  []IO
	ValidOutputs []IO
	Nonce        common.Hash
}

// ClearConfig selects which of each party's declared inputs/outputs and
// which bounty vault slots are in play for one settlement.
type ClearConfig struct {
	AliceInputIOIndex  uint64
	AliceOutputIOIndex uint64
	BobInputIOIndex    uint64
	BobOutputIOIndex   uint64
	AliceBountyVaultID common.Hash
	BobBountyVaultID   common.Hash
}

// ClearStateChange carries the actual settled amounts. The amounts are
// calculator-encoded; which orders and vaults they belong to is only known
// from the staged announce data.
type ClearStateChange struct {
	AliceOutput Float
	BobOutput   Float
	AliceInput  Float
	BobInput    Float
}

// DepositEvent credits a vault. Amount is the raw fixed-decimal integer from
// the token transfer; the handler converts it through the calculator using
// the token's decimals.
type DepositEvent struct {
	EventMeta
	Token   common.Address
	VaultID common.Hash
	Amount  *big.Int
}

// WithdrawEvent debits a vault. TargetAmount is what the owner asked for
// (already calculator-encoded on chain); Amount is the raw fixed-decimal
// integer that actually settled.
type WithdrawEvent struct {
	EventMeta
	Token        common.Address
	VaultID      common.Hash
	TargetAmount Float
	Amount       *big.Int
}

// AddOrderEvent announces a new (or re-added) order.
type AddOrderEvent struct {
	EventMeta
	OrderHash common.Hash
	Order     OrderDef
}

// RemoveOrderEvent deactivates an order.
type RemoveOrderEvent struct {
	EventMeta
	OrderHash common.Hash
	Order     OrderDef
}

// MetaEvent attaches a metadata payload to the order identified by Subject.
type MetaEvent struct {
	EventMeta
	Subject common.Hash
	Payload []byte
}

// ClearEvent is the announce half of a settlement (phase 1).
type ClearEvent struct {
	EventMeta
	Alice  OrderDef
	Bob    OrderDef
	Config ClearConfig
}

// AfterClearEvent is the settle half of a settlement (phase 2).
type AfterClearEvent struct {
	EventMeta
	State ClearStateChange
}

func (m EventMeta) Meta() EventMeta { return m }

// RawLog is the storable form of an undecoded chain log, used for the S3
// archive and replay.
type RawLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        []byte         `json:"data"`
	BlockNumber uint64         `json:"blockNumber"`
	BlockTime   time.Time      `json:"blockTime"`
	TxHash      common.Hash    `json:"txHash"`
	TxIndex     uint           `json:"txIndex"`
	LogIndex    uint           `json:"logIndex"`
}
