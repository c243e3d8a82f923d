package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeVaultBalanceChange is the immutable record of a single signed delta
// applied to one vault as part of one trade. NewBalance is always the
// calculator sum of OldBalance and Amount.
type TradeVaultBalanceChange struct {
	ID         common.Hash // keccak(eventId, vaultEntityId)
	VaultID    common.Hash
	TxHash     common.Hash
	Amount     Float
	OldBalance Float
	NewBalance Float
	Timestamp  time.Time
}

// Trade links one counterparty's input and output balance changes for one
// settlement event. The two changes may belong to different vaults and
// different tokens.
type Trade struct {
	ID             common.Hash // keccak(eventId, orderHash)
	Orderbook      common.Address
	OrderID        common.Hash
	OrderHash      common.Hash
	InputChangeID  common.Hash
	OutputChangeID common.Hash
	TxHash         common.Hash
	Timestamp      time.Time
}
