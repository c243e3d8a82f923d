package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is an isolated per-owner, per-token balance slot. Its ID is the
// keccak of (orderbook, owner, token, vaultId), so replaying the same events
// always lands on the same row. The balance is the calculator-fold of every
// signed amount ever applied, in event order, starting from zero.
type Vault struct {
	ID        common.Hash
	Orderbook common.Address
	Owner     common.Address
	VaultID   common.Hash // the owner-chosen bytes32 slot id
	Token     common.Address
	Balance   Float
}

// Deposit is the append-only audit record of one deposit event.
type Deposit struct {
	ID         common.Hash // event id
	VaultID    common.Hash // vault entity id
	TxHash     common.Hash
	Sender     common.Address
	Token      common.Address
	Amount     Float
	OldBalance Float
	NewBalance Float
	Timestamp  time.Time
}

// Withdrawal is the append-only audit record of one withdraw event. Target
// is the amount the owner asked for; Amount is what actually settled (a
// withdrawal can be capped at the available balance).
type Withdrawal struct {
	ID           common.Hash
	VaultID      common.Hash
	TxHash       common.Hash
	Sender       common.Address
	Token        common.Address
	TargetAmount Float
	Amount       Float
	OldBalance   Float
	NewBalance   Float
	Timestamp    time.Time
}
