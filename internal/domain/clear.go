package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Clear summarizes one exchange-vs-exchange settlement between two
// counterparty orders. Bounty amounts are clamped to zero when the surplus
// is zero or negative; the bounty references are only set when a ClearBounty
// record was actually created.
type Clear struct {
	ID            common.Hash // event id of the settle event
	Orderbook     common.Address
	Sender        common.Address
	AliceInput    Float
	AliceOutput   Float
	BobInput      Float
	BobOutput     Float
	AliceBounty   Float
	BobBounty     Float
	AliceBountyID *common.Hash
	BobBountyID   *common.Hash
	TxHash        common.Hash
	Timestamp     time.Time
}

// ClearBounty records a strictly-positive settlement surplus paid into the
// settle sender's bounty vault.
type ClearBounty struct {
	ID         common.Hash // keccak(vaultEntityId, eventId)
	VaultID    common.Hash
	Sender     common.Address
	Amount     Float
	OldBalance Float
	NewBalance Float
	TxHash     common.Hash
	Timestamp  time.Time
}

// ClearStaging is the short-lived record written by the announce half of a
// settlement and consumed by the settle half. It must not outlive its owning
// transaction; a surviving record is an orphan and is reported, not kept.
type ClearStaging struct {
	ID        common.Hash // keccak(contract, txHash)
	Orderbook common.Address
	TxHash    common.Hash

	Alice ClearStagingSide
	Bob   ClearStagingSide
}

// ClearStagingSide holds one counterparty's resolved slots: the concrete
// (token, vaultId) pairs selected by the announce event's index
// configuration, plus the party's order hash and bounty vault id.
type ClearStagingSide struct {
	Address       common.Address
	OrderHash     common.Hash
	InputToken    common.Address
	InputVaultID  common.Hash
	OutputToken   common.Address
	OutputVaultID common.Hash
	BountyVaultID common.Hash
}

// Checkpoint marks the last block whose events were all durably committed.
type Checkpoint struct {
	BlockNumber uint64
	BlockHash   common.Hash
	UpdatedAt   time.Time
}
