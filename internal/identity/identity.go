// Package identity derives the content-addressed ids used by every entity in
// the ledger. All ids are keccak-256 over concatenated canonical byte
// encodings of the entity's natural key, so re-processing the same event
// stream always produces the same graph.
package identity

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quaylabs/obindexer/internal/domain"
)

// EventID identifies one log: keccak(contract ‖ txHash ‖ bigEndian(logIndex)).
func EventID(m domain.EventMeta) common.Hash {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(m.LogIndex))
	return common.BytesToHash(ethcrypto.Keccak256(
		m.Orderbook.Bytes(), m.TxHash.Bytes(), idx[:],
	))
}

// VaultKey identifies a vault: keccak(orderbook ‖ owner ‖ token ‖ vaultId).
func VaultKey(orderbook, owner, token common.Address, vaultID common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		orderbook.Bytes(), owner.Bytes(), token.Bytes(), vaultID.Bytes(),
	))
}

// OrderKey identifies an order entity: keccak(orderbook ‖ orderHash).
func OrderKey(orderbook common.Address, orderHash common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		orderbook.Bytes(), orderHash.Bytes(),
	))
}

// TradeID identifies one counterparty's trade in one settlement event.
func TradeID(eventID, orderHash common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		eventID.Bytes(), orderHash.Bytes(),
	))
}

// BalanceChangeID identifies one vault delta within one settlement event.
func BalanceChangeID(eventID, vaultEntityID common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		eventID.Bytes(), vaultEntityID.Bytes(),
	))
}

// BountyID identifies a clear bounty record.
func BountyID(vaultEntityID, eventID common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		vaultEntityID.Bytes(), eventID.Bytes(),
	))
}

// CorrelationKey links the announce half of a settlement to its settle half
// within one transaction: keccak(contract ‖ txHash).
func CorrelationKey(contract common.Address, txHash common.Hash) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		contract.Bytes(), txHash.Bytes(),
	))
}

// ---------------------------------------------------------------------------
// Canonical order encoding. The order hash is keccak-256 of the ABI encoding
// of the order struct, matching what the contract itself hashes, so the hash
// computed from a clear announce matches the hash carried by add/remove
// events for the same order.
// ---------------------------------------------------------------------------

var orderTupleType = mustNewType("tuple", []abi.ArgumentMarshaling{
	{Name: "owner", Type: "address"},
	{Name: "evaluable", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "interpreter", Type: "address"},
		{Name: "store", Type: "address"},
		{Name: "bytecode", Type: "bytes"},
	}},
	{Name: "validInputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "vaultId", Type: "bytes32"},
	}},
	{Name: "validOutputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "vaultId", Type: "bytes32"},
	}},
	{Name: "nonce", Type: "bytes32"},
})

var orderArguments = abi.Arguments{{Type: orderTupleType}}

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("identity: build abi type %s: %v", t, err))
	}
	return typ
}

// abiIO mirrors the validInputs/validOutputs tuple components for packing.
type abiIO struct {
	Token   common.Address
	VaultId [32]byte
}

// abiOrder mirrors the order tuple components for packing.
type abiOrder struct {
	Owner     common.Address
	Evaluable struct {
		Interpreter common.Address
		Store       common.Address
		Bytecode    []byte
	}
	ValidInputs  []abiIO
	ValidOutputs []abiIO
	Nonce        [32]byte
}

// EncodeOrder returns the canonical ABI encoding of an order definition.
func EncodeOrder(o domain.OrderDef) ([]byte, error) {
	enc := abiOrder{
		Owner:        o.Owner,
		ValidInputs:  make([]abiIO, len(o.ValidInputs)),
		ValidOutputs: make([]abiIO, len(o.ValidOutputs)),
		Nonce:        o.Nonce,
	}
	enc.Evaluable.Interpreter = o.Evaluable.Interpreter
	enc.Evaluable.Store = o.Evaluable.Store
	enc.Evaluable.Bytecode = o.Evaluable.Bytecode
	for i, io := range o.ValidInputs {
		enc.ValidInputs[i] = abiIO{Token: io.Token, VaultId: io.VaultID}
	}
	for i, io := range o.ValidOutputs {
		enc.ValidOutputs[i] = abiIO{Token: io.Token, VaultId: io.VaultID}
	}

	packed, err := orderArguments.Pack(enc)
	if err != nil {
		return nil, fmt.Errorf("identity: encode order: %w", err)
	}
	return packed, nil
}

// HashOrder computes the order hash from the canonical encoding.
func HashOrder(o domain.OrderDef) (common.Hash, error) {
	packed, err := EncodeOrder(o)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(ethcrypto.Keccak256(packed)), nil
}
