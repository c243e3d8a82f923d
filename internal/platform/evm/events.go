package evm

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quaylabs/obindexer/internal/domain"
)

// orderbookABI covers the seven events the engine consumes. All parameters
// are non-indexed; the contract emits everything in the data segment.
const orderbookABIJSON = `[
  {"type":"event","name":"Deposit","inputs":[
    {"name":"sender","type":"address"},
    {"name":"token","type":"address"},
    {"name":"vaultId","type":"bytes32"},
    {"name":"amount","type":"uint256"}]},
  {"type":"event","name":"Withdraw","inputs":[
    {"name":"sender","type":"address"},
    {"name":"token","type":"address"},
    {"name":"vaultId","type":"bytes32"},
    {"name":"targetAmount","type":"bytes32"},
    {"name":"amount","type":"uint256"}]},
  {"type":"event","name":"AddOrder","inputs":[
    {"name":"sender","type":"address"},
    {"name":"orderHash","type":"bytes32"},
    {"name":"order","type":"tuple","components":[
      {"name":"owner","type":"address"},
      {"name":"evaluable","type":"tuple","components":[
        {"name":"interpreter","type":"address"},
        {"name":"store","type":"address"},
        {"name":"bytecode","type":"bytes"}]},
      {"name":"validInputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"validOutputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"nonce","type":"bytes32"}]}]},
  {"type":"event","name":"RemoveOrder","inputs":[
    {"name":"sender","type":"address"},
    {"name":"orderHash","type":"bytes32"},
    {"name":"order","type":"tuple","components":[
      {"name":"owner","type":"address"},
      {"name":"evaluable","type":"tuple","components":[
        {"name":"interpreter","type":"address"},
        {"name":"store","type":"address"},
        {"name":"bytecode","type":"bytes"}]},
      {"name":"validInputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"validOutputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"nonce","type":"bytes32"}]}]},
  {"type":"event","name":"OrderMeta","inputs":[
    {"name":"sender","type":"address"},
    {"name":"subject","type":"bytes32"},
    {"name":"meta","type":"bytes"}]},
  {"type":"event","name":"Clear","inputs":[
    {"name":"sender","type":"address"},
    {"name":"alice","type":"tuple","components":[
      {"name":"owner","type":"address"},
      {"name":"evaluable","type":"tuple","components":[
        {"name":"interpreter","type":"address"},
        {"name":"store","type":"address"},
        {"name":"bytecode","type":"bytes"}]},
      {"name":"validInputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"validOutputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"nonce","type":"bytes32"}]},
    {"name":"bob","type":"tuple","components":[
      {"name":"owner","type":"address"},
      {"name":"evaluable","type":"tuple","components":[
        {"name":"interpreter","type":"address"},
        {"name":"store","type":"address"},
        {"name":"bytecode","type":"bytes"}]},
      {"name":"validInputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"validOutputs","type":"tuple[]","components":[
        {"name":"token","type":"address"},
        {"name":"vaultId","type":"bytes32"}]},
      {"name":"nonce","type":"bytes32"}]},
    {"name":"clearConfig","type":"tuple","components":[
      {"name":"aliceInputIOIndex","type":"uint256"},
      {"name":"aliceOutputIOIndex","type":"uint256"},
      {"name":"bobInputIOIndex","type":"uint256"},
      {"name":"bobOutputIOIndex","type":"uint256"},
      {"name":"aliceBountyVaultId","type":"bytes32"},
      {"name":"bobBountyVaultId","type":"bytes32"}]}]},
  {"type":"event","name":"AfterClear","inputs":[
    {"name":"sender","type":"address"},
    {"name":"clearStateChange","type":"tuple","components":[
      {"name":"aliceOutput","type":"bytes32"},
      {"name":"bobOutput","type":"bytes32"},
      {"name":"aliceInput","type":"bytes32"},
      {"name":"bobInput","type":"bytes32"}]}]}
]`

var orderbookABI = mustParseABI(orderbookABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("evm: parse orderbook abi: %v", err))
	}
	return parsed
}

// EventTopics returns the topic0 hash of every orderbook event, for log
// filtering.
func EventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(orderbookABI.Events))
	for _, ev := range orderbookABI.Events {
		topics = append(topics, ev.ID)
	}
	return topics
}

// raw mirrors of the ABI tuple components, shaped for abi.ConvertType.

type rawIO struct {
	Token   common.Address
	VaultId [32]byte
}

type rawEvaluable struct {
	Interpreter common.Address
	Store       common.Address
	Bytecode    []byte
}

type rawOrder struct {
	Owner        common.Address
	Evaluable    rawEvaluable
	ValidInputs  []rawIO
	ValidOutputs []rawIO
	Nonce        [32]byte
}

type rawClearConfig struct {
	AliceInputIOIndex  *big.Int
	AliceOutputIOIndex *big.Int
	BobInputIOIndex    *big.Int
	BobOutputIOIndex   *big.Int
	AliceBountyVaultId [32]byte
	BobBountyVaultId   [32]byte
}

type rawClearStateChange struct {
	AliceOutput [32]byte
	BobOutput   [32]byte
	AliceInput  [32]byte
	BobInput    [32]byte
}

func (r rawOrder) toDomain() domain.OrderDef {
	def := domain.OrderDef{
		Owner: r.Owner,
		Evaluable: domain.Evaluable{
			Interpreter: r.Evaluable.Interpreter,
			Store:       r.Evaluable.Store,
			Bytecode:    r.Evaluable.Bytecode,
		},
		ValidInputs:  make([]domain.IO, len(r.ValidInputs)),
		ValidOutputs: make([]domain.IO, len(r.ValidOutputs)),
		Nonce:        common.Hash(r.Nonce),
	}
	for i, io := range r.ValidInputs {
		def.ValidInputs[i] = domain.IO{Token: io.Token, VaultID: common.Hash(io.VaultId)}
	}
	for i, io := range r.ValidOutputs {
		def.ValidOutputs[i] = domain.IO{Token: io.Token, VaultID: common.Hash(io.VaultId)}
	}
	return def
}

// DecodeLog turns one chain log into a domain event. Logs whose topic is not
// an orderbook event decode to (nil, nil) and are skipped by the caller.
func DecodeLog(lg types.Log, blockTime time.Time) (domain.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, nil
	}

	var name string
	for n, ev := range orderbookABI.Events {
		if ev.ID == lg.Topics[0] {
			name = n
			break
		}
	}
	if name == "" {
		return nil, nil
	}

	values, err := orderbookABI.Events[name].Inputs.Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s at block %d log %d: %w", name, lg.BlockNumber, lg.Index, err)
	}

	meta := domain.EventMeta{
		Orderbook:   lg.Address,
		TxHash:      lg.TxHash,
		TxIndex:     lg.TxIndex,
		LogIndex:    lg.Index,
		BlockNumber: lg.BlockNumber,
		Timestamp:   blockTime,
		Sender:      *abi.ConvertType(values[0], new(common.Address)).(*common.Address),
	}

	switch name {
	case "Deposit":
		return &domain.DepositEvent{
			EventMeta: meta,
			Token:     *abi.ConvertType(values[1], new(common.Address)).(*common.Address),
			VaultID:   common.Hash(*abi.ConvertType(values[2], new([32]byte)).(*[32]byte)),
			Amount:    values[3].(*big.Int),
		}, nil
	case "Withdraw":
		return &domain.WithdrawEvent{
			EventMeta:    meta,
			Token:        *abi.ConvertType(values[1], new(common.Address)).(*common.Address),
			VaultID:      common.Hash(*abi.ConvertType(values[2], new([32]byte)).(*[32]byte)),
			TargetAmount: domain.Float(*abi.ConvertType(values[3], new([32]byte)).(*[32]byte)),
			Amount:       values[4].(*big.Int),
		}, nil
	case "AddOrder":
		order := *abi.ConvertType(values[2], new(rawOrder)).(*rawOrder)
		return &domain.AddOrderEvent{
			EventMeta: meta,
			OrderHash: common.Hash(*abi.ConvertType(values[1], new([32]byte)).(*[32]byte)),
			Order:     order.toDomain(),
		}, nil
	case "RemoveOrder":
		order := *abi.ConvertType(values[2], new(rawOrder)).(*rawOrder)
		return &domain.RemoveOrderEvent{
			EventMeta: meta,
			OrderHash: common.Hash(*abi.ConvertType(values[1], new([32]byte)).(*[32]byte)),
			Order:     order.toDomain(),
		}, nil
	case "OrderMeta":
		return &domain.MetaEvent{
			EventMeta: meta,
			Subject:   common.Hash(*abi.ConvertType(values[1], new([32]byte)).(*[32]byte)),
			Payload:   values[2].([]byte),
		}, nil
	case "Clear":
		alice := *abi.ConvertType(values[1], new(rawOrder)).(*rawOrder)
		bob := *abi.ConvertType(values[2], new(rawOrder)).(*rawOrder)
		cfg := *abi.ConvertType(values[3], new(rawClearConfig)).(*rawClearConfig)
		return &domain.ClearEvent{
			EventMeta: meta,
			Alice:     alice.toDomain(),
			Bob:       bob.toDomain(),
			Config: domain.ClearConfig{
				AliceInputIOIndex:  cfg.AliceInputIOIndex.Uint64(),
				AliceOutputIOIndex: cfg.AliceOutputIOIndex.Uint64(),
				BobInputIOIndex:    cfg.BobInputIOIndex.Uint64(),
				BobOutputIOIndex:   cfg.BobOutputIOIndex.Uint64(),
				AliceBountyVaultID: common.Hash(cfg.AliceBountyVaultId),
				BobBountyVaultID:   common.Hash(cfg.BobBountyVaultId),
			},
		}, nil
	case "AfterClear":
		state := *abi.ConvertType(values[1], new(rawClearStateChange)).(*rawClearStateChange)
		return &domain.AfterClearEvent{
			EventMeta: meta,
			State: domain.ClearStateChange{
				AliceOutput: domain.Float(state.AliceOutput),
				BobOutput:   domain.Float(state.BobOutput),
				AliceInput:  domain.Float(state.AliceInput),
				BobInput:    domain.Float(state.BobInput),
			},
		}, nil
	}
	return nil, nil
}

// RawLogFromChain converts a chain log to its archival form.
func RawLogFromChain(lg types.Log, blockTime time.Time) domain.RawLog {
	return domain.RawLog{
		Address:     lg.Address,
		Topics:      lg.Topics,
		Data:        lg.Data,
		BlockNumber: lg.BlockNumber,
		BlockTime:   blockTime,
		TxHash:      lg.TxHash,
		TxIndex:     lg.TxIndex,
		LogIndex:    lg.Index,
	}
}

// ChainLogFromRaw is the inverse of RawLogFromChain, used by replay.
func ChainLogFromRaw(raw domain.RawLog) types.Log {
	return types.Log{
		Address:     raw.Address,
		Topics:      raw.Topics,
		Data:        raw.Data,
		BlockNumber: raw.BlockNumber,
		TxHash:      raw.TxHash,
		TxIndex:     raw.TxIndex,
		Index:       raw.LogIndex,
	}
}
