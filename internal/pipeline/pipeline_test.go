package pipeline

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/engine"
	"github.com/quaylabs/obindexer/internal/identity"
	"github.com/quaylabs/obindexer/internal/observability"
	"github.com/quaylabs/obindexer/internal/store/memory"
)

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

func encodeFloat(v *big.Int) domain.Float {
	u := new(big.Int).Mod(v, twoPow256)
	var f domain.Float
	u.FillBytes(f[:])
	return f
}

func decodeFloat(f domain.Float) *big.Int {
	v := new(big.Int).SetBytes(f[:])
	if f[0]&0x80 != 0 {
		v.Sub(v, twoPow256)
	}
	return v
}

type fakeCalc struct{}

func (fakeCalc) Add(ctx context.Context, a, b domain.Float) (domain.Float, error) {
	return encodeFloat(new(big.Int).Add(decodeFloat(a), decodeFloat(b))), nil
}

func (fakeCalc) Sub(ctx context.Context, a, b domain.Float) (domain.Float, error) {
	return encodeFloat(new(big.Int).Sub(decodeFloat(a), decodeFloat(b))), nil
}

func (fakeCalc) Minus(ctx context.Context, a domain.Float) (domain.Float, error) {
	return encodeFloat(new(big.Int).Neg(decodeFloat(a))), nil
}

func (fakeCalc) Gt(ctx context.Context, a, b domain.Float) (bool, error) {
	return decodeFloat(a).Cmp(decodeFloat(b)) > 0, nil
}

func (fakeCalc) FromFixedDecimal(ctx context.Context, value *big.Int, decimals uint8) (domain.Float, error) {
	return encodeFloat(value), nil
}

func (fakeCalc) Parse(ctx context.Context, s string) (domain.Float, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return domain.Float{}, assert.AnError
	}
	return encodeFloat(v), nil
}

type fakeTokenSource struct{}

func (fakeTokenSource) Metadata(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	name := "Token"
	symbol := "TKN"
	decimals := uint8(18)
	return domain.ERC20{Address: addr, Name: &name, Symbol: &symbol, Decimals: &decimals}, nil
}

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Stores) {
	t.Helper()
	stores := memory.New()
	log := slog.New(slog.DiscardHandler)
	tokens := engine.NewTokenRegistry(stores.Tokens, nil, fakeTokenSource{}, log)
	metrics := observability.New(prometheus.NewRegistry())
	eng := engine.New(stores.Bundle(), fakeCalc{}, tokens, nil, metrics, log)
	return eng, stores
}

var (
	testOrderbook  = common.HexToAddress("0xff")
	otherOrderbook = common.HexToAddress("0xee")
)

// The event signatures mirror the orderbook contract, so the derived topics
// match what the decoder expects.
const depositABIJSON = `[{"type":"event","name":"Deposit","inputs":[
	{"name":"sender","type":"address"},
	{"name":"token","type":"address"},
	{"name":"vaultId","type":"bytes32"},
	{"name":"amount","type":"uint256"}]}]`

const settlementABIJSON = `[
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

// Pack-side mirrors of the settlement tuples.

type packIO struct {
	Token   common.Address
	VaultId [32]byte
}

type packEvaluable struct {
	Interpreter common.Address
	Store       common.Address
	Bytecode    []byte
}

type packOrder struct {
	Owner        common.Address
	Evaluable    packEvaluable
	ValidInputs  []packIO
	ValidOutputs []packIO
	Nonce        [32]byte
}

type packClearConfig struct {
	AliceInputIOIndex  *big.Int
	AliceOutputIOIndex *big.Int
	BobInputIOIndex    *big.Int
	BobOutputIOIndex   *big.Int
	AliceBountyVaultId [32]byte
	BobBountyVaultId   [32]byte
}

type packClearState struct {
	AliceOutput [32]byte
	BobOutput   [32]byte
	AliceInput  [32]byte
	BobInput    [32]byte
}

func testPackOrder(owner common.Address, inToken, outToken common.Address) packOrder {
	return packOrder{
		Owner:        owner,
		ValidInputs:  []packIO{{Token: inToken, VaultId: [32]byte(common.HexToHash("0x01"))}},
		ValidOutputs: []packIO{{Token: outToken, VaultId: [32]byte(common.HexToHash("0x02"))}},
		Nonce:        [32]byte(common.HexToHash("0x0e")),
	}
}

func clearLog(t *testing.T, block uint64, txIndex, logIndex uint, txHash common.Hash, alice, bob packOrder) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(settlementABIJSON))
	require.NoError(t, err)
	ev := parsed.Events["Clear"]

	cfg := packClearConfig{
		AliceInputIOIndex:  big.NewInt(0),
		AliceOutputIOIndex: big.NewInt(0),
		BobInputIOIndex:    big.NewInt(0),
		BobOutputIOIndex:   big.NewInt(0),
		AliceBountyVaultId: [32]byte(common.HexToHash("0xba")),
		BobBountyVaultId:   [32]byte(common.HexToHash("0xbb")),
	}
	data, err := ev.Inputs.Pack(common.HexToAddress("0xcc"), alice, bob, cfg)
	require.NoError(t, err)

	return types.Log{
		Address:     testOrderbook,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		TxIndex:     txIndex,
		Index:       logIndex,
	}
}

func afterClearLog(t *testing.T, block uint64, txIndex, logIndex uint, txHash common.Hash, amount int64) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(settlementABIJSON))
	require.NoError(t, err)
	ev := parsed.Events["AfterClear"]

	v := [32]byte(encodeFloat(big.NewInt(amount)))
	state := packClearState{AliceOutput: v, BobOutput: v, AliceInput: v, BobInput: v}
	data, err := ev.Inputs.Pack(common.HexToAddress("0xcc"), state)
	require.NoError(t, err)

	return types.Log{
		Address:     testOrderbook,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		TxIndex:     txIndex,
		Index:       logIndex,
	}
}

func depositLog(t *testing.T, orderbook common.Address, block uint64, txIndex, logIndex uint, txHash common.Hash, amount int64) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(depositABIJSON))
	require.NoError(t, err)
	ev := parsed.Events["Deposit"]

	// The vault id must be the full 32-byte word, not a left-aligned prefix,
	// or the derived vault key won't match lookups by hash.
	data, err := ev.Inputs.Pack(
		common.HexToAddress("0xaa"),
		common.HexToAddress("0x11"),
		[32]byte(common.HexToHash("0x01")),
		big.NewInt(amount),
	)
	require.NoError(t, err)

	return types.Log{
		Address:     orderbook,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		TxIndex:     txIndex,
		Index:       logIndex,
	}
}

func TestSortLogsChainOrder(t *testing.T) {
	logs := []types.Log{
		{BlockNumber: 2, TxIndex: 0, Index: 0},
		{BlockNumber: 1, TxIndex: 1, Index: 5},
		{BlockNumber: 1, TxIndex: 0, Index: 3},
		{BlockNumber: 1, TxIndex: 0, Index: 1},
	}
	sortLogs(logs)

	assert.Equal(t, uint64(1), logs[0].BlockNumber)
	assert.Equal(t, uint(1), logs[0].Index)
	assert.Equal(t, uint(3), logs[1].Index)
	assert.Equal(t, uint(1), logs[2].TxIndex)
	assert.Equal(t, uint64(2), logs[3].BlockNumber)
}

func TestRunLogsAppliesDepositsInOrder(t *testing.T) {
	eng, stores := newTestEngine(t)
	ctx := context.Background()

	tx1 := common.HexToHash("0x71")
	tx2 := common.HexToHash("0x72")
	logs := []types.Log{
		depositLog(t, testOrderbook, 10, 0, 0, tx1, 100),
		depositLog(t, testOrderbook, 10, 1, 1, tx2, 200),
	}

	blockTime := func(context.Context, uint64) (time.Time, error) {
		return time.Unix(1700000000, 0).UTC(), nil
	}
	require.NoError(t, runLogs(ctx, eng, logs, blockTime))

	vaultID := identity.VaultKey(
		common.HexToAddress("0xff"),
		common.HexToAddress("0xaa"),
		common.HexToAddress("0x11"),
		common.HexToHash("0x01"),
	)
	vault, err := stores.Vaults.Get(ctx, vaultID)
	require.NoError(t, err)
	assert.Equal(t, encodeFloat(big.NewInt(300)), vault.Balance)

	deposits, err := stores.VaultEvents.ListDepositsByVault(ctx, vaultID, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, deposits, 2)
}

func TestRunLogsSkipsUnknownTopics(t *testing.T) {
	eng, stores := newTestEngine(t)
	ctx := context.Background()

	logs := []types.Log{
		{
			Address:     common.HexToAddress("0xff"),
			Topics:      []common.Hash{common.HexToHash("0xdead")},
			BlockNumber: 10,
			TxHash:      common.HexToHash("0x71"),
		},
		depositLog(t, testOrderbook, 10, 1, 1, common.HexToHash("0x72"), 50),
	}

	blockTime := func(context.Context, uint64) (time.Time, error) {
		return time.Unix(1700000000, 0).UTC(), nil
	}
	require.NoError(t, runLogs(ctx, eng, logs, blockTime))

	vaultID := identity.VaultKey(
		common.HexToAddress("0xff"),
		common.HexToAddress("0xaa"),
		common.HexToAddress("0x11"),
		common.HexToHash("0x01"),
	)
	vault, err := stores.Vaults.Get(ctx, vaultID)
	require.NoError(t, err)
	assert.Equal(t, encodeFloat(big.NewInt(50)), vault.Balance)
}

func TestRunLogsKeepsSettlementAcrossInterleavedOrderbook(t *testing.T) {
	// One transaction can carry logs from several tracked orderbooks. A
	// deposit emitted by a second contract between the announce and settle
	// halves must not close the first orderbook's transaction early.
	eng, stores := newTestEngine(t)
	ctx := context.Background()

	tx := common.HexToHash("0x7a")
	alice := testPackOrder(common.HexToAddress("0xa1"), common.HexToAddress("0x11"), common.HexToAddress("0x22"))
	bob := testPackOrder(common.HexToAddress("0xb1"), common.HexToAddress("0x22"), common.HexToAddress("0x11"))

	logs := []types.Log{
		clearLog(t, 10, 0, 0, tx, alice, bob),
		depositLog(t, otherOrderbook, 10, 0, 1, tx, 100),
		afterClearLog(t, 10, 0, 2, tx, 5),
	}

	blockTime := func(context.Context, uint64) (time.Time, error) {
		return time.Unix(1700000000, 0).UTC(), nil
	}
	require.NoError(t, runLogs(ctx, eng, logs, blockTime))

	clears, err := stores.Clears.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, clears, 1)
	assert.Equal(t, 0, stores.Staging.Count())
}

func TestCommitLogsWritesCheckpointWithEntities(t *testing.T) {
	eng, stores := newTestEngine(t)
	ctx := context.Background()

	logs := []types.Log{
		depositLog(t, testOrderbook, 10, 0, 0, common.HexToHash("0x71"), 100),
	}
	blockTime := func(context.Context, uint64) (time.Time, error) {
		return time.Unix(1700000000, 0).UTC(), nil
	}
	cp := domain.Checkpoint{BlockNumber: 10, UpdatedAt: time.Unix(1700000100, 0).UTC()}

	require.NoError(t, commitLogs(ctx, stores, eng, logs, blockTime, cp))

	got, err := stores.Checkpoints.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.BlockNumber)

	vaultID := identity.VaultKey(
		common.HexToAddress("0xff"),
		common.HexToAddress("0xaa"),
		common.HexToAddress("0x11"),
		common.HexToHash("0x01"),
	)
	vault, err := stores.Vaults.Get(ctx, vaultID)
	require.NoError(t, err)
	assert.Equal(t, encodeFloat(big.NewInt(100)), vault.Balance)
}

func TestCommitLogsFailureLeavesCheckpoint(t *testing.T) {
	// The cursor must never advance past a batch that did not fully apply.
	eng, stores := newTestEngine(t)
	ctx := context.Background()

	logs := []types.Log{
		depositLog(t, testOrderbook, 10, 0, 0, common.HexToHash("0x71"), 100),
	}
	blockTime := func(context.Context, uint64) (time.Time, error) {
		return time.Time{}, assert.AnError
	}
	cp := domain.Checkpoint{BlockNumber: 10, UpdatedAt: time.Unix(1700000100, 0).UTC()}

	require.Error(t, commitLogs(ctx, stores, eng, logs, blockTime, cp))

	_, err := stores.Checkpoints.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
