package evm

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
)

func packEvent(t *testing.T, name string, args ...any) []byte {
	t.Helper()
	data, err := orderbookABI.Events[name].Inputs.Pack(args...)
	require.NoError(t, err)
	return data
}

func testLog(t *testing.T, name string, args ...any) types.Log {
	t.Helper()
	return types.Log{
		Address:     common.HexToAddress("0x0b"),
		Topics:      []common.Hash{orderbookABI.Events[name].ID},
		Data:        packEvent(t, name, args...),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x7a"),
		TxIndex:     1,
		Index:       3,
	}
}

func TestDecodeDeposit(t *testing.T) {
	sender := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token := common.HexToAddress("0x0000000000000000000000000000000000000002")
	vaultID := [32]byte{0x03}

	lg := testLog(t, "Deposit", sender, token, vaultID, big.NewInt(777))
	at := time.Unix(1700000000, 0).UTC()

	ev, err := DecodeLog(lg, at)
	require.NoError(t, err)
	dep, ok := ev.(*domain.DepositEvent)
	require.True(t, ok)

	assert.Equal(t, sender, dep.Sender)
	assert.Equal(t, token, dep.Token)
	assert.Equal(t, common.Hash(vaultID), dep.VaultID)
	assert.Equal(t, int64(777), dep.Amount.Int64())
	assert.Equal(t, uint64(42), dep.BlockNumber)
	assert.Equal(t, uint(3), dep.LogIndex)
	assert.Equal(t, at, dep.Timestamp)
}

func TestDecodeWithdraw(t *testing.T) {
	sender := common.HexToAddress("0x01")
	token := common.HexToAddress("0x02")
	vaultID := [32]byte{0x03}
	target := [32]byte{0x04}

	lg := testLog(t, "Withdraw", sender, token, vaultID, target, big.NewInt(10))
	ev, err := DecodeLog(lg, time.Now())
	require.NoError(t, err)
	wd, ok := ev.(*domain.WithdrawEvent)
	require.True(t, ok)
	assert.Equal(t, domain.Float(target), wd.TargetAmount)
	assert.Equal(t, int64(10), wd.Amount.Int64())
}

func TestDecodeClear(t *testing.T) {
	order := func(owner common.Address) rawOrder {
		return rawOrder{
			Owner: owner,
			ValidInputs: []rawIO{
				{Token: common.HexToAddress("0x11"), VaultId: [32]byte{0x01}},
			},
			ValidOutputs: []rawIO{
				{Token: common.HexToAddress("0x12"), VaultId: [32]byte{0x02}},
			},
			Nonce: [32]byte{0x05},
		}
	}
	cfg := rawClearConfig{
		AliceInputIOIndex:  big.NewInt(0),
		AliceOutputIOIndex: big.NewInt(0),
		BobInputIOIndex:    big.NewInt(0),
		BobOutputIOIndex:   big.NewInt(0),
		AliceBountyVaultId: [32]byte{0x0a},
		BobBountyVaultId:   [32]byte{0x0b},
	}

	sender := common.HexToAddress("0x01")
	lg := testLog(t, "Clear", sender, order(common.HexToAddress("0xa1")), order(common.HexToAddress("0xb1")), cfg)

	ev, err := DecodeLog(lg, time.Now())
	require.NoError(t, err)
	clear, ok := ev.(*domain.ClearEvent)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xa1"), clear.Alice.Owner)
	assert.Equal(t, common.HexToAddress("0xb1"), clear.Bob.Owner)
	require.Len(t, clear.Alice.ValidInputs, 1)
	assert.Equal(t, common.Hash{0x0a}, clear.Config.AliceBountyVaultID)
}

func TestDecodeAfterClear(t *testing.T) {
	state := rawClearStateChange{
		AliceOutput: [32]byte{0x01},
		BobOutput:   [32]byte{0x02},
		AliceInput:  [32]byte{0x03},
		BobInput:    [32]byte{0x04},
	}
	lg := testLog(t, "AfterClear", common.HexToAddress("0x01"), state)

	ev, err := DecodeLog(lg, time.Now())
	require.NoError(t, err)
	ac, ok := ev.(*domain.AfterClearEvent)
	require.True(t, ok)
	assert.Equal(t, domain.Float{0x03}, ac.State.AliceInput)
}

func TestDecodeUnknownTopicSkipped(t *testing.T) {
	lg := types.Log{
		Topics: []common.Hash{common.HexToHash("0xdead")},
		Data:   []byte{0x01},
	}
	ev, err := DecodeLog(lg, time.Now())
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestRawLogRoundTrip(t *testing.T) {
	lg := testLog(t, "Deposit",
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), [32]byte{0x03}, big.NewInt(1))
	at := time.Unix(1700000000, 0).UTC()

	raw := RawLogFromChain(lg, at)
	back := ChainLogFromRaw(raw)
	assert.Equal(t, lg.Address, back.Address)
	assert.Equal(t, lg.Topics, back.Topics)
	assert.Equal(t, lg.Data, back.Data)
	assert.Equal(t, lg.BlockNumber, back.BlockNumber)
	assert.Equal(t, lg.Index, back.Index)
}
