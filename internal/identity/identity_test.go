package identity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
)

func TestEventIDDeterministic(t *testing.T) {
	meta := domain.EventMeta{
		Orderbook: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TxHash:    common.HexToHash("0xaaaa"),
		LogIndex:  7,
	}
	assert.Equal(t, EventID(meta), EventID(meta))

	other := meta
	other.LogIndex = 8
	assert.NotEqual(t, EventID(meta), EventID(other))
}

func TestVaultKeyDistinguishesEveryComponent(t *testing.T) {
	ob := common.HexToAddress("0x01")
	owner := common.HexToAddress("0x02")
	token := common.HexToAddress("0x03")
	vid := common.HexToHash("0x04")

	base := VaultKey(ob, owner, token, vid)
	assert.Equal(t, base, VaultKey(ob, owner, token, vid))
	assert.NotEqual(t, base, VaultKey(common.HexToAddress("0x05"), owner, token, vid))
	assert.NotEqual(t, base, VaultKey(ob, common.HexToAddress("0x05"), token, vid))
	assert.NotEqual(t, base, VaultKey(ob, owner, common.HexToAddress("0x05"), vid))
	assert.NotEqual(t, base, VaultKey(ob, owner, token, common.HexToHash("0x05")))
}

func TestCorrelationKeyMatchesAcrossPhases(t *testing.T) {
	contract := common.HexToAddress("0xdead")
	tx := common.HexToHash("0xbeef")
	assert.Equal(t, CorrelationKey(contract, tx), CorrelationKey(contract, tx))
	assert.NotEqual(t, CorrelationKey(contract, tx), CorrelationKey(contract, common.HexToHash("0xbeee")))
}

func testOrder() domain.OrderDef {
	return domain.OrderDef{
		Owner: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Evaluable: domain.Evaluable{
			Interpreter: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
			Store:       common.HexToAddress("0x00000000000000000000000000000000000000cc"),
			Bytecode:    []byte{0x01, 0x02, 0x03},
		},
		ValidInputs: []domain.IO{
			{Token: common.HexToAddress("0x01"), VaultID: common.HexToHash("0x11")},
		},
		ValidOutputs: []domain.IO{
			{Token: common.HexToAddress("0x02"), VaultID: common.HexToHash("0x22")},
		},
		Nonce: common.HexToHash("0x33"),
	}
}

func TestHashOrderStable(t *testing.T) {
	a, err := HashOrder(testOrder())
	require.NoError(t, err)
	b, err := HashOrder(testOrder())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashOrderSensitiveToContent(t *testing.T) {
	base, err := HashOrder(testOrder())
	require.NoError(t, err)

	changed := testOrder()
	changed.Nonce = common.HexToHash("0x34")
	h, err := HashOrder(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	changed = testOrder()
	changed.Evaluable.Bytecode = []byte{0x01, 0x02, 0x04}
	h, err = HashOrder(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	changed = testOrder()
	changed.ValidInputs[0].VaultID = common.HexToHash("0x12")
	h, err = HashOrder(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)
}

func TestEncodeOrderNonEmpty(t *testing.T) {
	enc, err := EncodeOrder(testOrder())
	require.NoError(t, err)
	// head offset word plus the tuple body
	assert.Greater(t, len(enc), 32)
}
