package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://rpc.example.org"
	cfg.Chain.Orderbooks = []string{"0x0000000000000000000000000000000000000b0b"}
	cfg.Chain.Calculators = map[string]string{
		"flare": "0x00000000000000000000000000000000000000ca",
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Postgres.PoolMaxConns = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "pool_max_conns")
}

func TestCalculatorAddressUnknownNetwork(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.Network = "mystery"

	_, err := cfg.Chain.CalculatorAddress()
	require.ErrorIs(t, err, domain.ErrUnknownNetwork)
}

func TestCalculatorAddressResolves(t *testing.T) {
	cfg := validConfig()

	addr, err := cfg.Chain.CalculatorAddress()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ca"), addr)
}

func TestServerOnlyModeSkipsChainValidation(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	require.NoError(t, cfg.Validate())
}

func TestReplayModeRequiresArchive(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "replay"
	cfg.S3.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OBIDX_MODE", "server")
	t.Setenv("OBIDX_SERVER_PORT", "9100")
	t.Setenv("OBIDX_CHAIN_ORDERBOOKS", "0x0000000000000000000000000000000000000001, 0x0000000000000000000000000000000000000002")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{
		"0x0000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000002",
	}, cfg.Chain.Orderbooks)
}
