// Package config defines the top-level configuration for the orderbook
// indexer and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by OBIDX_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint and the contracts to index.
type ChainConfig struct {
	// Network names the chain, e.g. "flare" or "base". It keys the
	// calculator address table and the archive layout.
	Network string `toml:"network"`

	RPCURL string `toml:"rpc_url"`

	// Orderbooks lists the orderbook contract addresses to index.
	Orderbooks []string `toml:"orderbooks"`

	// Calculators maps network name to the deployed calculator contract.
	// Lookups for networks not in the map fail rather than defaulting.
	Calculators map[string]string `toml:"calculators"`

	// ChunkSize caps the block span of a single eth_getLogs call.
	ChunkSize uint64 `toml:"chunk_size"`
}

// CalculatorAddress resolves the calculator contract for the configured
// network, returning domain.ErrUnknownNetwork when the network has no entry.
func (c ChainConfig) CalculatorAddress() (common.Address, error) {
	addr, ok := c.Calculators[strings.ToLower(c.Network)]
	if !ok {
		return common.Address{}, fmt.Errorf("config: no calculator for network %q: %w",
			c.Network, domain.ErrUnknownNetwork)
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("config: invalid calculator address %q for network %q",
			addr, c.Network)
	}
	return common.HexToAddress(addr), nil
}

// OrderbookAddresses parses the configured orderbook addresses.
func (c ChainConfig) OrderbookAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(c.Orderbooks))
	for _, s := range c.Orderbooks {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("config: invalid orderbook address %q", s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: when
// disabled the indexer runs without the token cache and live update bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the raw log
// archive. Optional: when disabled no archive is written and replay mode is
// unavailable.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IndexerConfig holds live indexing loop parameters.
type IndexerConfig struct {
	StartBlock    uint64   `toml:"start_block"`
	Confirmations uint64   `toml:"confirmations"`
	BatchBlocks   uint64   `toml:"batch_blocks"`
	PollInterval  duration `toml:"poll_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Network:     "flare",
			Calculators: map[string]string{},
			ChunkSize:   2000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "obindexer",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "obindexer-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Indexer: IndexerConfig{
			Confirmations: 3,
			BatchBlocks:   10_000,
			PollInterval:  duration{5 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"index":  true,
	"server": true,
	"replay": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: index, server, replay, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain - required whenever events are ingested or decoded amounts are
	// computed, i.e. every mode except pure server.
	needsChain := mode == "index" || mode == "replay" || mode == "full"
	if needsChain {
		if c.Chain.Network == "" {
			errs = append(errs, "chain: network must not be empty")
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if len(c.Chain.Orderbooks) == 0 {
			errs = append(errs, "chain: at least one orderbook address is required")
		}
		for _, s := range c.Chain.Orderbooks {
			if !common.IsHexAddress(s) {
				errs = append(errs, fmt.Sprintf("chain: invalid orderbook address %q", s))
			}
		}
		if _, err := c.Chain.CalculatorAddress(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Chain.ChunkSize == 0 {
			errs = append(errs, "chain: chunk_size must be > 0")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}
	if mode == "replay" && !c.S3.Enabled {
		errs = append(errs, "s3: must be enabled for replay mode")
	}

	// Indexer
	if needsChain && c.Indexer.BatchBlocks == 0 {
		errs = append(errs, "indexer: batch_blocks must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
