package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OBIDX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OBIDX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Chain
	setStr(&cfg.Chain.Network, "OBIDX_CHAIN_NETWORK")
	setStr(&cfg.Chain.RPCURL, "OBIDX_CHAIN_RPC_URL")
	setStringSlice(&cfg.Chain.Orderbooks, "OBIDX_CHAIN_ORDERBOOKS")
	setUint64(&cfg.Chain.ChunkSize, "OBIDX_CHAIN_CHUNK_SIZE")

	// Postgres
	setStr(&cfg.Postgres.DSN, "OBIDX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OBIDX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OBIDX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OBIDX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OBIDX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OBIDX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OBIDX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OBIDX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OBIDX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OBIDX_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setBool(&cfg.Redis.Enabled, "OBIDX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OBIDX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OBIDX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OBIDX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OBIDX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OBIDX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OBIDX_REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "OBIDX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OBIDX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OBIDX_S3_REGION")
	setStr(&cfg.S3.Bucket, "OBIDX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OBIDX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OBIDX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OBIDX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OBIDX_S3_FORCE_PATH_STYLE")

	// Indexer
	setUint64(&cfg.Indexer.StartBlock, "OBIDX_INDEXER_START_BLOCK")
	setUint64(&cfg.Indexer.Confirmations, "OBIDX_INDEXER_CONFIRMATIONS")
	setUint64(&cfg.Indexer.BatchBlocks, "OBIDX_INDEXER_BATCH_BLOCKS")
	setDuration(&cfg.Indexer.PollInterval, "OBIDX_INDEXER_POLL_INTERVAL")

	// Server
	setBool(&cfg.Server.Enabled, "OBIDX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OBIDX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OBIDX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OBIDX_SERVER_API_KEY")

	// Top-level
	setStr(&cfg.Mode, "OBIDX_MODE")
	setStr(&cfg.LogLevel, "OBIDX_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
