package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/quaylabs/obindexer/internal/blob/s3"
	"github.com/quaylabs/obindexer/internal/cache/redis"
	"github.com/quaylabs/obindexer/internal/config"
	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/engine"
	"github.com/quaylabs/obindexer/internal/observability"
	"github.com/quaylabs/obindexer/internal/platform/evm"
	"github.com/quaylabs/obindexer/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Stores      domain.Stores
	Checkpoints domain.CheckpointStore
	DB          *postgres.TxRunner

	TokenCache domain.TokenCache // nil when Redis is disabled
	SignalBus  domain.SignalBus  // nil when Redis is disabled

	Archive *s3blob.LogArchive // nil when S3 is disabled

	Fetcher *evm.LogFetcher // nil in server mode
	Engine  *engine.Engine  // nil in server mode

	Registry *prometheus.Registry
	Metrics  *observability.Metrics
}

// needsChain returns true for modes that talk to an RPC node. Replay also
// needs the node: ledger arithmetic goes through the on-chain calculator
// even when the logs come from the archive.
func needsChain(mode string) bool {
	switch mode {
	case "index", "replay", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps := &Dependencies{
		Registry: registry,
		Metrics:  observability.New(registry),
	}

	// PostgreSQL - every mode persists or reads the entity graph.
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Stores = postgres.NewStores(pool)
	deps.Checkpoints = postgres.NewCheckpointStore(pool)
	deps.DB = postgres.NewTxRunner(pool)

	// Redis - optional token cache and live update bus.
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.TokenCache = redis.NewTokenCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// S3 - optional raw log archive.
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archive = s3blob.NewLogArchive(s3Client)
	}

	// Chain client, calculator, and the event engine.
	if needsChain(mode) {
		evmClient, err := evm.Dial(ctx, cfg.Chain.RPCURL, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: rpc: %w", err)
		}
		closers = append(closers, evmClient.Close)

		calcAddr, err := cfg.Chain.CalculatorAddress()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		calc := evm.NewCalculator(evmClient, calcAddr)

		orderbooks, err := cfg.Chain.OrderbookAddresses()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		deps.Fetcher = evm.NewLogFetcher(evmClient, orderbooks, cfg.Chain.ChunkSize)

		tokens := engine.NewTokenRegistry(
			deps.Stores.Tokens,
			deps.TokenCache,
			evm.NewERC20Reader(evmClient),
			logger,
		)
		deps.Engine = engine.New(deps.Stores, calc, tokens, deps.SignalBus, deps.Metrics, logger)
	}

	return deps, cleanup, nil
}
