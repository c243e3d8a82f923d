package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quaylabs/obindexer/internal/pipeline"
	"github.com/quaylabs/obindexer/internal/server"
	"github.com/quaylabs/obindexer/internal/server/handler"
	"github.com/quaylabs/obindexer/internal/server/ws"
)

// IndexMode runs the live indexing loop only.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newIndexer(deps).Run(ctx)
	})
	return g.Wait()
}

// ServerMode serves the API over an already indexed database.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// ReplayMode rebuilds the entity graph from the S3 archive and exits when
// the archive is exhausted.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	if deps.Archive == nil {
		return fmt.Errorf("app: replay mode requires the s3 archive")
	}
	replayer := pipeline.NewReplayer(
		deps.Archive,
		deps.Engine,
		deps.DB,
		a.cfg.Chain.Network,
		deps.Metrics,
		a.logger,
	)
	return replayer.Run(ctx)
}

// FullMode runs the indexer and the API server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newIndexer(deps).Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return g.Wait()
}

// newIndexer builds the live pipeline, attaching the archive sink when S3
// is configured.
func (a *App) newIndexer(deps *Dependencies) *pipeline.Indexer {
	var sink pipeline.LogSink
	if deps.Archive != nil {
		sink = pipeline.NewArchiver(deps.Archive, a.cfg.Chain.Network, deps.Metrics, a.logger)
	}

	return pipeline.NewIndexer(
		deps.Fetcher,
		deps.Engine,
		deps.DB,
		sink,
		pipeline.IndexerConfig{
			StartBlock:    a.cfg.Indexer.StartBlock,
			Confirmations: a.cfg.Indexer.Confirmations,
			BatchBlocks:   a.cfg.Indexer.BatchBlocks,
			PollInterval:  a.cfg.Indexer.PollInterval.Duration,
		},
		deps.Metrics,
		a.logger,
	)
}

// startServer registers the HTTP server and, when a signal bus is present,
// the WebSocket hub on the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, deps.Metrics, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checkpoints, a.logger),
		Vaults: handler.NewVaultHandler(deps.Stores.Vaults, deps.Stores.VaultEvents, deps.Stores.Trades, a.logger),
		Orders: handler.NewOrderHandler(deps.Stores.Orders, deps.Stores.Trades, a.logger),
		Trades: handler.NewTradeHandler(deps.Stores.Trades, a.logger),
		Clears: handler.NewClearHandler(deps.Stores.Clears, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.Registry, deps.Metrics, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})
}
