package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/engine"
	"github.com/quaylabs/obindexer/internal/observability"
	"github.com/quaylabs/obindexer/internal/platform/evm"
)

// LogSink receives the raw logs of each processed block range. The live
// indexer uses it to feed the S3 archive; a nil sink disables archiving.
type LogSink interface {
	Archive(ctx context.Context, fromBlock, toBlock uint64, logs []domain.RawLog) error
}

// IndexerConfig tunes the live indexing loop.
type IndexerConfig struct {
	// StartBlock is where indexing begins when no checkpoint exists,
	// typically the orderbook deployment block.
	StartBlock uint64

	// Confirmations is how many blocks behind head the indexer stays to
	// avoid processing logs that a reorg could remove.
	Confirmations uint64

	// BatchBlocks is the maximum block span of one processing pass.
	BatchBlocks uint64

	// PollInterval is the wait between head checks once caught up.
	PollInterval time.Duration
}

// Indexer is the live pipeline: fetch logs from the node, process them in
// chain order, checkpoint, repeat.
type Indexer struct {
	fetcher *evm.LogFetcher
	engine  *engine.Engine
	db      StoreTx
	sink    LogSink
	cfg     IndexerConfig
	metrics *observability.Metrics
	log     *slog.Logger
}

// NewIndexer wires an Indexer. sink may be nil.
func NewIndexer(
	fetcher *evm.LogFetcher,
	eng *engine.Engine,
	db StoreTx,
	sink LogSink,
	cfg IndexerConfig,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Indexer {
	if cfg.BatchBlocks == 0 {
		cfg.BatchBlocks = 10_000
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Indexer{
		fetcher: fetcher,
		engine:  eng,
		db:      db,
		sink:    sink,
		cfg:     cfg,
		metrics: metrics,
		log:     log.With("component", "indexer"),
	}
}

// Run executes the indexing loop until the context is canceled. A failed
// pass is retried after the poll interval; entity writes and the checkpoint
// commit in one transaction, so a retried range starts from a clean slate.
func (ix *Indexer) Run(ctx context.Context) error {
	runID := uuid.NewString()

	from, err := ix.resume(ctx)
	if err != nil {
		return err
	}
	ix.log.Info("indexer starting", "run_id", runID, "from_block", from)

	for {
		advanced, err := ix.step(ctx, &from)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ix.log.Error("indexing pass failed", "from_block", from, "error", err)
		}
		if err != nil || !advanced {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(ix.cfg.PollInterval):
			}
		}
	}
}

// step processes at most one batch of blocks. It reports whether the
// checkpoint advanced, so the caller knows to poll rather than spin when
// caught up with the chain.
func (ix *Indexer) step(ctx context.Context, from *uint64) (bool, error) {
	head, err := ix.fetcher.Head(ctx)
	if err != nil {
		return false, err
	}
	if head < ix.cfg.Confirmations {
		return false, nil
	}
	target := head - ix.cfg.Confirmations
	if target < *from {
		return false, nil
	}

	to := *from + ix.cfg.BatchBlocks - 1
	if to > target {
		to = target
	}

	if err := ix.processRange(ctx, *from, to); err != nil {
		return false, err
	}
	*from = to + 1
	return true, nil
}

func (ix *Indexer) processRange(ctx context.Context, from, to uint64) error {
	logs, err := ix.fetcher.Fetch(ctx, from, to)
	if err != nil {
		return err
	}
	ix.metrics.LogsFetched.Add(float64(len(logs)))
	sortLogs(logs)

	// One header fetch per distinct block; every log in a block shares
	// the block's timestamp.
	times := make(map[uint64]time.Time)
	blockTime := func(ctx context.Context, number uint64) (time.Time, error) {
		if ts, ok := times[number]; ok {
			return ts, nil
		}
		ts, _, err := ix.fetcher.BlockTime(ctx, number)
		if err != nil {
			return time.Time{}, err
		}
		times[number] = ts
		return ts, nil
	}

	_, hash, err := ix.fetcher.BlockTime(ctx, to)
	if err != nil {
		return fmt.Errorf("pipeline: header for checkpoint %d: %w", to, err)
	}
	cp := domain.Checkpoint{BlockNumber: to, BlockHash: hash, UpdatedAt: time.Now().UTC()}

	// Entity writes and the checkpoint commit or roll back together. A crash
	// mid-range leaves the cursor on the previous range, and re-running the
	// whole range applies every delta exactly once.
	if err := commitLogs(ctx, ix.db, ix.engine, logs, blockTime, cp); err != nil {
		return err
	}

	if ix.sink != nil && len(logs) > 0 {
		raw := make([]domain.RawLog, len(logs))
		for i, lg := range logs {
			ts, err := blockTime(ctx, lg.BlockNumber)
			if err != nil {
				return err
			}
			raw[i] = evm.RawLogFromChain(lg, ts)
		}
		if err := ix.sink.Archive(ctx, from, to, raw); err != nil {
			// Archive failures do not block indexing; the range can be
			// re-archived from the node later.
			ix.log.Error("archive batch failed", "from_block", from, "to_block", to, "error", err)
		}
	}

	ix.metrics.CheckpointHeight.Set(float64(to))
	ix.metrics.BlocksIndexed.Add(float64(to - from + 1))

	if len(logs) > 0 {
		ix.log.Info("range indexed", "from_block", from, "to_block", to, "logs", len(logs))
	}
	return nil
}

func (ix *Indexer) resume(ctx context.Context) (uint64, error) {
	var cp domain.Checkpoint
	err := ix.db.InTx(ctx, func(_ domain.Stores, checkpoints domain.CheckpointStore) error {
		var err error
		cp, err = checkpoints.Get(ctx)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return ix.cfg.StartBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pipeline: load checkpoint: %w", err)
	}
	ix.log.Info("resuming from checkpoint", "block", cp.BlockNumber)
	return cp.BlockNumber + 1, nil
}
