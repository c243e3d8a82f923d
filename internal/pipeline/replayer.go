package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	s3blob "github.com/quaylabs/obindexer/internal/blob/s3"
	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/engine"
	"github.com/quaylabs/obindexer/internal/observability"
	"github.com/quaylabs/obindexer/internal/platform/evm"
)

// Replayer rebuilds the entity graph from archived raw logs instead of an
// RPC node. Because entity IDs are content-derived, replaying the same
// history into a fresh database produces the same graph the live indexer
// built.
type Replayer struct {
	archive *s3blob.LogArchive
	engine  *engine.Engine
	db      StoreTx
	network string
	metrics *observability.Metrics
	log     *slog.Logger
}

// NewReplayer wires a Replayer for the given network's archive.
func NewReplayer(
	archive *s3blob.LogArchive,
	eng *engine.Engine,
	db StoreTx,
	network string,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Replayer {
	return &Replayer{
		archive: archive,
		engine:  eng,
		db:      db,
		network: network,
		metrics: metrics,
		log:     log.With("component", "replayer"),
	}
}

// Run processes every archived batch in block order and returns when the
// archive is exhausted.
func (r *Replayer) Run(ctx context.Context) error {
	runID := uuid.NewString()

	batches, err := r.archive.Batches(ctx, r.network)
	if err != nil {
		return fmt.Errorf("pipeline: list archive batches: %w", err)
	}
	r.log.Info("replay starting", "run_id", runID, "batches", len(batches))

	for _, info := range batches {
		if err := r.replayBatch(ctx, info.Path); err != nil {
			return err
		}
	}

	r.log.Info("replay complete", "run_id", runID, "batches", len(batches))
	return nil
}

func (r *Replayer) replayBatch(ctx context.Context, path string) error {
	raws, err := r.archive.ReadBatch(ctx, path)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}

	// Block timestamps travel with the archived logs, so replay never
	// needs a node.
	times := make(map[uint64]time.Time, len(raws))
	logs := make([]types.Log, len(raws))
	for i, raw := range raws {
		times[raw.BlockNumber] = raw.BlockTime
		logs[i] = evm.ChainLogFromRaw(raw)
	}
	sortLogs(logs)

	blockTime := func(_ context.Context, number uint64) (time.Time, error) {
		ts, ok := times[number]
		if !ok {
			return time.Time{}, fmt.Errorf("pipeline: no archived timestamp for block %d", number)
		}
		return ts, nil
	}

	last := raws[len(raws)-1]
	for _, raw := range raws {
		if raw.BlockNumber > last.BlockNumber {
			last = raw
		}
	}
	cp := domain.Checkpoint{BlockNumber: last.BlockNumber, UpdatedAt: time.Now().UTC()}

	if err := commitLogs(ctx, r.db, r.engine, logs, blockTime, cp); err != nil {
		return fmt.Errorf("pipeline: replay batch %s: %w", path, err)
	}
	r.metrics.CheckpointHeight.Set(float64(last.BlockNumber))

	r.log.Info("batch replayed", "path", path, "logs", len(raws))
	return nil
}
