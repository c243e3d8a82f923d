package pipeline

import (
	"context"
	"log/slog"

	s3blob "github.com/quaylabs/obindexer/internal/blob/s3"
	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/observability"
)

// Archiver is the LogSink that writes raw log batches to the S3 archive,
// keyed by network name.
type Archiver struct {
	archive *s3blob.LogArchive
	network string
	metrics *observability.Metrics
	log     *slog.Logger
}

var _ LogSink = (*Archiver)(nil)

// NewArchiver creates an Archiver for the given network.
func NewArchiver(archive *s3blob.LogArchive, network string, metrics *observability.Metrics, log *slog.Logger) *Archiver {
	return &Archiver{
		archive: archive,
		network: network,
		metrics: metrics,
		log:     log.With("component", "archiver"),
	}
}

// Archive uploads one block range as a JSONL batch.
func (a *Archiver) Archive(ctx context.Context, fromBlock, toBlock uint64, logs []domain.RawLog) error {
	if err := a.archive.WriteBatch(ctx, a.network, fromBlock, toBlock, logs); err != nil {
		return err
	}
	a.metrics.ArchiveBatches.Inc()
	a.log.Debug("batch archived", "from_block", fromBlock, "to_block", toBlock, "logs", len(logs))
	return nil
}
