// Package observability holds the Prometheus instrumentation shared by the
// engine, the pipeline, and the HTTP server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the full metric set. Register one per process.
type Metrics struct {
	EventsProcessed *prometheus.CounterVec
	EventFailures   *prometheus.CounterVec

	OrphanedSettles  prometheus.Counter
	OrphanedStagings prometheus.Counter

	CalculatorFailures prometheus.Counter

	CheckpointHeight prometheus.Gauge
	LogsFetched      prometheus.Counter
	BlocksIndexed    prometheus.Counter
	ArchiveBatches   prometheus.Counter

	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WSClients       prometheus.Gauge
}

// New registers the metric set against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "events_processed_total",
			Help:      "Decoded events handled, by event type.",
		}, []string{"type"}),
		EventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "event_failures_total",
			Help:      "Events that aborted with an error, by event type.",
		}, []string{"type"}),
		OrphanedSettles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "orphaned_settles_total",
			Help:      "Settle events with no staged announce half.",
		}),
		OrphanedStagings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "orphaned_stagings_total",
			Help:      "Announce records discarded unconsumed at a transaction boundary.",
		}),
		CalculatorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "calculator_failures_total",
			Help:      "Decimal calculator calls that returned an error.",
		}),
		CheckpointHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "obindexer",
			Name:      "checkpoint_height",
			Help:      "Last fully committed block number.",
		}),
		LogsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "logs_fetched_total",
			Help:      "Raw logs fetched from the chain.",
		}),
		BlocksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "blocks_indexed_total",
			Help:      "Blocks whose events were committed.",
		}),
		ArchiveBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "archive_batches_total",
			Help:      "Raw log batches uploaded to object storage.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obindexer",
			Name:      "http_requests_total",
			Help:      "API requests, by method and status.",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "obindexer",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "obindexer",
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
}
