// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Dispatch metrics
	EventsApplied    *prometheus.CounterVec
	EventsSkipped    *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	EventsFailed     *prometheus.CounterVec
	ApplyLatency     *prometheus.HistogramVec
	QueueDepth       *prometheus.GaugeVec
	HighestBlockSeen *prometheus.GaugeVec

	// Feed metrics
	FeedMessages     prometheus.Counter
	FeedReconnects   prometheus.Counter
	FeedDecodeErrors prometheus.Counter

	// Snapshot metrics
	PoolMetricsWritten   prometheus.Counter
	RateSnapshotsWritten prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "domain_market_indexer"
	}

	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_applied_total",
			Help:      "Total number of events applied by contract and event name",
		}, []string{"contract", "event"}),
		EventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped by reason",
		}, []string{"reason"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_dropped_total",
			Help:      "Total number of events with no registered reducer",
		}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_failed_total",
			Help:      "Total number of events that failed with a storage error",
		}, []string{"contract", "event"}),
		ApplyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "apply_latency_seconds",
			Help:      "Event apply latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"contract"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Events waiting in the per-chain apply lane",
		}, []string{"chain_id"}),
		HighestBlockSeen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "highest_block_seen",
			Help:      "Highest block number seen per chain",
		}, []string{"chain_id"}),

		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of feed messages received",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnects",
		}),
		FeedDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of undecodable feed messages",
		}),

		PoolMetricsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "pool_metrics_written_total",
			Help:      "Total number of pool metric snapshot rows written",
		}),
		RateSnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "rate_snapshots_written_total",
			Help:      "Total number of interest rate snapshot rows written",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
