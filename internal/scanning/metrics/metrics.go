package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksTotal tracks chunks by terminal state per workflow
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicks_chunks_total",
			Help: "Total number of chunks by terminal state",
		},
		[]string{"workflow", "state"},
	)

	// SplitsTotal tracks range halvings after recoverable failures
	SplitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicks_splits_total",
			Help: "Total number of time range splits after recoverable failures",
		},
		[]string{"workflow"},
	)

	// FloorHitsTotal tracks recursion floors (span, depth, degenerate)
	FloorHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicks_floor_hits_total",
			Help: "Total number of times a split floor was reached",
		},
		[]string{"workflow", "reason", "fallback"},
	)

	// PermanentFailuresTotal tracks non-retryable query failures
	PermanentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicks_permanent_failures_total",
			Help: "Total number of permanent query failures",
		},
		[]string{"workflow"},
	)

	// QueryDuration tracks primary query latency
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slicks_query_duration_seconds",
			Help:    "Primary query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	// IncompleteRangesTotal tracks ranges dropped without data
	IncompleteRangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slicks_incomplete_ranges_total",
			Help: "Total number of ranges whose data was dropped at a floor",
		},
		[]string{"workflow"},
	)

	// QueueDepth tracks incomplete ranges waiting for a rescan
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slicks_rescan_queue_depth",
			Help: "Number of incomplete ranges queued for rescan",
		},
		[]string{"kind", "dataset"},
	)

	// CatalogPoolUsage tracks run catalog connection pool usage percentage
	CatalogPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slicks_catalog_pool_usage_percent",
			Help: "Run catalog connection pool usage percentage",
		},
	)
)
