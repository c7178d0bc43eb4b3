package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WindowsDispatched tracks windows handed to a connector per source and scan type
	WindowsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_windows_dispatched_total",
			Help: "Total number of windows dispatched",
		},
		[]string{"source", "scan_type"},
	)

	// WindowsSkipped tracks planned windows that covered no time
	WindowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_windows_skipped_total",
			Help: "Total number of empty windows skipped",
		},
		[]string{"source"},
	)

	// DispatchErrorsTotal tracks failed dispatches after retries
	DispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_dispatch_errors_total",
			Help: "Total number of dispatch errors",
		},
		[]string{"source", "error_type"},
	)

	// DispatchLatency tracks connector latency including retries
	DispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestor_dispatch_latency_seconds",
			Help:    "Dispatch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "scan_type"},
	)

	// WindowSpan tracks the length of bounded windows
	WindowSpan = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestor_window_span_seconds",
			Help:    "Length of dispatched bounded windows in seconds",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		},
		[]string{"source", "scan_type"},
	)

	// BackfillProgress tracks the covered fraction of the current backfill
	BackfillProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestor_backfill_progress_ratio",
			Help: "Fraction of the onboarding lookback covered by backward legs",
		},
		[]string{"source"},
	)

	// ForwardLag tracks how far the forward cursor trails the clock
	ForwardLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestor_forward_lag_seconds",
			Help: "Seconds between now and the persisted forward cursor",
		},
		[]string{"source"},
	)

	// LockContention tracks ticks skipped because another worker held the lock
	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_lock_contention_total",
			Help: "Total number of ticks skipped on a held source lock",
		},
		[]string{"source"},
	)

	// VersionConflicts tracks commits that lost an optimistic lock race
	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_version_conflicts_total",
			Help: "Total number of trigger version conflicts",
		},
		[]string{"source"},
	)

	// WindowsPruned tracks window log rows removed by retention
	WindowsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestor_windows_pruned_total",
			Help: "Total number of window records pruned",
		},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestor_db_connection_pool_usage_percent",
			Help: "Database connection pool usage",
		},
	)
)
