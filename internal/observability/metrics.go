package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., fitbit_ingest_...).
const namespace = "fitbit_ingest"

// apiLatencyBuckets covers Fitbit API round trips, which range from a few hundred
// milliseconds to tens of seconds for large TCX downloads.
var apiLatencyBuckets = []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60}

var (
	// -------------------------------------------------------------------------
	// API (request executor)
	// -------------------------------------------------------------------------

	// APIRequestsTotal counts attempts by outcome. code is the HTTP status or "network_error".
	// Metric: fitbit_ingest_api_requests_total
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total Fitbit API request attempts",
	}, []string{"code"})

	// APIRequestDuration measures the latency of a single attempt.
	// Metric: fitbit_ingest_api_request_duration_seconds
	APIRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Time taken by one Fitbit API request attempt",
		Buckets:   apiLatencyBuckets,
	})

	// APIWaitSeconds accumulates time spent sleeping before a retry.
	APIWaitSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "retry_wait_seconds_total",
		Help:      "Total seconds spent waiting before retrying a request",
	}, []string{"reason"}) // rate_limited, auth, server, network

	// -------------------------------------------------------------------------
	// TOKEN MANAGER
	// -------------------------------------------------------------------------

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "refresh_total",
		Help:      "Total OAuth token refresh attempts",
	}, []string{"status"}) // success, fail

	// -------------------------------------------------------------------------
	// SCHEDULER
	// -------------------------------------------------------------------------

	// TaskRunsTotal counts task executions by outcome.
	// Metric: fitbit_ingest_scheduler_task_runs_total
	TaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "task_runs_total",
		Help:      "Total scheduled task executions",
	}, []string{"task", "outcome"}) // succeeded, skipped, fatal

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Wall time of one scheduled task execution, including retry waits",
		Buckets:   []float64{.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"task"})

	TaskLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "task_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run of each task",
	}, []string{"task"})

	// -------------------------------------------------------------------------
	// SINK (time-series writes)
	// -------------------------------------------------------------------------

	// PointsWrittenTotal counts points acknowledged by the time-series database.
	// Metric: fitbit_ingest_sink_points_written_total
	PointsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "points_written_total",
		Help:      "Total points written to the time-series database",
	})

	BatchWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "batch_writes_total",
		Help:      "Total batch write attempts",
	}, []string{"status"}) // success, fail, spooled

	SpoolDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "spool_depth",
		Help:      "Current number of batches waiting in the retry spool",
	})

	// -------------------------------------------------------------------------
	// ACTIVITY CACHE (otter)
	// -------------------------------------------------------------------------

	ActivityCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity_cache",
		Name:      "hits_total",
		Help:      "Total activity logs skipped because their GPS track was already ingested",
	})

	ActivityCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity_cache",
		Name:      "misses_total",
		Help:      "Total activity logs not found in the ingested-track cache",
	})
)
