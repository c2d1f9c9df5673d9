package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fourwcycle_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SubmissionsCreated counts accepted ride stories.
	SubmissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fourwcycle_submissions_created_total",
		Help: "Total number of submissions received",
	})

	// SubmissionTransitions counts review outcomes by target status.
	SubmissionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_submission_transitions_total",
		Help: "Total number of moderation transitions by resulting status",
	}, []string{"status"})

	// SubmissionsDeleted counts completed deletions by origin (api, sweep).
	SubmissionsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_submissions_deleted_total",
		Help: "Total number of submissions deleted",
	}, []string{"origin"})

	// PhotoCleanupFailures counts photo files that could not be removed.
	PhotoCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fourwcycle_photo_cleanup_failures_total",
		Help: "Total number of photo files whose removal failed",
	})

	// UploadsDropped counts uploaded files silently filtered out, by reason.
	UploadsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_uploads_dropped_total",
		Help: "Total number of uploaded files dropped by the upload filter",
	}, []string{"reason"})

	// LoginAttempts counts admin login attempts by result.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_admin_login_attempts_total",
		Help: "Total number of admin login attempts",
	}, []string{"result"})

	// ReconcileActions counts reconciliation sweep actions by kind.
	ReconcileActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_reconcile_actions_total",
		Help: "Total number of reconciliation actions by kind",
	}, []string{"kind"})

	// WebSocketConnectionsTotal is the gauge of active admin event stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fourwcycle_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fourwcycle_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
