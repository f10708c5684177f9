// Package observability provides metrics, tracing and error reporting.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorx_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// RatingsSubmitted counts rating upserts by outcome (created, updated).
	RatingsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_ratings_submitted_total",
		Help: "Tutor ratings submitted by outcome",
	}, []string{"outcome"})

	// InteractionToggles counts like/follow/favorite transitions.
	InteractionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_interaction_toggles_total",
		Help: "Relation toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// ReconcileRuns counts reconciliation runs by result.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_reconcile_runs_total",
		Help: "Reconciliation job runs by result",
	}, []string{"result"})

	// ReconcileFixes counts rows corrected by the reconciliation job.
	ReconcileFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_reconcile_fixes_total",
		Help: "Rows corrected by reconciliation, by kind",
	}, []string{"kind"})

	// WebSocketConnectionsTotal is the gauge of active event-stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutorx_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts events delivered to websocket clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorx_websocket_backpressure_drops_total",
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

// RecordToggle counts one relation transition.
func RecordToggle(kind string, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	InteractionToggles.WithLabelValues(kind, state).Inc()
}
