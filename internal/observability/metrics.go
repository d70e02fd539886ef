// Package observability provides Prometheus metrics for the application.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftboard_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheRequests counts cache-aside lookups by outcome (hit/miss).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftboard_cache_requests_total",
		Help: "Total cache-aside lookups by outcome",
	}, []string{"outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driftboard_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SearchIndexOps counts prefix-index mutations by operation.
	SearchIndexOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftboard_search_index_ops_total",
		Help: "Total prefix-index operations",
	}, []string{"operation"})

	// FanoutFailures counts best-effort denormalization steps that failed and
	// were skipped. A nonzero rate means the comment ID lists are drifting.
	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftboard_fanout_failures_total",
		Help: "Total denormalization fan-out steps that failed",
	}, []string{"step"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
