package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestDuration records backend request latency by method, route and status class.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chub_api_request_duration_seconds",
		Help:    "Backend request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// APIRequestErrors counts failed backend requests by error kind.
	APIRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chub_api_request_errors_total",
		Help: "Total number of failed backend requests by error kind",
	}, []string{"method", "route", "kind"})

	// QueryCacheEvents counts query cache hits, misses and shared in-flight fetches.
	QueryCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chub_query_cache_events_total",
		Help: "Query cache lookups by outcome",
	}, []string{"outcome"})

	// QueryCacheInvalidations counts entries marked stale by invalidation.
	QueryCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chub_query_cache_invalidations_total",
		Help: "Total number of cache entries marked stale",
	})

	// OptimisticToggles counts optimistic toggles by relationship and outcome.
	OptimisticToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chub_optimistic_toggles_total",
		Help: "Optimistic toggles by relationship and outcome",
	}, []string{"relationship", "outcome"})

	// SessionStoreErrors counts durable session storage failures by operation.
	SessionStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chub_session_store_errors_total",
		Help: "Session storage errors by backend and operation",
	}, []string{"backend", "operation"})
)

// StatusClass buckets an HTTP status into "2xx", "4xx" and so on. Zero means
// no response was received.
func StatusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// TrackRequest returns a function that records request latency when called (e.g. defer).
func TrackRequest(method, route string) func(status int) {
	start := time.Now()
	return func(status int) {
		APIRequestDuration.WithLabelValues(method, route, StatusClass(status)).Observe(time.Since(start).Seconds())
	}
}
