// Package metrics provides Prometheus instrumentation for the library
// gateway. All metric collectors are registered via the Init function and
// exposed through the Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total requests by route, method, and HTTP status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration observes request latency in seconds by route and method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// RateLimitHits counts rate limit rejections.
	RateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_hits_total",
			Help: "Total rate limit rejections",
		},
	)

	// DependencyErrors counts failed calls to a dependency by name and reason.
	DependencyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dependency_errors_total",
			Help: "Total failed dependency calls",
		},
		[]string{"dependency", "reason"},
	)

	// CircuitBreakerState reports the current breaker state per dependency
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	// CircuitBreakerStateChanges counts breaker transitions by dependency and edge.
	CircuitBreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"dependency", "from", "to"},
	)

	// RetryQueueDepth tracks the number of pending rating adjustment tasks.
	RetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_retry_queue_depth",
			Help: "Number of pending rating adjustment tasks",
		},
	)

	// RetryResolutions counts retry worker outcomes ("resolved" or "requeued").
	RetryResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_retry_resolutions_total",
			Help: "Total retry worker drain attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Init registers all metric collectors with the default Prometheus registry.
// Must be called once at startup before handling requests.
func Init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RateLimitHits,
		DependencyErrors,
		CircuitBreakerState,
		CircuitBreakerStateChanges,
		RetryQueueDepth,
		RetryResolutions,
	)
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
