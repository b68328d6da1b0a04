// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package metrics exposes Prometheus instrumentation for the provider
// integration layer: outbound request rates and latency, cache efficiency,
// rate limiter pressure, and circuit breaker state. Served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider call metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of outbound provider requests",
		},
		[]string{"provider", "operation", "result"}, // result: "success", "error", "not_found"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Outbound provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of retried provider requests",
		},
		[]string{"provider", "operation"},
	)

	// Response cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"provider"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"provider"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_entries",
			Help: "Current number of cached provider responses",
		},
	)

	// Rate limiter metrics
	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Total number of requests that blocked on the rate limiter",
		},
		[]string{"provider"},
	)

	QuotaCooldowns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_cooldowns_total",
			Help: "Total number of quota-exceeded cooldowns entered",
		},
		[]string{"provider"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"provider", "from_state", "to_state"},
	)

	// Reconciliation metrics
	ReconcileMerges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_merges_total",
			Help: "Total number of fragment groups merged into canonical records",
		},
	)

	ReconcileOverrideHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_override_hits_total",
			Help: "Total number of identity links resolved via the override table",
		},
	)

	// API surface metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordProviderRequest records the outcome and latency of one provider call.
func RecordProviderRequest(provider, operation, result string, duration time.Duration) {
	ProviderRequests.WithLabelValues(provider, operation, result).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordBreakerTransition updates breaker gauges on a state change.
// stateValue follows gobreaker ordering: 0=closed, 1=half-open, 2=open.
func RecordBreakerTransition(provider, from, to string, stateValue float64) {
	CircuitBreakerState.WithLabelValues(provider).Set(stateValue)
	CircuitBreakerTransitions.WithLabelValues(provider, from, to).Inc()
}
