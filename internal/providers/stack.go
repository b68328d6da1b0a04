// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
stack.go - Provider Call Stack

Every outbound provider call flows through the same pipeline:

	cache lookup -> rate limiter -> circuit breaker -> retry -> gateway

Successful bodies are cached with the provider's TTL. Quota failures
detected on the way out (a 403 with a quota reason, or a final 429) are
reported to the rate limiter, which suspends the provider; the caller
sees a QuotaExceededError.

DETERMINISM NOTE: the circuit breaker uses real time for its interval and
timeout calculations. That is intentional for production resilience; unit
tests exercise the wrapped pipeline with the breaker effectively disabled
or mock below it.
*/

//nolint:staticcheck // File documentation, not package doc
package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/animatch/internal/cache"
	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/metrics"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/ratelimit"
	"github.com/tomtom215/animatch/internal/retry"
	"github.com/tomtom215/animatch/internal/transport"
)

// QuotaDetector inspects a failed call and reports whether the failure
// means the provider's usage quota is exhausted, along with an optional
// cooldown hint (zero means use the configured default).
type QuotaDetector func(err error) (hint time.Duration, exhausted bool)

// DefaultQuotaDetector treats a 429 that survived all retries as quota
// exhaustion, honoring any Retry-After hint it carried.
func DefaultQuotaDetector(err error) (time.Duration, bool) {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return httpErr.RetryAfter, true
	}
	return 0, false
}

// videoQuotaDetector recognizes the video provider's daily-quota failure:
// a 403 whose body names a quota reason. Plain 403s (bad key) are not
// quota failures.
func videoQuotaDetector(err error) (time.Duration, bool) {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 403 {
		if strings.Contains(httpErr.Body, "quotaExceeded") ||
			strings.Contains(httpErr.Body, "dailyLimitExceeded") ||
			strings.Contains(httpErr.Body, "rateLimitExceeded") {
			return 0, true
		}
	}
	return DefaultQuotaDetector(err)
}

// StackConfig wires the shared infrastructure into a Stack.
type StackConfig struct {
	Gateway *transport.Gateway
	Cache   *cache.ResponseCache
	Limiter *ratelimit.Limiter
	Retrier *retry.Controller

	// TTLs sets per-provider cache lifetimes. Providers absent from the
	// map are not cached.
	TTLs map[models.Provider]time.Duration

	// BreakerMaxFailures and BreakerOpenTimeout configure each provider's
	// circuit breaker.
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Stack executes provider queries through the shared resilience pipeline.
// One Stack is shared by all adapters; state is per-provider inside it.
type Stack struct {
	gateway *transport.Gateway
	cache   *cache.ResponseCache
	limiter *ratelimit.Limiter
	retrier *retry.Controller

	ttls      map[models.Provider]time.Duration
	breakers  map[models.Provider]*gobreaker.CircuitBreaker[*transport.RawResponse]
	detectors map[models.Provider]QuotaDetector
}

// NewStack builds the shared call stack with one circuit breaker per
// provider.
func NewStack(cfg StackConfig) *Stack {
	s := &Stack{
		gateway:   cfg.Gateway,
		cache:     cfg.Cache,
		limiter:   cfg.Limiter,
		retrier:   cfg.Retrier,
		ttls:      cfg.TTLs,
		breakers:  make(map[models.Provider]*gobreaker.CircuitBreaker[*transport.RawResponse]),
		detectors: make(map[models.Provider]QuotaDetector),
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 60 * time.Second
	}

	for _, p := range models.AllProviders() {
		s.breakers[p] = newProviderBreaker(p, maxFailures, openTimeout)
		s.detectors[p] = DefaultQuotaDetector
	}
	s.detectors[models.ProviderYouTube] = videoQuotaDetector

	return s
}

// newProviderBreaker creates one provider's circuit breaker with metrics
// and logging wired into its state transitions.
func newProviderBreaker(p models.Provider, maxFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[*transport.RawResponse] {
	name := string(p)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*transport.RawResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().
				Str("provider", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Circuit breaker state transition")
			metrics.RecordBreakerTransition(name, fromStr, toStr, breakerStateFloat(to))
		},
	})
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Execute runs one query through the full pipeline and returns the raw
// response body. Cache hits skip the network entirely and consume no
// budget. Error taxonomy: *transport.QuotaExceededError when the provider
// is suspended, *transport.HTTPError / ErrUnreachable / *DecodeError from
// below, gobreaker.ErrOpenState while the breaker is open.
func (s *Stack) Execute(ctx context.Context, q transport.Query) ([]byte, error) {
	key := q.CacheKey()
	if s.cache != nil {
		if body, ok := s.cache.Get(key); ok {
			metrics.CacheHits.WithLabelValues(string(q.Provider)).Inc()
			return body, nil
		}
		metrics.CacheMisses.WithLabelValues(string(q.Provider)).Inc()
	}

	if err := s.limiter.Acquire(ctx, q.Provider); err != nil {
		var quota *transport.QuotaExceededError
		if errors.As(err, &quota) {
			metrics.RecordProviderRequest(string(q.Provider), q.Operation, "quota", 0)
		}
		return nil, err
	}

	start := time.Now()
	resp, err := s.breakers[q.Provider].Execute(func() (*transport.RawResponse, error) {
		var r *transport.RawResponse
		retryErr := s.retrier.Do(ctx, string(q.Provider), q.Operation, func(ctx context.Context) error {
			var sendErr error
			r, sendErr = s.gateway.Send(ctx, q)
			return sendErr
		})
		return r, retryErr
	})
	elapsed := time.Since(start)

	if err != nil {
		if hint, exhausted := s.detectors[q.Provider](err); exhausted {
			cooldown := s.limiter.ReportQuotaExceeded(q.Provider, hint)
			metrics.QuotaCooldowns.WithLabelValues(string(q.Provider)).Inc()
			logging.Warn().
				Str("provider", string(q.Provider)).
				Dur("cooldown", cooldown).
				Msg("Provider quota exhausted, entering cooldown")
			return nil, &transport.QuotaExceededError{Provider: q.Provider, Cooldown: cooldown}
		}
		result := "error"
		if transport.IsNotFound(err) {
			result = "not_found"
		}
		metrics.RecordProviderRequest(string(q.Provider), q.Operation, result, elapsed)
		return nil, err
	}

	metrics.RecordProviderRequest(string(q.Provider), q.Operation, "success", elapsed)

	if ttl, ok := s.ttls[q.Provider]; ok && s.cache != nil {
		s.cache.Set(key, q.Provider, resp.Body, ttl)
		metrics.CacheEntries.Set(float64(s.cache.Stats().Entries))
	}

	return resp.Body, nil
}

// Raw is like Execute but keeps the response wrapper so callers can use
// its Decode helpers with provider/operation context intact.
func (s *Stack) Raw(ctx context.Context, q transport.Query) (*transport.RawResponse, error) {
	body, err := s.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return &transport.RawResponse{
		Provider:   q.Provider,
		Operation:  q.Operation,
		StatusCode: 200,
		Body:       body,
	}, nil
}

// PurgeProvider drops the provider's cached responses, forcing fresh
// fetches. Used after override-table edits.
func (s *Stack) PurgeProvider(p models.Provider) int {
	if s.cache == nil {
		return 0
	}
	n := s.cache.PurgeProvider(p)
	metrics.CacheEntries.Set(float64(s.cache.Stats().Entries))
	return n
}
