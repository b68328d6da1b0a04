// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package retry reissues transient provider failures with exponential
// backoff. Non-transient failures (4xx other than 429, decode errors)
// propagate immediately without burning attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/metrics"
	"github.com/tomtom215/animatch/internal/transport"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry; subsequent delays
	// double up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig matches the provider defaults: three attempts, starting at
// one second, capped at thirty.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Controller runs operations with transient-failure retries.
type Controller struct {
	cfg Config
}

// NewController creates a Controller, filling unset fields from defaults.
func NewController(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Controller{cfg: cfg}
}

// Do invokes op until it succeeds, returns a non-transient error, or the
// attempt budget is exhausted. A provider Retry-After hint overrides the
// computed backoff delay for that step. Context cancellation aborts the
// wait between attempts.
func (c *Controller) Do(ctx context.Context, provider, operation string, op func(ctx context.Context) error) error {
	label := provider + " " + operation
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialDelay
	bo.MaxInterval = c.cfg.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !transport.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if hint := retryAfterHint(lastErr); hint > 0 {
			delay = hint
		}

		metrics.ProviderRetries.WithLabelValues(provider, operation).Inc()
		logging.Warn().
			Str("operation", label).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", label, c.cfg.MaxAttempts, lastErr)
}

// retryAfterHint pulls a Retry-After duration out of an HTTP failure, if any.
func retryAfterHint(err error) time.Duration {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}
