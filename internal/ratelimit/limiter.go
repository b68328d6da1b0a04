// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
limiter.go - Per-Provider Request Budgets

Each provider gets a fixed-window budget (N requests per window) plus an
optional smoothing limiter that spaces calls out inside the window. When a
provider reports a hard quota failure the limiter suspends it for a cooldown
period. Acquire waits out suspensions that end within the caller's deadline
(or maxWait without one); longer suspensions surface as an error rather than
blocking for hours.

Thread Safety: all state transitions happen under a single mutex. A permit
is only consumed at the moment Acquire returns nil, so a caller whose
context is cancelled while waiting never burns budget.
*/

//nolint:staticcheck // File documentation, not package doc
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/animatch/internal/metrics"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/transport"
)

// Clock abstracts time so budget windows and cooldowns are testable with a
// simulated clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Budget configures one provider's request allowance.
type Budget struct {
	// Requests permitted per Window. Zero disables limiting for the provider.
	Requests int
	Window   time.Duration

	// SmoothRPS, when positive, spaces requests out at this sustained rate
	// inside the window instead of allowing a burst at window start.
	SmoothRPS float64

	// Cooldown applied when the provider reports quota exhaustion without a
	// Retry-After hint of its own.
	Cooldown time.Duration
}

// providerState is the mutable per-provider window bookkeeping.
type providerState struct {
	budget    Budget
	remaining int
	windowEnd time.Time

	// cooldownUntil, when in the future, suspends the provider entirely.
	cooldownUntil time.Time

	smoother *rate.Limiter
}

// Limiter enforces per-provider budgets and quota cooldowns.
type Limiter struct {
	mu    sync.Mutex
	state map[models.Provider]*providerState
	clock Clock

	// maxWait bounds how long Acquire blocks for a window to roll over
	// before giving up.
	maxWait time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock substitutes the time source. Used by tests.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithMaxWait bounds how long Acquire blocks waiting for budget.
func WithMaxWait(d time.Duration) Option {
	return func(l *Limiter) { l.maxWait = d }
}

// NewLimiter creates a Limiter with the given per-provider budgets.
// Providers absent from the map are unlimited.
func NewLimiter(budgets map[models.Provider]Budget, opts ...Option) *Limiter {
	l := &Limiter{
		state:   make(map[models.Provider]*providerState, len(budgets)),
		clock:   realClock{},
		maxWait: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	for p, b := range budgets {
		st := &providerState{budget: b}
		if b.SmoothRPS > 0 {
			st.smoother = rate.NewLimiter(rate.Limit(b.SmoothRPS), 1)
		}
		l.state[p] = st
	}
	return l
}

// Acquire blocks until the provider has budget for one request, then
// consumes a single permit. Cooldowns and exhausted windows are suspensions:
// Acquire waits them out when they end within the caller's deadline (or
// maxWait when the context carries none) and returns a QuotaExceededError
// only when the wait would exceed that bound. It returns ctx.Err() if the
// context is cancelled while waiting. A cancelled or failed Acquire never
// consumes budget.
func (l *Limiter) Acquire(ctx context.Context, provider models.Provider) error {
	waited := false
	for {
		l.mu.Lock()
		st, ok := l.state[provider]
		if !ok || st.budget.Requests <= 0 {
			l.mu.Unlock()
			return nil
		}

		now := l.clock.Now()

		bound := l.maxWait
		if deadline, ok := ctx.Deadline(); ok {
			bound = deadline.Sub(now)
		}

		if now.Before(st.cooldownUntil) {
			remaining := st.cooldownUntil.Sub(now)
			l.mu.Unlock()
			if remaining > bound {
				return &transport.QuotaExceededError{Provider: provider, Cooldown: remaining}
			}
			if err := l.wait(ctx, provider, remaining, &waited); err != nil {
				return err
			}
			continue
		}

		// Roll the window forward when it has elapsed.
		if !now.Before(st.windowEnd) {
			st.windowEnd = now.Add(st.budget.Window)
			st.remaining = st.budget.Requests
		}

		if st.remaining > 0 {
			st.remaining--
			smoother := st.smoother
			l.mu.Unlock()
			if smoother != nil {
				if err := smoother.Wait(ctx); err != nil {
					// Permit already consumed; return it.
					l.refund(provider)
					return fmt.Errorf("rate smoothing for %s: %w", provider, err)
				}
			}
			return nil
		}

		// Budget exhausted for this window; wait for it to roll over.
		wait := st.windowEnd.Sub(now)
		l.mu.Unlock()

		if wait > bound {
			return &transport.QuotaExceededError{Provider: provider, Cooldown: wait}
		}
		if err := l.wait(ctx, provider, wait, &waited); err != nil {
			return err
		}
	}
}

// wait parks until d elapses or the context ends, counting each blocked
// Acquire once.
func (l *Limiter) wait(ctx context.Context, provider models.Provider, d time.Duration, waited *bool) error {
	if !*waited {
		metrics.RateLimitWaits.WithLabelValues(string(provider)).Inc()
		*waited = true
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(d):
		return nil
	}
}

// refund returns one permit after a consumed-but-unused acquisition.
func (l *Limiter) refund(provider models.Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.state[provider]; ok && st.remaining < st.budget.Requests {
		st.remaining++
	}
}

// ReportQuotaExceeded suspends a provider for its configured cooldown, or
// for the provider-supplied hint when one is given. Longer suspensions win;
// a shorter report never shrinks an active cooldown.
func (l *Limiter) ReportQuotaExceeded(provider models.Provider, hint time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.state[provider]
	if !ok {
		st = &providerState{}
		l.state[provider] = st
	}

	cooldown := hint
	if cooldown <= 0 {
		cooldown = st.budget.Cooldown
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	until := l.clock.Now().Add(cooldown)
	if until.After(st.cooldownUntil) {
		st.cooldownUntil = until
	}
	return st.cooldownUntil.Sub(l.clock.Now())
}

// DefaultCooldown is applied when neither the provider nor configuration
// supplies a cooldown duration. Daily-quota providers reset at midnight
// Pacific, so a long fallback avoids hammering a dead quota.
const DefaultCooldown = 4 * time.Hour

// Snapshot describes a provider's current limiter state.
type Snapshot struct {
	Remaining     int           `json:"remaining"`
	WindowResetIn time.Duration `json:"window_reset_in"`
	CoolingDown   bool          `json:"cooling_down"`
	CooldownLeft  time.Duration `json:"cooldown_left,omitempty"`
}

// Snapshots returns the current state of every configured provider.
func (l *Limiter) Snapshots() map[models.Provider]Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := make(map[models.Provider]Snapshot, len(l.state))
	for p, st := range l.state {
		s := Snapshot{Remaining: st.remaining}
		if st.windowEnd.After(now) {
			s.WindowResetIn = st.windowEnd.Sub(now)
		} else if st.budget.Requests > 0 {
			// Window already elapsed; full budget is available on next acquire.
			s.Remaining = st.budget.Requests
		}
		if st.cooldownUntil.After(now) {
			s.CoolingDown = true
			s.CooldownLeft = st.cooldownUntil.Sub(now)
		}
		out[p] = s
	}
	return out
}
