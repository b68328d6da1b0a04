// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/animatch/internal/models"
)

// ErrUnreachable indicates a network-level failure (DNS, connect, timeout).
// Unreachable errors are transient and eligible for retry.
var ErrUnreachable = errors.New("provider unreachable")

// HTTPError is returned for any non-2xx provider response.
type HTTPError struct {
	Provider   models.Provider
	Operation  string
	StatusCode int
	Body       string

	// RetryAfter carries the provider's Retry-After hint, when present.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Provider, e.Operation, e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying: server errors,
// plus 429 Too Many Requests and 503 Service Unavailable with retry hints.
func (e *HTTPError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// DecodeError indicates the provider returned a body that does not match its
// declared schema. Decode failures are a data-quality signal, never a crash,
// and are not retryable.
type DecodeError struct {
	Provider  models.Provider
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Provider, e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GraphQLError indicates the GraphQL catalog accepted the request but
// returned errors in the response envelope. Not retryable.
type GraphQLError struct {
	Provider  models.Provider
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s %s: graphql errors: %v", e.Provider, e.Operation, e.Messages)
}

// QuotaExceededError indicates a provider reported that its usage cap was
// hit (e.g. a 403 with a quota-exceeded reason). The rate limiter converts
// this into a cooldown window; callers observe it as a suspension, not a
// permanent failure.
type QuotaExceededError struct {
	Provider models.Provider
	Cooldown time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: quota exceeded, cooling down for %s", e.Provider, e.Cooldown)
}

// IsTransient reports whether an error from the gateway should be retried.
// Unreachable and transient HTTP failures qualify; everything else (4xx
// other than 429, decode errors, validation errors) propagates immediately.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return false
}

// IsNotFound reports whether an error is a plain HTTP 404. A valid request
// with an empty result is not a failure; adapters map it to zero fragments.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// parseRetryAfter extracts a Retry-After hint from response headers.
// Only the delta-seconds form is supported; HTTP-date values are ignored.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
