// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
gateway.go - Single HTTP-Call Abstraction

The Gateway is the only component that touches the network. It builds
requests deterministically (stable parameter ordering so cache keys are
reproducible), applies per-query headers, and raises typed failures:

  - network/timeout        -> ErrUnreachable (wrapped)
  - non-2xx status         -> *HTTPError with status, body, Retry-After hint
  - malformed body (later) -> *DecodeError via RawResponse.Decode

Rate limiting, retries, caching, and circuit breaking all live above the
Gateway in the provider call stack.
*/

//nolint:staticcheck // File documentation, not package doc
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animatch/internal/models"
)

// maxBodySize limits how much of a response body is read into memory.
// Provider payloads are small; anything larger indicates schema drift.
const maxBodySize = 4 << 20 // 4MB

// RawResponse is a fully-read successful provider response.
type RawResponse struct {
	Provider   models.Provider
	Operation  string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into result, raising a DecodeError
// on schema drift.
func (r *RawResponse) Decode(result any) error {
	if err := json.Unmarshal(r.Body, result); err != nil {
		return &DecodeError{Provider: r.Provider, Operation: r.Operation, Err: err}
	}
	return nil
}

// graphQLEnvelope is the standard GraphQL response wrapper.
type graphQLEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// DecodeGraphQL unwraps the {data: {<root>: ...}} envelope and unmarshals
// the queried root field into result.
func (r *RawResponse) DecodeGraphQL(root string, result any) error {
	var env graphQLEnvelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return &DecodeError{Provider: r.Provider, Operation: r.Operation, Err: err}
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return &GraphQLError{Provider: r.Provider, Operation: r.Operation, Messages: msgs}
	}
	raw, ok := env.Data[root]
	if !ok {
		return &DecodeError{
			Provider:  r.Provider,
			Operation: r.Operation,
			Err:       fmt.Errorf("missing root field %q in graphql response", root),
		}
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &DecodeError{Provider: r.Provider, Operation: r.Operation, Err: err}
	}
	return nil
}

// Gateway executes provider queries over HTTP.
// Thread Safety: safe for concurrent use; each call builds its own request.
type Gateway struct {
	client *http.Client
}

// NewGateway creates a Gateway with the given request timeout.
func NewGateway(timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		client: &http.Client{Timeout: timeout},
	}
}

// Send executes one provider query and returns the raw response.
// Non-2xx statuses are returned as *HTTPError; network failures wrap
// ErrUnreachable. The body is fully read before returning.
func (g *Gateway) Send(ctx context.Context, q Query) (*RawResponse, error) {
	req, err := g.buildRequest(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", q.Provider, q.Operation, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", q.Provider, q.Operation, ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: read body: %w", q.Provider, q.Operation, ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Provider:   q.Provider,
			Operation:  q.Operation,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}

	return &RawResponse{
		Provider:   q.Provider,
		Operation:  q.Operation,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// buildRequest assembles the HTTP request for a query. Query parameters are
// encoded through url.Values so the ordering is always sorted.
func (g *Gateway) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	method := q.Method
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader = http.NoBody
	if q.GraphQL != nil {
		method = http.MethodPost
		payload, err := json.Marshal(q.GraphQL)
		if err != nil {
			return nil, fmt.Errorf("marshal graphql body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.URL, reqBody)
	if err != nil {
		return nil, err
	}

	if len(q.Params) > 0 && q.GraphQL == nil {
		values := url.Values{}
		for k, v := range q.Params {
			values.Set(k, v)
		}
		req.URL.RawQuery = values.Encode()
	}

	req.Header.Set("Accept", "application/json")
	if q.GraphQL != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range q.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// truncateBody caps error bodies so HTTPError messages stay bounded.
func truncateBody(body []byte) string {
	const maxErrorBody = 2048
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "... (truncated)"
	}
	return string(body)
}
