// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animatch/internal/models"
)

// GraphQLBody is the request envelope for the GraphQL media catalog:
// a single POST endpoint taking {query, variables}.
type GraphQLBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Query is an immutable value describing one outbound provider call.
// Build it once and pass it by value; the cache key is a pure function of
// provider, operation, and normalized parameters.
type Query struct {
	Provider  models.Provider
	Operation string

	Method  string
	URL     string
	Params  map[string]string
	Headers map[string]string

	// GraphQL, when set, turns the call into a POST with a JSON
	// {query, variables} body. Params are ignored for the wire request but
	// still contribute to the cache key.
	GraphQL *GraphQLBody
}

// CacheKey returns the deterministic request fingerprint used by the
// response cache. Identical inputs always hash identically; parameter
// ordering is normalized away.
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString(string(q.Provider))
	b.WriteByte('|')
	b.WriteString(q.Operation)
	b.WriteByte('|')
	b.WriteString(q.URL)

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Params[k])
	}

	if q.GraphQL != nil {
		b.WriteByte('|')
		b.WriteString(q.GraphQL.Query)
		// json.Marshal emits map keys in sorted order, so variables are
		// already normalized.
		if vars, err := json.Marshal(q.GraphQL.Variables); err == nil {
			b.WriteByte('|')
			b.Write(vars)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
