// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/animatch/internal/cache"
	"github.com/tomtom215/animatch/internal/engine"
	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/providers"
	"github.com/tomtom215/animatch/internal/ratelimit"
	"github.com/tomtom215/animatch/internal/transport"
)

// Handler holds the services the HTTP endpoints expose.
type Handler struct {
	engine  *engine.Engine
	stack   *providers.Stack
	limiter *ratelimit.Limiter
	cache   *cache.ResponseCache
}

// NewHandler creates the endpoint handler. cache may be nil when the
// response cache is disabled.
func NewHandler(eng *engine.Engine, stack *providers.Stack, limiter *ratelimit.Limiter, respCache *cache.ResponseCache) *Handler {
	return &Handler{engine: eng, stack: stack, limiter: limiter, cache: respCache}
}

// recommendationsRequest is the POST /recommendations body.
type recommendationsRequest struct {
	Preferences models.UserPreferenceVector `json:"preferences"`
	Limit       int                         `json:"limit"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Recommendations handles POST /api/v1/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Preferences.Traits) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "preferences.traits must not be empty"})
		return
	}
	for name, v := range req.Preferences.Traits {
		if v < 1 || v > 10 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "trait " + name + " out of range [1,10]"})
			return
		}
	}

	resp, err := h.engine.GetRecommendations(r.Context(), req.Preferences, req.Limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/v1/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.engine.Search(r.Context(), query, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Limits handles GET /api/v1/limits: current per-provider budget state.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.limiter.Snapshots())
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// PurgeProvider handles POST /api/v1/cache/purge/{provider}.
func (h *Handler) PurgeProvider(w http.ResponseWriter, r *http.Request) {
	p := models.Provider(chi.URLParam(r, "provider"))
	if !p.Known() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown provider"})
		return
	}
	removed := h.stack.PurgeProvider(p)
	logging.Info().Str("provider", string(p)).Int("removed", removed).Msg("Cache purged")
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps pipeline failures to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var quota *transport.QuotaExceededError
	switch {
	case errors.Is(err, engine.ErrAllProvidersFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "all providers failed"})
	case errors.As(err, &quota):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: quota.Error()})
	default:
		logging.Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode response")
	}
}
