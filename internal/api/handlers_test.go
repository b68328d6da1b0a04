// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animatch/internal/cache"
	"github.com/tomtom215/animatch/internal/config"
	"github.com/tomtom215/animatch/internal/engine"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/providers"
	"github.com/tomtom215/animatch/internal/ratelimit"
	"github.com/tomtom215/animatch/internal/reconcile"
	"github.com/tomtom215/animatch/internal/retry"
	"github.com/tomtom215/animatch/internal/score"
	"github.com/tomtom215/animatch/internal/transport"
)

type fakeSource struct {
	provider  models.Provider
	fragments []models.CanonicalAnime
	err       error
}

func (f *fakeSource) Provider() models.Provider { return f.provider }

func (f *fakeSource) Candidates(ctx context.Context, limit int) ([]models.CanonicalAnime, error) {
	return f.fragments, f.err
}

func (f *fakeSource) SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error) {
	return f.fragments, f.err
}

func newTestServer(t *testing.T, src *fakeSource) *Server {
	t.Helper()

	eng := engine.New(engine.Config{},
		[]engine.CandidateSource{src},
		[]engine.Searcher{src},
		reconcile.NewReconciler(reconcile.NewOverrideTable(), nil),
		score.NewScorer(score.Config{}),
	)

	respCache := cache.NewResponseCache(16)
	limiter := ratelimit.NewLimiter(nil)
	stack := providers.NewStack(providers.StackConfig{
		Gateway: transport.NewGateway(time.Second),
		Cache:   respCache,
		Limiter: limiter,
		Retrier: retry.NewController(retry.DefaultConfig()),
	})

	handler := NewHandler(eng, stack, limiter, respCache)
	return NewServer(config.ServerConfig{
		Host:        "127.0.0.1",
		Port:        0,
		Timeout:     5 * time.Second,
		CORSOrigins: []string{"*"},
	}, handler)
}

func serve(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, r)
	return rec
}

func healthySource() *fakeSource {
	return &fakeSource{
		provider: models.ProviderMAL,
		fragments: []models.CanonicalAnime{{
			Titles:      models.Titles{Primary: "Steins;Gate"},
			ExternalIDs: map[models.Provider]string{models.ProviderMAL: "9253"},
			Traits:      map[string]float64{models.TraitNarrativeComplexity: 9},
		}},
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t, healthySource())

	body := `{"preferences": {"traits": {"narrativeComplexity": 9}}, "limit": 5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp engine.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RequestID == "" {
		t.Error("request_id must be set")
	}
	if len(resp.Results) != 1 || resp.Results[0].Anime.Titles.Primary != "Steins;Gate" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Results[0].Score != 100 {
		t.Errorf("score = %d, want 100 for exact trait match", resp.Results[0].Score)
	}
}

func TestRecommendationsRejectsBadBodies(t *testing.T) {
	s := newTestServer(t, healthySource())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"preferences": `},
		{"empty traits", `{"preferences": {"traits": {}}}`},
		{"trait above range", `{"preferences": {"traits": {"pacing": 11}}}`},
		{"trait below range", `{"preferences": {"traits": {"pacing": 0}}}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(tt.body))
		if rec := serve(s, req); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestRecommendationsAllProvidersDown(t *testing.T) {
	s := newTestServer(t, &fakeSource{provider: models.ProviderMAL, err: errors.New("down")})

	body := `{"preferences": {"traits": {"pacing": 5}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	rec := serve(s, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when every provider fails", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t, healthySource())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=steins", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp engine.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %d, want 1", len(resp.Results))
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", rec.Code)
	}
}

func TestLimitsEndpoint(t *testing.T) {
	s := newTestServer(t, healthySource())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/limits", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snapshots map[string]ratelimit.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCacheEndpoints(t *testing.T) {
	s := newTestServer(t, healthySource())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/cache/purge/mal", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("purge status = %d", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/cache/purge/netflix", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider purge status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, healthySource())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWriteEngineErrorMapsQuota(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, &transport.QuotaExceededError{Provider: models.ProviderYouTube, Cooldown: time.Hour})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 for quota exhaustion", rec.Code)
	}
}

func TestInboundRateLimit(t *testing.T) {
	s := newTestServer(t, healthySource())
	// Rebuild with a 2/minute inbound cap.
	handler := s.handler
	s = NewServer(config.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		Timeout:       5 * time.Second,
		RateLimitReqs: 2,
		CORSOrigins:   []string{"*"},
	}, handler)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		last = serve(s, req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}
