// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
engine.go - Recommendation Pipeline

The engine is the single entry point the rest of the application calls.
One request fans out to every candidate source concurrently, reconciles
the fragments that come back, scores them against the caller's preference
vector, and returns the ranked list. A provider failing mid-request never
aborts the whole recommendation: its fragments are simply absent and the
provider is reported as unavailable. The request fails outright only when
every source fails.
*/

//nolint:staticcheck // File documentation, not package doc
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/reconcile"
	"github.com/tomtom215/animatch/internal/score"
)

// ErrAllProvidersFailed is returned when no candidate source produced any
// fragments.
var ErrAllProvidersFailed = errors.New("all providers failed")

// CandidateSource supplies recommendation candidates from one provider.
type CandidateSource interface {
	Provider() models.Provider
	Candidates(ctx context.Context, limit int) ([]models.CanonicalAnime, error)
}

// Searcher is a provider that can search its catalog by title.
type Searcher interface {
	Provider() models.Provider
	SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error)
}

// Config controls the pipeline.
type Config struct {
	// CandidatesPerProvider caps each source's contribution.
	CandidatesPerProvider int

	// MaxResults caps the ranked output.
	MaxResults int

	// MinScore drops matches below the threshold. Zero keeps everything.
	MinScore int
}

// Response is one completed recommendation request.
type Response struct {
	RequestID string               `json:"request_id"`
	Results   []models.ScoredAnime `json:"results"`

	// Unavailable names providers that failed during this request; the
	// results were assembled without them.
	Unavailable []models.Provider `json:"unavailable,omitempty"`
}

// SearchResponse is one completed catalog search.
type SearchResponse struct {
	RequestID   string                  `json:"request_id"`
	Results     []models.CanonicalAnime `json:"results"`
	Unavailable []models.Provider       `json:"unavailable,omitempty"`
}

// Engine runs the fan-out / reconcile / score pipeline.
type Engine struct {
	sources    []CandidateSource
	searchers  []Searcher
	reconciler *reconcile.Reconciler
	scorer     *score.Scorer
	cfg        Config
}

// New creates an Engine.
func New(cfg Config, sources []CandidateSource, searchers []Searcher, reconciler *reconcile.Reconciler, scorer *score.Scorer) *Engine {
	if cfg.CandidatesPerProvider <= 0 {
		cfg.CandidatesPerProvider = 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Engine{
		sources:    sources,
		searchers:  searchers,
		reconciler: reconciler,
		scorer:     scorer,
		cfg:        cfg,
	}
}

// fanoutResult is one source's contribution.
type fanoutResult struct {
	provider  models.Provider
	fragments []models.CanonicalAnime
	err       error
}

// GetRecommendations is the sole recommendation entry point: rank
// candidates from every healthy provider against the preference vector.
func (e *Engine) GetRecommendations(ctx context.Context, prefs models.UserPreferenceVector, limit int) (*Response, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log := logging.With().Str("request_id", requestID).Logger()

	if limit <= 0 || limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}

	results := e.fanout(ctx, len(e.sources), func(i int, out chan<- fanoutResult) {
		src := e.sources[i]
		fragments, err := src.Candidates(ctx, e.cfg.CandidatesPerProvider)
		out <- fanoutResult{provider: src.Provider(), fragments: fragments, err: err}
	})

	fragments, unavailable := collect(results, &log)
	// Healthy providers with empty listings are not a failure; only a
	// full outage aborts the request.
	if len(fragments) == 0 && len(unavailable) == len(e.sources) && len(e.sources) > 0 {
		return nil, ErrAllProvidersFailed
	}

	merged := e.reconciler.Reconcile(ctx, fragments)

	scored := make([]models.ScoredAnime, 0, len(merged))
	for _, anime := range merged {
		s, reasons := e.scorer.Score(anime, prefs)
		if s < e.cfg.MinScore {
			continue
		}
		scored = append(scored, models.ScoredAnime{Anime: anime, Score: s, Reasons: reasons})
	}

	// Rank by score; identity key breaks ties so equal scores order
	// deterministically.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Anime.Titles.Primary < scored[j].Anime.Titles.Primary
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	log.Info().
		Int("candidates", len(fragments)).
		Int("merged", len(merged)).
		Int("returned", len(scored)).
		Dur("elapsed", time.Since(start)).
		Msg("Recommendation request complete")

	return &Response{RequestID: requestID, Results: scored, Unavailable: unavailable}, nil
}

// Search fans a title query out to every searchable catalog and returns
// the reconciled records.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	requestID := uuid.NewString()
	log := logging.With().Str("request_id", requestID).Logger()

	if limit <= 0 || limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}

	results := e.fanout(ctx, len(e.searchers), func(i int, out chan<- fanoutResult) {
		src := e.searchers[i]
		fragments, err := src.SearchByTitle(ctx, query, limit)
		out <- fanoutResult{provider: src.Provider(), fragments: fragments, err: err}
	})

	fragments, unavailable := collect(results, &log)
	if len(fragments) == 0 && len(unavailable) == len(e.searchers) && len(e.searchers) > 0 {
		return nil, ErrAllProvidersFailed
	}

	merged := e.reconciler.Reconcile(ctx, fragments)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	return &SearchResponse{RequestID: requestID, Results: merged, Unavailable: unavailable}, nil
}

// fanout runs n workers concurrently and returns their results in a
// deterministic provider-priority order.
func (e *Engine) fanout(ctx context.Context, n int, work func(i int, out chan<- fanoutResult)) []fanoutResult {
	out := make(chan fanoutResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			work(i, out)
		}(i)
	}
	wg.Wait()
	close(out)

	results := make([]fanoutResult, 0, n)
	for r := range out {
		results = append(results, r)
	}
	// Merge input ordering must not depend on completion order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].provider.Rank() < results[j].provider.Rank()
	})
	return results
}

// collect splits fan-out results into fragments and failed providers.
func collect(results []fanoutResult, log *zerolog.Logger) ([]models.CanonicalAnime, []models.Provider) {
	var fragments []models.CanonicalAnime
	var unavailable []models.Provider
	for _, r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Str("provider", string(r.provider)).Msg("Provider unavailable for this request")
			unavailable = append(unavailable, r.provider)
			continue
		}
		fragments = append(fragments, r.fragments...)
	}
	return fragments, unavailable
}
