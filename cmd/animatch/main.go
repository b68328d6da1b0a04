// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package main is the entry point for the Animatch server.
//
// Animatch synthesizes anime recommendations from several independent
// catalogs, merging their views of the same title into one canonical
// record and scoring it against a user's psychological preference vector.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, ANIMATCH_* env)
//  2. Logging: zerolog, level and format from config
//  3. Provider call stack: cache, rate limiter, retry controller, circuit breakers
//  4. Adapters for every enabled provider
//  5. Identity reconciler with the curated override table
//  6. HTTP server with graceful shutdown on SIGINT/SIGTERM
//
// # Configuration
//
// Credentials arrive via environment variables:
//
//	export ANIMATCH_PROVIDERS_MAL_CREDENTIAL=your-client-id
//	export ANIMATCH_PROVIDERS_TMDB_CREDENTIAL=your-api-key
//	export ANIMATCH_PROVIDERS_YOUTUBE_CREDENTIAL=your-api-key
//	./animatch
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/animatch/internal/api"
	"github.com/tomtom215/animatch/internal/cache"
	"github.com/tomtom215/animatch/internal/config"
	"github.com/tomtom215/animatch/internal/engine"
	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/providers"
	"github.com/tomtom215/animatch/internal/ratelimit"
	"github.com/tomtom215/animatch/internal/reconcile"
	"github.com/tomtom215/animatch/internal/retry"
	"github.com/tomtom215/animatch/internal/score"
	"github.com/tomtom215/animatch/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Msg("Starting animatch")

	var respCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		respCache = cache.NewResponseCache(cfg.Cache.Capacity)
	}

	budgets := map[models.Provider]ratelimit.Budget{}
	if cfg.RateLimit.Enabled {
		budgets = map[models.Provider]ratelimit.Budget{
			models.ProviderMAL:     budget(cfg.RateLimit.MAL),
			models.ProviderAniList: budget(cfg.RateLimit.AniList),
			models.ProviderTMDB:    budget(cfg.RateLimit.TMDB),
			models.ProviderYouTube: budget(cfg.RateLimit.YouTube),
		}
	}
	limiter := ratelimit.NewLimiter(budgets)

	stack := providers.NewStack(providers.StackConfig{
		Gateway: transport.NewGateway(cfg.Server.Timeout),
		Cache:   respCache,
		Limiter: limiter,
		Retrier: retry.NewController(retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		}),
		TTLs: map[models.Provider]time.Duration{
			models.ProviderMAL:     cfg.Cache.MALTTL,
			models.ProviderAniList: cfg.Cache.AniListTTL,
			models.ProviderTMDB:    cfg.Cache.TMDBTTL,
			models.ProviderYouTube: cfg.Cache.YouTubeTTL,
		},
		BreakerMaxFailures: cfg.Breaker.MaxFailures,
		BreakerOpenTimeout: cfg.Breaker.OpenTimeout,
	})

	overrides := loadOverrides(cfg.Reconcile.OverridesPath)

	var trailers reconcile.TrailerSearcher
	if cfg.Providers.YouTube.Enabled && cfg.Reconcile.TrailerLookup {
		trailers = providers.NewYouTubeAdapter(stack, cfg.Providers.YouTube.BaseURL, cfg.Providers.YouTube.Credential)
	}
	reconciler := reconcile.NewReconciler(overrides, trailers)

	scorer := score.NewScorer(score.Config{
		Weights:             cfg.Scorer.Weights,
		ConfidenceWeighting: cfg.Scorer.ConfidenceWeighting,
	})

	var sources []engine.CandidateSource
	var searchers []engine.Searcher
	if cfg.Providers.MAL.Enabled {
		mal := providers.NewMALAdapter(stack, cfg.Providers.MAL.BaseURL, cfg.Providers.MAL.Credential)
		sources = append(sources, engine.NewSeasonalSource(models.ProviderMAL, mal))
		searchers = append(searchers, mal)
	}
	if cfg.Providers.AniList.Enabled {
		anilist := providers.NewAniListAdapter(stack, cfg.Providers.AniList.BaseURL)
		sources = append(sources, engine.NewTrendingSource(models.ProviderAniList, anilist))
		searchers = append(searchers, anilist)
	}
	if cfg.Providers.TMDB.Enabled {
		tmdb := providers.NewTMDBAdapter(stack, cfg.Providers.TMDB.BaseURL, cfg.Providers.TMDB.Credential)
		sources = append(sources, engine.NewTrendingSource(models.ProviderTMDB, tmdb))
		searchers = append(searchers, tmdb)
	}
	if len(sources) == 0 {
		logging.Fatal().Msg("No catalog providers enabled")
	}

	eng := engine.New(engine.Config{
		CandidatesPerProvider: cfg.Engine.CandidatesPerProvider,
		MaxResults:            cfg.Engine.MaxResults,
		MinScore:              cfg.Engine.MinScore,
	}, sources, searchers, reconciler, scorer)

	server := api.NewServer(cfg.Server, api.NewHandler(eng, stack, limiter, respCache))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			logging.Fatal().Err(err).Msg("Server failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Err(err).Msg("Graceful shutdown failed")
	}
	logging.Info().Msg("Shutdown complete")
}

func budget(b config.ProviderBudget) ratelimit.Budget {
	return ratelimit.Budget{
		Requests:  b.Requests,
		Window:    b.Window,
		SmoothRPS: b.SmoothRPS,
		Cooldown:  b.Cooldown,
	}
}

// loadOverrides reads the curated cross-provider link table. A missing
// file is tolerated (empty table); a malformed one is fatal since it is a
// version-controlled asset that should never ship broken.
func loadOverrides(path string) *reconcile.OverrideTable {
	if path == "" {
		return reconcile.NewOverrideTable()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Warn().Str("path", path).Msg("Override table not found, continuing without it")
		return reconcile.NewOverrideTable()
	}
	table, err := reconcile.LoadOverrideTable(path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load override table")
	}
	logging.Info().Int("links", table.Len()).Msg("Override table loaded")
	return table
}
