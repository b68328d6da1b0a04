// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package config defines the application configuration and its layered
// loading: built-in defaults, an optional YAML file, then ANIMATCH_*
// environment variables, with struct-tag validation at the end.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Providers ProvidersConfig `koanf:"providers"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Retry     RetryConfig     `koanf:"retry"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
	Scorer    ScorerConfig    `koanf:"scorer"`
	Engine    EngineConfig    `koanf:"engine"`
}

// ScorerConfig controls compatibility scoring.
type ScorerConfig struct {
	// Weights are fixed per-trait weights. Traits absent from the map get
	// weight 1.
	Weights map[string]float64 `koanf:"weights"`

	// ConfidenceWeighting, when true, multiplies each trait's weight by
	// the user's per-trait confidence. Off by default; quiz confidence
	// normally gates which questions are asked, not how answers score.
	ConfidenceWeighting bool `koanf:"confidence_weighting"`
}

// ServerConfig controls the HTTP API surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// RateLimitReqs caps inbound requests per client per minute. Zero
	// disables inbound limiting.
	RateLimitReqs int      `koanf:"rate_limit_reqs" validate:"min=0"`
	CORSOrigins   []string `koanf:"cors_origins"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// ProviderConfig is one upstream provider's connection settings.
type ProviderConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// Credential is the provider's auth material: a client ID for the
	// catalog API, an API key for the TV-metadata and video providers.
	// The GraphQL catalog needs none.
	Credential string `koanf:"credential"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	MAL     ProviderConfig `koanf:"mal"`
	AniList ProviderConfig `koanf:"anilist"`
	TMDB    ProviderConfig `koanf:"tmdb"`
	YouTube ProviderConfig `koanf:"youtube"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// Enabled turns the read-through cache off entirely when false.
	Enabled  bool `koanf:"enabled"`
	Capacity int  `koanf:"capacity" validate:"min=0"`

	// Per-provider TTLs. Catalog metadata changes rarely; video search
	// results churn faster.
	MALTTL     time.Duration `koanf:"mal_ttl"`
	AniListTTL time.Duration `koanf:"anilist_ttl"`
	TMDBTTL    time.Duration `koanf:"tmdb_ttl"`
	YouTubeTTL time.Duration `koanf:"youtube_ttl"`
}

// ProviderBudget is one provider's request allowance.
type ProviderBudget struct {
	Requests  int           `koanf:"requests" validate:"min=0"`
	Window    time.Duration `koanf:"window"`
	SmoothRPS float64       `koanf:"smooth_rps" validate:"min=0"`
	Cooldown  time.Duration `koanf:"cooldown"`
}

// RateLimitConfig holds per-provider budgets.
type RateLimitConfig struct {
	// Enabled turns outbound limiting off entirely when false.
	Enabled bool           `koanf:"enabled"`
	MAL     ProviderBudget `koanf:"mal"`
	AniList ProviderBudget `koanf:"anilist"`
	TMDB    ProviderBudget `koanf:"tmdb"`
	YouTube ProviderBudget `koanf:"youtube"`
}

// RetryConfig controls transient-failure retries.
type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts" validate:"min=1,max=10"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"min=1ms"`
	MaxDelay     time.Duration `koanf:"max_delay" validate:"min=1ms"`
}

// BreakerConfig controls per-provider circuit breakers.
type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures" validate:"min=1"`
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"min=1s"`
}

// ReconcileConfig controls identity reconciliation.
type ReconcileConfig struct {
	// OverridesPath points to the curated cross-provider ID link table.
	// Empty disables the override table.
	OverridesPath string `koanf:"overrides_path"`

	// TrailerLookup enables the video-search probe that attaches trailers
	// to merged records.
	TrailerLookup bool `koanf:"trailer_lookup"`
}

// EngineConfig controls the recommendation pipeline.
type EngineConfig struct {
	// CandidatesPerProvider caps how many titles each catalog listing
	// contributes before reconciliation.
	CandidatesPerProvider int `koanf:"candidates_per_provider" validate:"min=1,max=100"`

	// MaxResults caps the scored list returned to callers.
	MaxResults int `koanf:"max_results" validate:"min=1,max=100"`

	// MinScore filters out weak matches. Zero keeps everything.
	MinScore int `koanf:"min_score" validate:"min=0,max=100"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8087,
			Timeout:       30 * time.Second,
			RateLimitReqs: 60,
			CORSOrigins:   []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Providers: ProvidersConfig{
			MAL: ProviderConfig{
				Enabled: true,
				BaseURL: "https://api.myanimelist.net/v2",
			},
			AniList: ProviderConfig{
				Enabled: true,
				BaseURL: "https://graphql.anilist.co",
			},
			TMDB: ProviderConfig{
				Enabled: true,
				BaseURL: "https://api.themoviedb.org/3",
			},
			YouTube: ProviderConfig{
				Enabled: true,
				BaseURL: "https://www.googleapis.com/youtube/v3",
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Capacity:   4096,
			MALTTL:     6 * time.Hour,
			AniListTTL: 6 * time.Hour,
			TMDBTTL:    12 * time.Hour,
			YouTubeTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			MAL:     ProviderBudget{Requests: 60, Window: time.Minute, Cooldown: time.Hour},
			AniList: ProviderBudget{Requests: 90, Window: time.Minute, Cooldown: time.Hour},
			TMDB:    ProviderBudget{Requests: 40, Window: 10 * time.Second, Cooldown: time.Hour},
			// Daily video-search quota; long cooldown since the quota
			// resets once a day.
			YouTube: ProviderBudget{Requests: 100, Window: 24 * time.Hour, Cooldown: 4 * time.Hour},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 60 * time.Second,
		},
		Reconcile: ReconcileConfig{
			OverridesPath: "data/overrides.yaml",
			TrailerLookup: true,
		},
		Scorer: ScorerConfig{
			Weights:             map[string]float64{},
			ConfidenceWeighting: false,
		},
		Engine: EngineConfig{
			CandidatesPerProvider: 20,
			MaxResults:            10,
			MinScore:              0,
		},
	}
}

// Validate checks the configuration with struct tags plus cross-field rules
// that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("invalid configuration: retry.max_delay (%s) below retry.initial_delay (%s)",
			c.Retry.MaxDelay, c.Retry.InitialDelay)
	}

	for name, p := range map[string]ProviderConfig{
		"mal":     c.Providers.MAL,
		"tmdb":    c.Providers.TMDB,
		"youtube": c.Providers.YouTube,
	} {
		if p.Enabled && p.Credential == "" {
			return fmt.Errorf("invalid configuration: providers.%s enabled without a credential", name)
		}
	}

	return nil
}
