// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package providers holds one adapter per external catalog plus the shared
// resilience pipeline they all call through. Adapters translate each
// provider's native JSON shape into partial canonical fragments; missing
// optional fields (synopsis, studios, episode counts) never fail a record.
package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/animatch/internal/models"
)

// ErrEmptyQuery is returned before any network call when a search query or
// lookup ID is blank.
var ErrEmptyQuery = errors.New("empty query")

// validateInput rejects blank queries and IDs up front so a bad call never
// burns rate-limit budget.
func validateInput(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// Adapter is the operation set every provider exposes.
type Adapter interface {
	Provider() models.Provider

	// SearchByTitle returns up to limit fragments matching the query,
	// ordered by the provider's tie-break chain.
	SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error)

	// GetByID returns a single fragment, or nil with no error when the
	// provider has no record for the ID.
	GetByID(ctx context.Context, id string) (*models.CanonicalAnime, error)
}

// SeasonalLister is implemented by catalogs that can list a broadcast
// season.
type SeasonalLister interface {
	GetSeasonal(ctx context.Context, year int, season string, limit int) ([]models.CanonicalAnime, error)
}

// TrendingLister is implemented by catalogs that expose a trending or
// currently-popular listing.
type TrendingLister interface {
	GetTrending(ctx context.Context, limit int) ([]models.CanonicalAnime, error)
}

// TrailerSearcher is implemented by the video-search provider: given a
// title it returns candidate trailers, best first.
type TrailerSearcher interface {
	GetTrailerCandidates(ctx context.Context, title string, limit int) ([]models.Trailer, error)
}
