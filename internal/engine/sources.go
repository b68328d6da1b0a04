// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/providers"
)

// SeasonalSource feeds the current broadcast season from a seasonal-capable
// catalog into the candidate pool.
type SeasonalSource struct {
	provider models.Provider
	lister   providers.SeasonalLister

	// now is swappable so season selection is testable.
	now func() time.Time
}

// NewSeasonalSource wraps a seasonal catalog listing as a candidate source.
func NewSeasonalSource(provider models.Provider, lister providers.SeasonalLister) *SeasonalSource {
	return &SeasonalSource{provider: provider, lister: lister, now: time.Now}
}

// Provider implements CandidateSource.
func (s *SeasonalSource) Provider() models.Provider { return s.provider }

// Candidates implements CandidateSource with the current year and season.
func (s *SeasonalSource) Candidates(ctx context.Context, limit int) ([]models.CanonicalAnime, error) {
	year, season := currentSeason(s.now())
	return s.lister.GetSeasonal(ctx, year, season, limit)
}

// currentSeason maps a timestamp to the anime broadcast season containing
// it: winter (Jan-Mar), spring (Apr-Jun), summer (Jul-Sep), fall (Oct-Dec).
func currentSeason(t time.Time) (int, string) {
	switch t.Month() {
	case time.January, time.February, time.March:
		return t.Year(), "winter"
	case time.April, time.May, time.June:
		return t.Year(), "spring"
	case time.July, time.August, time.September:
		return t.Year(), "summer"
	default:
		return t.Year(), "fall"
	}
}

// TrendingSource feeds a trending listing into the candidate pool.
type TrendingSource struct {
	provider models.Provider
	lister   providers.TrendingLister
}

// NewTrendingSource wraps a trending catalog listing as a candidate source.
func NewTrendingSource(provider models.Provider, lister providers.TrendingLister) *TrendingSource {
	return &TrendingSource{provider: provider, lister: lister}
}

// Provider implements CandidateSource.
func (s *TrendingSource) Provider() models.Provider { return s.provider }

// Candidates implements CandidateSource.
func (s *TrendingSource) Candidates(ctx context.Context, limit int) ([]models.CanonicalAnime, error) {
	return s.lister.GetTrending(ctx, limit)
}
