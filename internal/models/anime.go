// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package models

import (
	"sort"
	"strings"
)

// Titles holds the display title of an anime plus any alternates
// (localized titles, synonyms) contributed by providers.
type Titles struct {
	Primary    string   `json:"primary"`
	Alternates []string `json:"alternates,omitempty"`
}

// Image is one cover/poster/thumbnail URL with its origin and a coarse
// resolution label (e.g. "medium", "large", "w500", "hqdefault").
type Image struct {
	URL        string   `json:"url"`
	Source     Provider `json:"source"`
	Resolution string   `json:"resolution,omitempty"`
}

// Trailer describes a trailer video located through the video-search
// provider.
type Trailer struct {
	URL        string `json:"url"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	VideoTitle string `json:"video_title,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// CanonicalAnime is the merged, provider-agnostic representation of one
// logical anime. Provider adapters emit partial records (fragments) of this
// same shape; the reconciler merges fragments into complete records.
//
// Invariant: after reconciliation ExternalIDs contains at least one entry.
// Records with zero known external IDs are dropped during reconciliation.
type CanonicalAnime struct {
	Titles      Titles              `json:"titles"`
	ExternalIDs map[Provider]string `json:"external_ids"`
	Images      []Image             `json:"images,omitempty"`
	Trailer     *Trailer            `json:"trailer,omitempty"`
	Synopsis    string              `json:"synopsis,omitempty"`

	// Traits maps trait names to scores in [0,10]. Sparse until enough
	// providers contribute.
	Traits map[string]float64 `json:"traits,omitempty"`

	// Genres is a sorted set of normalized genre strings.
	Genres []string `json:"genres,omitempty"`

	// MeanScore is the provider community rating on a 0-10 scale.
	MeanScore float64 `json:"mean_score,omitempty"`

	// Popularity is a provider-reported popularity metric. Only comparable
	// within one provider; used for search tie-breaking.
	Popularity float64 `json:"popularity,omitempty"`

	Episodes int      `json:"episodes,omitempty"`
	Studios  []string `json:"studios,omitempty"`
}

// HasExternalID reports whether the record carries an ID for the provider.
func (a *CanonicalAnime) HasExternalID(p Provider) bool {
	_, ok := a.ExternalIDs[p]
	return ok
}

// NormalizeGenre lowercases a genre label and collapses separators so genre
// sets from different providers compare equal ("Sci-Fi" == "sci fi" ==
// "sci_fi").
func NormalizeGenre(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	g = strings.NewReplacer("-", " ", "_", " ").Replace(g)
	return strings.Join(strings.Fields(g), " ")
}

// NormalizeGenres normalizes, deduplicates, and sorts a genre list.
func NormalizeGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		n := NormalizeGenre(g)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
