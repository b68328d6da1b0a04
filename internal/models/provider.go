// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package models defines the provider-agnostic data model shared by the
// provider adapters, the identity reconciler, and the match scorer.
package models

// Provider identifies an external catalog service.
type Provider string

const (
	// ProviderMAL is the key-header authenticated title/metadata catalog.
	ProviderMAL Provider = "mal"
	// ProviderAniList is the GraphQL media catalog.
	ProviderAniList Provider = "anilist"
	// ProviderTMDB is the TV/movie metadata catalog.
	ProviderTMDB Provider = "tmdb"
	// ProviderYouTube is the video-search service used for trailers.
	ProviderYouTube Provider = "youtube"
)

// providerRank orders providers by merge precedence. Lower rank wins field
// conflicts during reconciliation. The video-search provider is last because
// its thumbnails frequently mismatch the actual content.
var providerRank = map[Provider]int{
	ProviderMAL:     0,
	ProviderAniList: 1,
	ProviderTMDB:    2,
	ProviderYouTube: 3,
}

// AllProviders returns the known providers in priority order.
func AllProviders() []Provider {
	return []Provider{ProviderMAL, ProviderAniList, ProviderTMDB, ProviderYouTube}
}

// Rank returns the merge precedence of the provider. Unknown providers sort
// after all known ones.
func (p Provider) Rank() int {
	if r, ok := providerRank[p]; ok {
		return r
	}
	return len(providerRank)
}

// Known reports whether the provider is one of the supported services.
func (p Provider) Known() bool {
	_, ok := providerRank[p]
	return ok
}
