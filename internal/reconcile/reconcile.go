// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
reconcile.go - Identity Reconciler

Takes partial records produced by different provider adapters and merges
the ones describing the same logical anime into one canonical record.
Grouping links fragments three ways: a shared provider ID, a curated
override-table identity, or a normalized-title match. Merging is
order-independent: fragments are sorted by provider priority before field
resolution, so the result never depends on which provider answered first.

Fragments carrying zero external IDs cannot be linked to anything and are
dropped.
*/

//nolint:staticcheck // File documentation, not package doc
package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/metrics"
	"github.com/tomtom215/animatch/internal/models"
)

// TrailerSearcher probes the video-search provider for a merged title's
// trailer. Optional; a nil searcher leaves trailers as the catalog
// providers reported them.
type TrailerSearcher interface {
	GetTrailerCandidates(ctx context.Context, title string, limit int) ([]models.Trailer, error)
}

// Reconciler merges provider fragments into canonical records.
type Reconciler struct {
	overrides *OverrideTable
	trailers  TrailerSearcher
}

// NewReconciler creates a Reconciler. overrides may be empty but not nil;
// trailers may be nil to disable the trailer probe.
func NewReconciler(overrides *OverrideTable, trailers TrailerSearcher) *Reconciler {
	if overrides == nil {
		overrides = NewOverrideTable()
	}
	return &Reconciler{overrides: overrides, trailers: trailers}
}

// Reconcile merges fragments into one canonical record per logical anime.
// Output ordering is deterministic: records sort by their highest-priority
// provider's ID.
func (r *Reconciler) Reconcile(ctx context.Context, fragments []models.CanonicalAnime) []models.CanonicalAnime {
	// Drop fragments that cannot participate in identity at all.
	usable := make([]models.CanonicalAnime, 0, len(fragments))
	for _, f := range fragments {
		if len(f.ExternalIDs) == 0 {
			logging.Debug().Str("title", f.Titles.Primary).Msg("Dropping fragment without external IDs")
			continue
		}
		usable = append(usable, f)
	}
	if len(usable) == 0 {
		return nil
	}

	groups := r.group(usable)

	out := make([]models.CanonicalAnime, 0, len(groups))
	for _, members := range groups {
		merged := r.merge(ctx, members)
		out = append(out, merged)
		metrics.ReconcileMerges.Inc()
	}

	sort.Slice(out, func(i, j int) bool { return recordSortKey(out[i]) < recordSortKey(out[j]) })
	return out
}

// group partitions fragments with union-find over three link kinds:
// shared provider ID, shared override identity, equal normalized title.
func (r *Reconciler) group(fragments []models.CanonicalAnime) [][]models.CanonicalAnime {
	parent := make([]int, len(fragments))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	byID := make(map[string]int)
	byOverride := make(map[int]int)
	byTitle := make(map[string]int)

	for i, f := range fragments {
		for p, id := range f.ExternalIDs {
			key := string(p) + "|" + id
			if prev, ok := byID[key]; ok {
				union(prev, i)
			} else {
				byID[key] = i
			}
			if g, ok := r.overrides.GroupFor(p, id); ok {
				if prev, ok := byOverride[g]; ok {
					union(prev, i)
					metrics.ReconcileOverrideHits.Inc()
				} else {
					byOverride[g] = i
				}
			}
		}
		if t := normalizeTitle(f.Titles.Primary); t != "" {
			if prev, ok := byTitle[t]; ok {
				union(prev, i)
			} else {
				byTitle[t] = i
			}
		}
	}

	grouped := make(map[int][]models.CanonicalAnime)
	for i, f := range fragments {
		root := find(i)
		grouped[root] = append(grouped[root], f)
	}

	out := make([][]models.CanonicalAnime, 0, len(grouped))
	for _, members := range grouped {
		out = append(out, members)
	}
	return out
}

// merge resolves one group into a canonical record. Fragments are sorted by
// provider priority first so field precedence is stable for any arrival
// order.
func (r *Reconciler) merge(ctx context.Context, members []models.CanonicalAnime) models.CanonicalAnime {
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := fragmentRank(members[i]), fragmentRank(members[j])
		if ri != rj {
			return ri < rj
		}
		return recordSortKey(members[i]) < recordSortKey(members[j])
	})

	merged := models.CanonicalAnime{
		ExternalIDs: make(map[models.Provider]string),
		Traits:      make(map[string]float64),
	}

	seenTitles := make(map[string]bool)
	seenImages := make(map[string]bool)
	var videoImages []models.Image
	genreSet := make(map[string]bool)

	for _, f := range members {
		if merged.Titles.Primary == "" && f.Titles.Primary != "" {
			merged.Titles.Primary = f.Titles.Primary
			seenTitles[normalizeTitle(f.Titles.Primary)] = true
		}
		for _, alt := range append([]string{f.Titles.Primary}, f.Titles.Alternates...) {
			key := normalizeTitle(alt)
			if alt == "" || seenTitles[key] {
				continue
			}
			seenTitles[key] = true
			merged.Titles.Alternates = append(merged.Titles.Alternates, alt)
		}

		for p, id := range f.ExternalIDs {
			if _, ok := merged.ExternalIDs[p]; !ok {
				merged.ExternalIDs[p] = id
			}
		}

		for _, img := range f.Images {
			if img.URL == "" || seenImages[img.URL] {
				continue
			}
			seenImages[img.URL] = true
			// Video-search thumbnails often mismatch content; always last.
			if img.Source == models.ProviderYouTube {
				videoImages = append(videoImages, img)
			} else {
				merged.Images = append(merged.Images, img)
			}
		}

		// Earlier (higher-priority) trait values are never overwritten.
		for name, v := range f.Traits {
			if _, ok := merged.Traits[name]; !ok {
				merged.Traits[name] = v
			}
		}

		for _, g := range f.Genres {
			genreSet[g] = true
		}

		if merged.Trailer == nil && f.Trailer != nil {
			merged.Trailer = f.Trailer
		}
		if merged.Synopsis == "" {
			merged.Synopsis = f.Synopsis
		}
		if merged.MeanScore == 0 {
			merged.MeanScore = f.MeanScore
		}
		if merged.Popularity == 0 {
			merged.Popularity = f.Popularity
		}
		if merged.Episodes == 0 {
			merged.Episodes = f.Episodes
		}
		if len(merged.Studios) == 0 {
			merged.Studios = f.Studios
		}
	}

	merged.Images = append(merged.Images, videoImages...)

	// Inject the full curated ID set when any member belongs to a curated
	// identity, so single-provider fragments still come out fully linked.
	for p, id := range merged.ExternalIDs {
		if g, ok := r.overrides.GroupFor(p, id); ok {
			for op, oid := range r.overrides.IDs(g) {
				if _, exists := merged.ExternalIDs[op]; !exists {
					merged.ExternalIDs[op] = oid
				}
			}
			break
		}
	}

	genres := make([]string, 0, len(genreSet))
	for g := range genreSet {
		genres = append(genres, g)
	}
	merged.Genres = models.NormalizeGenres(genres)

	if len(merged.Traits) == 0 {
		merged.Traits = nil
	}

	if merged.Trailer == nil && r.trailers != nil && merged.Titles.Primary != "" {
		merged.Trailer = r.probeTrailer(ctx, merged.Titles.Primary)
	}

	return merged
}

// probeTrailer asks the video-search provider for the merged title's
// trailer. Any failure (quota cooldown included) degrades to no trailer.
func (r *Reconciler) probeTrailer(ctx context.Context, title string) *models.Trailer {
	candidates, err := r.trailers.GetTrailerCandidates(ctx, title, 3)
	if err != nil {
		logging.Debug().Err(err).Str("title", title).Msg("Trailer probe failed")
		return nil
	}
	for i := range candidates {
		if candidates[i].URL != "" {
			return &candidates[i]
		}
	}
	return nil
}

// fragmentRank is the fragment's best (lowest) provider rank.
func fragmentRank(f models.CanonicalAnime) int {
	best := len(models.AllProviders()) + 1
	for p := range f.ExternalIDs {
		if r := p.Rank(); r < best {
			best = r
		}
	}
	return best
}

// recordSortKey gives a record a stable identity-based ordering key.
func recordSortKey(f models.CanonicalAnime) string {
	for _, p := range models.AllProviders() {
		if id, ok := f.ExternalIDs[p]; ok {
			return string(p) + "|" + id
		}
	}
	return "~" + normalizeTitle(f.Titles.Primary)
}

// normalizeTitle folds a title for identity comparison.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
