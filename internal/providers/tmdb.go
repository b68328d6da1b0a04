// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package providers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/transport"
)

// tmdbImageBase prefixes relative poster paths from the TV catalog.
const tmdbImageBase = "https://image.tmdb.org/t/p/w500"

// tmdbGenreNames maps the TV catalog's numeric genre IDs (list endpoints
// carry only IDs) to names. Detail endpoints carry names inline.
var tmdbGenreNames = map[int]string{
	16:    "Animation",
	18:    "Drama",
	35:    "Comedy",
	80:    "Crime",
	9648:  "Mystery",
	10759: "Action & Adventure",
	10762: "Kids",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10768: "War & Politics",
}

// TMDBAdapter talks to the query-string-key TV metadata catalog. The
// catalog is not anime-specific, so search results get a tie-break chain
// biasing them toward anime: origin-locale match, then exact-title match,
// then declared popularity descending.
type TMDBAdapter struct {
	stack   *Stack
	baseURL string
	apiKey  string
}

// NewTMDBAdapter creates the TV metadata adapter.
func NewTMDBAdapter(stack *Stack, baseURL, apiKey string) *TMDBAdapter {
	return &TMDBAdapter{stack: stack, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

// Provider implements Adapter.
func (a *TMDBAdapter) Provider() models.Provider { return models.ProviderTMDB }

// tmdbShow is the provider-native TV show shape. List endpoints populate
// GenreIDs; the detail endpoint populates Genres and NumberOfEpisodes.
type tmdbShow struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	OriginalLanguage string   `json:"original_language"`
	Overview         string   `json:"overview"`
	PosterPath       string   `json:"poster_path"`
	GenreIDs         []int    `json:"genre_ids"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	OriginCountry    []string `json:"origin_country"`
}

type tmdbResults struct {
	Results []tmdbShow `json:"results"`
}

// GetByID implements Adapter. A 404 maps to (nil, nil).
func (a *TMDBAdapter) GetByID(ctx context.Context, id string) (*models.CanonicalAnime, error) {
	if err := validateInput(id); err != nil {
		return nil, err
	}
	q := transport.Query{
		Provider:  models.ProviderTMDB,
		Operation: "get_by_id",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/tv/" + id,
		Params:    map[string]string{"api_key": a.apiKey},
	}

	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var show tmdbShow
	if err := resp.Decode(&show); err != nil {
		return nil, err
	}
	if show.ID == 0 {
		return nil, nil
	}
	anime := a.toFragment(show)
	return &anime, nil
}

// SearchByTitle implements Adapter with the anime-bias tie-break chain.
func (a *TMDBAdapter) SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error) {
	if err := validateInput(query); err != nil {
		return nil, err
	}
	q := transport.Query{
		Provider:  models.ProviderTMDB,
		Operation: "search",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/search/tv",
		Params: map[string]string{
			"api_key": a.apiKey,
			"query":   query,
		},
	}

	shows, err := a.list(ctx, q)
	if err != nil {
		return nil, err
	}

	rankSearchResults(shows, query)

	out := make([]models.CanonicalAnime, 0, limit)
	for _, show := range shows {
		out = append(out, a.toFragment(show))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetTrending implements TrendingLister using the weekly trending window,
// filtered to animated Japanese-origin shows.
func (a *TMDBAdapter) GetTrending(ctx context.Context, limit int) ([]models.CanonicalAnime, error) {
	q := transport.Query{
		Provider:  models.ProviderTMDB,
		Operation: "trending",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/trending/tv/week",
		Params:    map[string]string{"api_key": a.apiKey},
	}

	shows, err := a.list(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]models.CanonicalAnime, 0, limit)
	for _, show := range shows {
		if !isLikelyAnime(show) {
			continue
		}
		out = append(out, a.toFragment(show))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (a *TMDBAdapter) list(ctx context.Context, q transport.Query) ([]tmdbShow, error) {
	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var envelope tmdbResults
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

// rankSearchResults orders shows by the tie-break chain: origin-locale
// match first, exact-title match second, popularity descending last.
// Stable so provider ordering breaks any remaining ties deterministically.
func rankSearchResults(shows []tmdbShow, query string) {
	lowered := strings.ToLower(strings.TrimSpace(query))
	sort.SliceStable(shows, func(i, j int) bool {
		li, lj := shows[i].OriginalLanguage == "ja", shows[j].OriginalLanguage == "ja"
		if li != lj {
			return li
		}
		ei := strings.ToLower(shows[i].Name) == lowered || strings.ToLower(shows[i].OriginalName) == lowered
		ej := strings.ToLower(shows[j].Name) == lowered || strings.ToLower(shows[j].OriginalName) == lowered
		if ei != ej {
			return ei
		}
		return shows[i].Popularity > shows[j].Popularity
	})
}

// isLikelyAnime keeps animated Japanese-origin shows from generic listings.
func isLikelyAnime(show tmdbShow) bool {
	animated := false
	for _, id := range show.GenreIDs {
		if id == 16 {
			animated = true
			break
		}
	}
	return animated && show.OriginalLanguage == "ja"
}

func (a *TMDBAdapter) toFragment(show tmdbShow) models.CanonicalAnime {
	var alternates []string
	if show.OriginalName != "" && show.OriginalName != show.Name {
		alternates = append(alternates, show.OriginalName)
	}

	var images []models.Image
	if show.PosterPath != "" {
		images = append(images, models.Image{URL: tmdbImageBase + show.PosterPath, Source: models.ProviderTMDB, Resolution: "w500"})
	}

	var genres []string
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}
	for _, id := range show.GenreIDs {
		if name, ok := tmdbGenreNames[id]; ok {
			genres = append(genres, name)
		}
	}
	genres = models.NormalizeGenres(genres)

	return models.CanonicalAnime{
		Titles:      models.Titles{Primary: show.Name, Alternates: alternates},
		ExternalIDs: map[models.Provider]string{models.ProviderTMDB: strconv.Itoa(show.ID)},
		Images:      images,
		Synopsis:    show.Overview,
		Genres:      genres,
		Traits:      models.TraitsFromGenres(genres),
		MeanScore:   show.VoteAverage,
		Popularity:  show.Popularity,
		Episodes:    show.NumberOfEpisodes,
	}
}
