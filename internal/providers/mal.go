// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/transport"
)

// malFields is the field selection requested on every catalog call. The
// API returns only id and title unless fields are named explicitly.
const malFields = "id,title,alternative_titles,main_picture,synopsis,genres,mean,num_list_users,num_episodes,studios"

// MALAdapter talks to the key-header-authenticated title catalog. List
// endpoints wrap items in a {data:[{node:...}]} envelope; by-ID returns
// the node directly.
type MALAdapter struct {
	stack    *Stack
	baseURL  string
	clientID string
}

// NewMALAdapter creates the catalog adapter.
func NewMALAdapter(stack *Stack, baseURL, clientID string) *MALAdapter {
	return &MALAdapter{stack: stack, baseURL: strings.TrimSuffix(baseURL, "/"), clientID: clientID}
}

// Provider implements Adapter.
func (a *MALAdapter) Provider() models.Provider { return models.ProviderMAL }

// malNode is the provider-native anime shape.
type malNode struct {
	ID                int    `json:"id"`
	Title             string `json:"title"`
	AlternativeTitles struct {
		En       string   `json:"en"`
		Ja       string   `json:"ja"`
		Synonyms []string `json:"synonyms"`
	} `json:"alternative_titles"`
	MainPicture struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"main_picture"`
	Synopsis string `json:"synopsis"`
	Genres   []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Mean         float64 `json:"mean"`
	NumListUsers float64 `json:"num_list_users"`
	NumEpisodes  int     `json:"num_episodes"`
	Studios      []struct {
		Name string `json:"name"`
	} `json:"studios"`
}

// malList is the list-endpoint envelope.
type malList struct {
	Data []struct {
		Node malNode `json:"node"`
	} `json:"data"`
}

func (a *MALAdapter) headers() map[string]string {
	return map[string]string{"X-MAL-CLIENT-ID": a.clientID}
}

// GetByID implements Adapter. A 404 maps to (nil, nil).
func (a *MALAdapter) GetByID(ctx context.Context, id string) (*models.CanonicalAnime, error) {
	if err := validateInput(id); err != nil {
		return nil, err
	}
	q := transport.Query{
		Provider:  models.ProviderMAL,
		Operation: "get_by_id",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/anime/" + id,
		Params:    map[string]string{"fields": malFields},
		Headers:   a.headers(),
	}

	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var node malNode
	if err := resp.Decode(&node); err != nil {
		return nil, err
	}
	anime := a.toFragment(node)
	return &anime, nil
}

// SearchByTitle implements Adapter. The catalog is anime-only, so the
// provider's own relevance ordering stands.
func (a *MALAdapter) SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error) {
	if err := validateInput(query); err != nil {
		return nil, err
	}
	q := transport.Query{
		Provider:  models.ProviderMAL,
		Operation: "search",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/anime",
		Params: map[string]string{
			"q":      query,
			"limit":  strconv.Itoa(limit),
			"fields": malFields,
		},
		Headers: a.headers(),
	}
	return a.list(ctx, q, limit)
}

// GetSeasonal implements SeasonalLister. Season is one of winter, spring,
// summer, fall.
func (a *MALAdapter) GetSeasonal(ctx context.Context, year int, season string, limit int) ([]models.CanonicalAnime, error) {
	season = strings.ToLower(season)
	switch season {
	case "winter", "spring", "summer", "fall":
	default:
		return nil, fmt.Errorf("unknown season %q", season)
	}

	q := transport.Query{
		Provider:  models.ProviderMAL,
		Operation: "seasonal",
		Method:    http.MethodGet,
		URL:       fmt.Sprintf("%s/anime/season/%d/%s", a.baseURL, year, season),
		Params: map[string]string{
			"limit":  strconv.Itoa(limit),
			"fields": malFields,
			"sort":   "anime_num_list_users",
		},
		Headers: a.headers(),
	}
	return a.list(ctx, q, limit)
}

func (a *MALAdapter) list(ctx context.Context, q transport.Query, limit int) ([]models.CanonicalAnime, error) {
	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var envelope malList
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}

	out := make([]models.CanonicalAnime, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if item.Node.ID == 0 {
			continue
		}
		out = append(out, a.toFragment(item.Node))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// toFragment maps a provider node to a partial canonical record.
func (a *MALAdapter) toFragment(node malNode) models.CanonicalAnime {
	alternates := make([]string, 0, 2+len(node.AlternativeTitles.Synonyms))
	for _, t := range []string{node.AlternativeTitles.En, node.AlternativeTitles.Ja} {
		if t != "" && t != node.Title {
			alternates = append(alternates, t)
		}
	}
	alternates = append(alternates, node.AlternativeTitles.Synonyms...)

	var images []models.Image
	if node.MainPicture.Large != "" {
		images = append(images, models.Image{URL: node.MainPicture.Large, Source: models.ProviderMAL, Resolution: "large"})
	} else if node.MainPicture.Medium != "" {
		images = append(images, models.Image{URL: node.MainPicture.Medium, Source: models.ProviderMAL, Resolution: "medium"})
	}

	genres := make([]string, 0, len(node.Genres))
	for _, g := range node.Genres {
		genres = append(genres, g.Name)
	}
	genres = models.NormalizeGenres(genres)

	studios := make([]string, 0, len(node.Studios))
	for _, s := range node.Studios {
		if s.Name != "" {
			studios = append(studios, s.Name)
		}
	}

	return models.CanonicalAnime{
		Titles:      models.Titles{Primary: node.Title, Alternates: alternates},
		ExternalIDs: map[models.Provider]string{models.ProviderMAL: strconv.Itoa(node.ID)},
		Images:      images,
		Synopsis:    node.Synopsis,
		Genres:      genres,
		Traits:      models.TraitsFromGenres(genres),
		MeanScore:   node.Mean,
		Popularity:  node.NumListUsers,
		Episodes:    node.NumEpisodes,
		Studios:     studios,
	}
}
