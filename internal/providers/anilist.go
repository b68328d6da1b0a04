// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package providers

import (
	"context"
	"strconv"

	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/transport"
)

// aniListMediaFields is the selection shared by every media query.
const aniListMediaFields = `
id
idMal
title { romaji english native }
coverImage { extraLarge large }
description(asHtml: false)
genres
averageScore
popularity
episodes
studios(isMain: true) { nodes { name } }
trailer { id site thumbnail }`

const aniListSearchQuery = `query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME) {` + aniListMediaFields + `
    }
  }
}`

const aniListTrendingQuery = `query ($perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(type: ANIME, sort: TRENDING_DESC) {` + aniListMediaFields + `
    }
  }
}`

const aniListByIDQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {` + aniListMediaFields + `
  }
}`

const aniListByMALIDQuery = `query ($idMal: Int) {
  Media(idMal: $idMal, type: ANIME) {` + aniListMediaFields + `
  }
}`

// AniListAdapter talks to the single-endpoint GraphQL media catalog.
// Auth is optional for read queries, so no credential is wired.
type AniListAdapter struct {
	stack   *Stack
	baseURL string
}

// NewAniListAdapter creates the GraphQL catalog adapter.
func NewAniListAdapter(stack *Stack, baseURL string) *AniListAdapter {
	return &AniListAdapter{stack: stack, baseURL: baseURL}
}

// Provider implements Adapter.
func (a *AniListAdapter) Provider() models.Provider { return models.ProviderAniList }

// aniListMedia is the provider-native media shape.
type aniListMedia struct {
	ID    int  `json:"id"`
	IDMal *int `json:"idMal"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	CoverImage struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
	} `json:"coverImage"`
	Description  string   `json:"description"`
	Genres       []string `json:"genres"`
	AverageScore float64  `json:"averageScore"`
	Popularity   float64  `json:"popularity"`
	Episodes     int      `json:"episodes"`
	Studios      struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	Trailer *struct {
		ID        string `json:"id"`
		Site      string `json:"site"`
		Thumbnail string `json:"thumbnail"`
	} `json:"trailer"`
}

type aniListPage struct {
	Media []aniListMedia `json:"media"`
}

func (a *AniListAdapter) query(op, gqlQuery string, vars map[string]any) transport.Query {
	return transport.Query{
		Provider:  models.ProviderAniList,
		Operation: op,
		URL:       a.baseURL,
		GraphQL:   &transport.GraphQLBody{Query: gqlQuery, Variables: vars},
	}
}

// SearchByTitle implements Adapter. The catalog is anime-only and orders
// by its own relevance, so no extra tie-breaking applies.
func (a *AniListAdapter) SearchByTitle(ctx context.Context, query string, limit int) ([]models.CanonicalAnime, error) {
	if err := validateInput(query); err != nil {
		return nil, err
	}
	q := a.query("search", aniListSearchQuery, map[string]any{"search": query, "perPage": limit})
	return a.page(ctx, q)
}

// GetTrending implements TrendingLister.
func (a *AniListAdapter) GetTrending(ctx context.Context, limit int) ([]models.CanonicalAnime, error) {
	q := a.query("trending", aniListTrendingQuery, map[string]any{"perPage": limit})
	return a.page(ctx, q)
}

// GetByID implements Adapter, keyed by the catalog's own numeric ID.
func (a *AniListAdapter) GetByID(ctx context.Context, id string) (*models.CanonicalAnime, error) {
	numeric, err := strconv.Atoi(id)
	if err != nil {
		return nil, nil
	}
	return a.single(ctx, a.query("get_by_id", aniListByIDQuery, map[string]any{"id": numeric}))
}

// GetByMALID looks a title up by its catalog-service ID. The GraphQL
// catalog cross-references those IDs natively, which makes it the cheapest
// automatic identity link during reconciliation.
func (a *AniListAdapter) GetByMALID(ctx context.Context, malID string) (*models.CanonicalAnime, error) {
	numeric, err := strconv.Atoi(malID)
	if err != nil {
		return nil, nil
	}
	return a.single(ctx, a.query("get_by_mal_id", aniListByMALIDQuery, map[string]any{"idMal": numeric}))
}

func (a *AniListAdapter) page(ctx context.Context, q transport.Query) ([]models.CanonicalAnime, error) {
	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var page aniListPage
	if err := resp.DecodeGraphQL("Page", &page); err != nil {
		return nil, err
	}

	out := make([]models.CanonicalAnime, 0, len(page.Media))
	for _, m := range page.Media {
		if m.ID == 0 {
			continue
		}
		out = append(out, a.toFragment(m))
	}
	return out, nil
}

func (a *AniListAdapter) single(ctx context.Context, q transport.Query) (*models.CanonicalAnime, error) {
	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var media aniListMedia
	if err := resp.DecodeGraphQL("Media", &media); err != nil {
		return nil, err
	}
	if media.ID == 0 {
		return nil, nil
	}
	anime := a.toFragment(media)
	return &anime, nil
}

func (a *AniListAdapter) toFragment(m aniListMedia) models.CanonicalAnime {
	primary := m.Title.Romaji
	if primary == "" {
		primary = m.Title.English
	}
	var alternates []string
	for _, t := range []string{m.Title.English, m.Title.Native} {
		if t != "" && t != primary {
			alternates = append(alternates, t)
		}
	}

	externalIDs := map[models.Provider]string{
		models.ProviderAniList: strconv.Itoa(m.ID),
	}
	if m.IDMal != nil && *m.IDMal != 0 {
		externalIDs[models.ProviderMAL] = strconv.Itoa(*m.IDMal)
	}

	var images []models.Image
	if m.CoverImage.ExtraLarge != "" {
		images = append(images, models.Image{URL: m.CoverImage.ExtraLarge, Source: models.ProviderAniList, Resolution: "extra_large"})
	} else if m.CoverImage.Large != "" {
		images = append(images, models.Image{URL: m.CoverImage.Large, Source: models.ProviderAniList, Resolution: "large"})
	}

	var trailer *models.Trailer
	if m.Trailer != nil && m.Trailer.Site == "youtube" && m.Trailer.ID != "" {
		trailer = &models.Trailer{
			URL:       "https://www.youtube.com/watch?v=" + m.Trailer.ID,
			Thumbnail: m.Trailer.Thumbnail,
		}
	}

	genres := models.NormalizeGenres(m.Genres)

	studios := make([]string, 0, len(m.Studios.Nodes))
	for _, s := range m.Studios.Nodes {
		if s.Name != "" {
			studios = append(studios, s.Name)
		}
	}

	return models.CanonicalAnime{
		Titles:      models.Titles{Primary: primary, Alternates: alternates},
		ExternalIDs: externalIDs,
		Images:      images,
		Trailer:     trailer,
		Synopsis:    m.Description,
		Genres:      genres,
		Traits:      models.TraitsFromGenres(genres),
		MeanScore:   m.AverageScore / 10, // provider scores 0-100; normalize to 0-10
		Popularity:  m.Popularity,
		Episodes:    m.Episodes,
		Studios:     studios,
	}
}
