// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package providers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/transport"
)

// trailerQualifier is appended to every trailer search so results bias
// toward official anime trailers instead of fan uploads or same-named
// live-action titles.
const trailerQualifier = " official trailer anime"

// YouTubeAdapter talks to the query-string-key video-search service. Its
// only catalog role is trailer lookup; its daily quota is guarded by the
// 403 quota-reason detector in the call stack.
type YouTubeAdapter struct {
	stack   *Stack
	baseURL string
	apiKey  string
}

// NewYouTubeAdapter creates the video-search adapter.
func NewYouTubeAdapter(stack *Stack, baseURL, apiKey string) *YouTubeAdapter {
	return &YouTubeAdapter{stack: stack, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

// Provider returns the adapter's provider name.
func (a *YouTubeAdapter) Provider() models.Provider { return models.ProviderYouTube }

type youtubeSearch struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// GetTrailerCandidates implements TrailerSearcher. Candidates come back in
// the provider's relevance order, best first.
func (a *YouTubeAdapter) GetTrailerCandidates(ctx context.Context, title string, limit int) ([]models.Trailer, error) {
	if err := validateInput(title); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	q := transport.Query{
		Provider:  models.ProviderYouTube,
		Operation: "trailer_search",
		Method:    http.MethodGet,
		URL:       a.baseURL + "/search",
		Params: map[string]string{
			"part":       "snippet",
			"q":          title + trailerQualifier,
			"type":       "video",
			"maxResults": strconv.Itoa(limit),
			"key":        a.apiKey,
		},
	}

	resp, err := a.stack.Raw(ctx, q)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var result youtubeSearch
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}

	trailers := make([]models.Trailer, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		thumbnail := item.Snippet.Thumbnails.High.URL
		if thumbnail == "" {
			thumbnail = item.Snippet.Thumbnails.Medium.URL
		}
		trailers = append(trailers, models.Trailer{
			URL:        "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Thumbnail:  thumbnail,
			VideoTitle: item.Snippet.Title,
			Channel:    item.Snippet.ChannelTitle,
		})
	}
	return trailers, nil
}
