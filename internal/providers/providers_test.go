// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/animatch/internal/cache"
	"github.com/tomtom215/animatch/internal/models"
	"github.com/tomtom215/animatch/internal/ratelimit"
	"github.com/tomtom215/animatch/internal/retry"
	"github.com/tomtom215/animatch/internal/transport"
)

func newTestStack(budgets map[models.Provider]ratelimit.Budget) *Stack {
	ttls := make(map[models.Provider]time.Duration)
	for _, p := range models.AllProviders() {
		ttls[p] = time.Minute
	}
	return NewStack(StackConfig{
		Gateway: transport.NewGateway(5 * time.Second),
		Cache:   cache.NewResponseCache(100),
		Limiter: ratelimit.NewLimiter(budgets, ratelimit.WithMaxWait(10*time.Millisecond)),
		Retrier: retry.NewController(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
		TTLs:    ttls,
		// High threshold so breaker behavior stays out of these tests.
		BreakerMaxFailures: 100,
	})
}

const malDetailResponse = `{
	"id": 5114,
	"title": "Fullmetal Alchemist: Brotherhood",
	"alternative_titles": {"en": "Fullmetal Alchemist: Brotherhood", "ja": "鋼の錬金術師", "synonyms": ["FMA:B"]},
	"main_picture": {"medium": "https://cdn.example/m.jpg", "large": "https://cdn.example/l.jpg"},
	"synopsis": "Two brothers.",
	"genres": [{"name": "Action"}, {"name": "Drama"}],
	"mean": 9.1,
	"num_list_users": 3000000,
	"num_episodes": 64,
	"studios": [{"name": "Bones"}]
}`

const malSeasonalResponse = `{
	"data": [
		{"node": {"id": 1, "title": "First", "genres": [{"name": "Action"}]}},
		{"node": {"id": 2, "title": "Second", "genres": [{"name": "Drama"}]}},
		{"node": {"id": 3, "title": "Third"}}
	]
}`

func TestMALGetByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime/5114" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-MAL-CLIENT-ID"); got != "client-id" {
			t.Errorf("client id header = %q", got)
		}
		if r.URL.Query().Get("fields") == "" {
			t.Error("fields param must be set")
		}
		w.Write([]byte(malDetailResponse))
	}))
	defer server.Close()

	a := NewMALAdapter(newTestStack(nil), server.URL, "client-id")
	got, err := a.GetByID(context.Background(), "5114")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected a fragment")
	}
	if got.Titles.Primary != "Fullmetal Alchemist: Brotherhood" {
		t.Errorf("title = %q", got.Titles.Primary)
	}
	if got.ExternalIDs[models.ProviderMAL] != "5114" {
		t.Errorf("external IDs = %v", got.ExternalIDs)
	}
	if len(got.Images) != 1 || got.Images[0].Resolution != "large" {
		t.Errorf("images = %v, want the large picture preferred", got.Images)
	}
	if got.Episodes != 64 || got.MeanScore != 9.1 {
		t.Errorf("episodes/mean = %d/%v", got.Episodes, got.MeanScore)
	}
	if len(got.Traits) == 0 {
		t.Error("genres must derive traits")
	}
	if len(got.Titles.Alternates) != 2 { // ja title + synonym; en duplicates primary
		t.Errorf("alternates = %v", got.Titles.Alternates)
	}
}

func TestMALGetByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := NewMALAdapter(newTestStack(nil), server.URL, "client-id")
	got, err := a.GetByID(context.Background(), "404404")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if got != nil {
		t.Errorf("fragment = %+v, want nil", got)
	}
}

func TestMALSeasonalUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime/season/2026/winter" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(malSeasonalResponse))
	}))
	defer server.Close()

	a := NewMALAdapter(newTestStack(nil), server.URL, "client-id")
	got, err := a.GetSeasonal(context.Background(), 2026, "winter", 2)
	if err != nil {
		t.Fatalf("GetSeasonal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fragments = %d, want the limit of 2", len(got))
	}
	if got[0].Titles.Primary != "First" || got[1].Titles.Primary != "Second" {
		t.Errorf("unexpected ordering: %q, %q", got[0].Titles.Primary, got[1].Titles.Primary)
	}

	if _, err := a.GetSeasonal(context.Background(), 2026, "monsoon", 2); err == nil {
		t.Error("unknown season must be rejected")
	}
}

const anilistPageResponse = `{
	"data": {
		"Page": {
			"media": [
				{
					"id": 5114,
					"idMal": 5114,
					"title": {"romaji": "Hagane no Renkinjutsushi", "english": "Fullmetal Alchemist: Brotherhood"},
					"coverImage": {"extraLarge": "https://cdn.example/xl.png"},
					"description": "Two brothers.",
					"genres": ["Action", "Adventure"],
					"averageScore": 90,
					"popularity": 500000,
					"episodes": 64,
					"studios": {"nodes": [{"name": "Bones"}]},
					"trailer": {"id": "abc123", "site": "youtube", "thumbnail": "https://img.example/t.jpg"}
				}
			]
		}
	}
}`

func TestAniListTrending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(anilistPageResponse))
	}))
	defer server.Close()

	a := NewAniListAdapter(newTestStack(nil), server.URL)
	got, err := a.GetTrending(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fragments = %d", len(got))
	}

	frag := got[0]
	if frag.ExternalIDs[models.ProviderAniList] != "5114" {
		t.Errorf("anilist ID missing: %v", frag.ExternalIDs)
	}
	// The graphql catalog cross-references the title catalog's IDs.
	if frag.ExternalIDs[models.ProviderMAL] != "5114" {
		t.Errorf("mal cross-reference missing: %v", frag.ExternalIDs)
	}
	if frag.MeanScore != 9 {
		t.Errorf("mean = %v, want 0-100 score normalized to 9", frag.MeanScore)
	}
	if frag.Trailer == nil || frag.Trailer.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("trailer = %+v", frag.Trailer)
	}
}

func TestAniListGraphQLErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": null, "errors": [{"message": "Invalid query"}]}`))
	}))
	defer server.Close()

	a := NewAniListAdapter(newTestStack(nil), server.URL)
	_, err := a.GetTrending(context.Background(), 10)
	var gqlErr *transport.GraphQLError
	if !errors.As(err, &gqlErr) {
		t.Fatalf("expected GraphQLError, got %v", err)
	}
}

const tmdbSearchResponse = `{
	"results": [
		{"id": 10, "name": "Popular Western Remake", "original_language": "en", "popularity": 900, "genre_ids": [16]},
		{"id": 11, "name": "Cowboy Bebop", "original_name": "カウボーイビバップ", "original_language": "ja", "popularity": 100, "genre_ids": [16]},
		{"id": 12, "name": "Some Other Anime", "original_language": "ja", "popularity": 500, "genre_ids": [16]}
	]
}`

func TestTMDBSearchTieBreakChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "key123" {
			t.Errorf("api_key = %q", got)
		}
		w.Write([]byte(tmdbSearchResponse))
	}))
	defer server.Close()

	a := NewTMDBAdapter(newTestStack(nil), server.URL, "key123")
	got, err := a.SearchByTitle(context.Background(), "Cowboy Bebop", 3)
	if err != nil {
		t.Fatalf("SearchByTitle: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("results = %d", len(got))
	}

	// Origin locale first; among locale matches the exact title wins over
	// higher popularity; the non-locale result sorts last despite topping
	// the provider's popularity ordering.
	if got[0].Titles.Primary != "Cowboy Bebop" {
		t.Errorf("first = %q, want the exact-title locale match", got[0].Titles.Primary)
	}
	if got[1].Titles.Primary != "Some Other Anime" {
		t.Errorf("second = %q", got[1].Titles.Primary)
	}
	if got[2].Titles.Primary != "Popular Western Remake" {
		t.Errorf("third = %q", got[2].Titles.Primary)
	}
}

func TestTMDBTrendingFiltersNonAnime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"results": [
				{"id": 1, "name": "Live Action Drama", "original_language": "ja", "genre_ids": [18]},
				{"id": 2, "name": "Western Cartoon", "original_language": "en", "genre_ids": [16]},
				{"id": 3, "name": "Actual Anime", "original_language": "ja", "genre_ids": [16, 18]}
			]
		}`))
	}))
	defer server.Close()

	a := NewTMDBAdapter(newTestStack(nil), server.URL, "key123")
	got, err := a.GetTrending(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if len(got) != 1 || got[0].Titles.Primary != "Actual Anime" {
		t.Errorf("trending must keep only animated ja-origin shows, got %+v", got)
	}
}

const youtubeSearchResponse = `{
	"items": [
		{
			"id": {"videoId": "xyz789"},
			"snippet": {
				"title": "Official Trailer",
				"channelTitle": "Aniplex",
				"thumbnails": {"high": {"url": "https://img.example/hq.jpg"}}
			}
		}
	]
}`

func TestYouTubeTrailerSearch(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("q"))
		if got := r.URL.Query().Get("key"); got != "yt-key" {
			t.Errorf("key = %q", got)
		}
		w.Write([]byte(youtubeSearchResponse))
	}))
	defer server.Close()

	a := NewYouTubeAdapter(newTestStack(nil), server.URL, "yt-key")
	got, err := a.GetTrailerCandidates(context.Background(), "Steins;Gate", 3)
	if err != nil {
		t.Fatalf("GetTrailerCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d", len(got))
	}
	if got[0].URL != "https://www.youtube.com/watch?v=xyz789" {
		t.Errorf("url = %q", got[0].URL)
	}
	if gotQuery.Load() != "Steins;Gate official trailer anime" {
		t.Errorf("query = %q, want the anime trailer qualifier appended", gotQuery.Load())
	}
}

func TestQuotaExceededSuspendsProviderOnly(t *testing.T) {
	var videoCalls atomic.Int32
	videoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoCalls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"errors": [{"reason": "quotaExceeded"}]}}`))
	}))
	defer videoServer.Close()

	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(malDetailResponse))
	}))
	defer catalogServer.Close()

	stack := newTestStack(map[models.Provider]ratelimit.Budget{
		models.ProviderYouTube: {Requests: 100, Window: time.Hour, Cooldown: time.Hour},
	})
	yt := NewYouTubeAdapter(stack, videoServer.URL, "yt-key")
	mal := NewMALAdapter(stack, catalogServer.URL, "client-id")

	_, err := yt.GetTrailerCandidates(context.Background(), "Anything", 3)
	var quota *transport.QuotaExceededError
	if !errors.As(err, &quota) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if quota.Cooldown <= 0 {
		t.Error("cooldown must be strictly positive")
	}
	// 403 with a quota reason is not transient: exactly one wire call.
	if calls := videoCalls.Load(); calls != 1 {
		t.Errorf("video calls = %d, want 1", calls)
	}

	// Subsequent video calls are suspended without touching the network.
	_, err = yt.GetTrailerCandidates(context.Background(), "Anything Else", 3)
	if !errors.As(err, &quota) {
		t.Fatalf("expected suspension during cooldown, got %v", err)
	}
	if calls := videoCalls.Load(); calls != 1 {
		t.Errorf("video calls = %d, suspended call must not reach the provider", calls)
	}

	// Other providers keep working.
	frag, err := mal.GetByID(context.Background(), "5114")
	if err != nil || frag == nil {
		t.Fatalf("catalog provider must be unaffected: %v", err)
	}
}

func TestStackCachesSuccessfulResponses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(malDetailResponse))
	}))
	defer server.Close()

	a := NewMALAdapter(newTestStack(nil), server.URL, "client-id")
	for i := 0; i < 3; i++ {
		if _, err := a.GetByID(context.Background(), "5114"); err != nil {
			t.Fatalf("GetByID %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("wire calls = %d, want 1 with cache hits after the first", got)
	}
}

func TestBlankInputsRejectedBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	stack := newTestStack(nil)
	mal := NewMALAdapter(stack, server.URL, "client-id")
	tmdb := NewTMDBAdapter(stack, server.URL, "key")
	yt := NewYouTubeAdapter(stack, server.URL, "key")

	if _, err := mal.SearchByTitle(context.Background(), "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank search: %v, want ErrEmptyQuery", err)
	}
	if _, err := mal.GetByID(context.Background(), ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank ID: %v, want ErrEmptyQuery", err)
	}
	if _, err := tmdb.SearchByTitle(context.Background(), "", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank tv search: %v, want ErrEmptyQuery", err)
	}
	if _, err := yt.GetTrailerCandidates(context.Background(), " ", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank trailer title: %v, want ErrEmptyQuery", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("wire calls = %d, validation must run before the network", got)
	}
}

func TestStackRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(malDetailResponse))
	}))
	defer server.Close()

	a := NewMALAdapter(newTestStack(nil), server.URL, "client-id")
	frag, err := a.GetByID(context.Background(), "5114")
	if err != nil || frag == nil {
		t.Fatalf("expected retried success, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("wire calls = %d, want 2", got)
	}
}
