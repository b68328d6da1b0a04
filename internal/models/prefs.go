// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package models

// UserPreferenceVector holds a user's psychological preference dimensions.
// Traits are in [1,10]; Confidence is a parallel map in [0,1] describing how
// certain the quiz was about each answer. The scorer treats the whole vector
// as read-only input.
type UserPreferenceVector struct {
	Traits     map[string]float64 `json:"traits"`
	Confidence map[string]float64 `json:"confidence,omitempty"`
}

// ScoredAnime pairs a canonical record with its 0-100 compatibility score
// and the human-readable reasons behind it.
type ScoredAnime struct {
	Anime   CanonicalAnime `json:"anime"`
	Score   int            `json:"score"`
	Reasons []string       `json:"reasons,omitempty"`
}
