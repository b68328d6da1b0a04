// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package score

import (
	"reflect"
	"testing"

	"github.com/tomtom215/animatch/internal/models"
)

func anime(traits map[string]float64) models.CanonicalAnime {
	return models.CanonicalAnime{
		Titles:      models.Titles{Primary: "Test"},
		ExternalIDs: map[models.Provider]string{models.ProviderMAL: "1"},
		Traits:      traits,
	}
}

func prefs(traits map[string]float64) models.UserPreferenceVector {
	return models.UserPreferenceVector{Traits: traits}
}

func TestExactMatchScoresHundred(t *testing.T) {
	s := NewScorer(Config{})
	vec := map[string]float64{
		models.TraitNarrativeComplexity: 9,
		models.TraitMoralAmbiguity:      8,
		models.TraitVisualComplexity:    8,
	}

	got, reasons := s.Score(anime(vec), prefs(vec))
	if got != 100 {
		t.Errorf("score = %d, want 100 for exact match", got)
	}
	if len(reasons) == 0 {
		t.Error("exact match must produce reasons")
	}
}

func TestNoOverlapScoresNeutral(t *testing.T) {
	s := NewScorer(Config{})
	a := anime(map[string]float64{models.TraitPacing: 5})
	p := prefs(map[string]float64{models.TraitMoralAmbiguity: 9})

	got, reasons := s.Score(a, p)
	if got != 50 {
		t.Errorf("score = %d, want neutral 50 with no trait overlap", got)
	}
	if len(reasons) != 0 {
		t.Errorf("no overlap must produce no reasons, got %v", reasons)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	s := NewScorer(Config{})
	// Same absolute delta in opposite directions must score identically.
	above, _ := s.Score(
		anime(map[string]float64{models.TraitPacing: 8}),
		prefs(map[string]float64{models.TraitPacing: 5}),
	)
	below, _ := s.Score(
		anime(map[string]float64{models.TraitPacing: 2}),
		prefs(map[string]float64{models.TraitPacing: 5}),
	)
	if above != below {
		t.Errorf("symmetric deltas scored %d vs %d", above, below)
	}
}

func TestDistantVectorScoresLow(t *testing.T) {
	s := NewScorer(Config{})
	p := prefs(map[string]float64{
		models.TraitNarrativeComplexity: 9,
		models.TraitMoralAmbiguity:      8,
		models.TraitVisualComplexity:    8,
	})
	far := anime(map[string]float64{
		models.TraitNarrativeComplexity: 0,
		models.TraitMoralAmbiguity:      0,
		models.TraitVisualComplexity:    0,
	})

	got, _ := s.Score(far, p)
	if got >= 40 {
		t.Errorf("score = %d, want below 40 for a maximally distant vector", got)
	}
}

func TestScoreDeterministicWithReasonOrdering(t *testing.T) {
	s := NewScorer(Config{})
	a := anime(map[string]float64{
		models.TraitNarrativeComplexity: 9,
		models.TraitMoralAmbiguity:      7,
		models.TraitPacing:              6,
		models.TraitEmotionalIntensity:  8,
	})
	p := prefs(map[string]float64{
		models.TraitNarrativeComplexity: 9, // distance 0
		models.TraitMoralAmbiguity:      8, // distance 0.01
		models.TraitPacing:              8, // distance 0.04
		models.TraitEmotionalIntensity:  4, // distance 0.16
	})

	score1, reasons1 := s.Score(a, p)
	for i := 0; i < 10; i++ {
		score2, reasons2 := s.Score(a, p)
		if score1 != score2 || !reflect.DeepEqual(reasons1, reasons2) {
			t.Fatal("identical inputs must produce identical score and reason ordering")
		}
	}

	if len(reasons1) != 3 {
		t.Fatalf("reasons = %v, want the 3 closest traits", reasons1)
	}
	// Closest first: narrativeComplexity, then moralAmbiguity, then pacing.
	if reasons1[0] != reasonTemplates[models.TraitNarrativeComplexity] {
		t.Errorf("first reason = %q", reasons1[0])
	}
	if reasons1[1] != reasonTemplates[models.TraitMoralAmbiguity] {
		t.Errorf("second reason = %q", reasons1[1])
	}
	if reasons1[2] != reasonTemplates[models.TraitPacing] {
		t.Errorf("third reason = %q", reasons1[2])
	}
}

func TestWeightsBiasScore(t *testing.T) {
	weighted := NewScorer(Config{Weights: map[string]float64{
		models.TraitPacing:         10,
		models.TraitMoralAmbiguity: 0.1,
	}})
	unweighted := NewScorer(Config{})

	a := anime(map[string]float64{
		models.TraitPacing:         1, // far from pref
		models.TraitMoralAmbiguity: 9, // exact match
	})
	p := prefs(map[string]float64{
		models.TraitPacing:         9,
		models.TraitMoralAmbiguity: 9,
	})

	ws, _ := weighted.Score(a, p)
	us, _ := unweighted.Score(a, p)
	if ws >= us {
		t.Errorf("upweighting the mismatched trait must lower the score: weighted %d, unweighted %d", ws, us)
	}
}

func TestConfidenceWeighting(t *testing.T) {
	s := NewScorer(Config{ConfidenceWeighting: true})

	a := anime(map[string]float64{
		models.TraitPacing:         1,
		models.TraitMoralAmbiguity: 9,
	})
	p := models.UserPreferenceVector{
		Traits: map[string]float64{
			models.TraitPacing:         9,
			models.TraitMoralAmbiguity: 9,
		},
		// Low confidence on the mismatched trait should soften its impact.
		Confidence: map[string]float64{
			models.TraitPacing:         0.1,
			models.TraitMoralAmbiguity: 1.0,
		},
	}

	confident, _ := s.Score(a, p)
	flat, _ := NewScorer(Config{}).Score(a, p)
	if confident <= flat {
		t.Errorf("downweighting the mismatch must raise the score: confidence %d, flat %d", confident, flat)
	}
}
