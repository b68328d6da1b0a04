// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package score computes the 0-100 compatibility score between a user's
// preference vector and an anime's trait vector, plus the human-readable
// reasons behind it. Scoring is fully deterministic: identical inputs
// always produce identical scores and reason ordering.
package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/animatch/internal/models"
)

// neutralDistance is the assumed average distance when the anime and the
// preference vector share no traits: an unknown match scores 50.
const neutralDistance = 0.5

// maxReasons caps how many trait matches are rendered as reasons.
const maxReasons = 3

// reasonThreshold keeps weak matches out of the reason list; a trait whose
// squared distance exceeds it says nothing good about the match.
const reasonThreshold = 0.25

// reasonTemplates render one sentence per trait name.
var reasonTemplates = map[string]string{
	models.TraitNarrativeComplexity: "Its layered storytelling matches how much plot complexity you enjoy",
	models.TraitMoralAmbiguity:      "Its morally gray characters fit your taste for ethical nuance",
	models.TraitVisualComplexity:    "Its visual style lines up with the level of detail you prefer",
	models.TraitEmotionalIntensity:  "Its emotional weight matches the intensity you look for",
	models.TraitPacing:              "Its pacing matches the tempo you like",
}

// Config controls scoring.
type Config struct {
	// Weights are fixed per-trait weights. Traits absent from the map get
	// weight 1.
	Weights map[string]float64

	// ConfidenceWeighting multiplies each trait's weight by the user's
	// per-trait confidence when enabled.
	ConfidenceWeighting bool
}

// Scorer scores canonical records against preference vectors.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the compatibility score and its reasons. Only traits
// present in both vectors contribute; with no overlap the score defaults
// to the neutral 50.
func (s *Scorer) Score(anime models.CanonicalAnime, prefs models.UserPreferenceVector) (int, []string) {
	type traitMatch struct {
		name     string
		distance float64
	}

	var (
		weightedSum float64
		totalWeight float64
		matches     []traitMatch
	)

	names := make([]string, 0, len(prefs.Traits))
	for name := range prefs.Traits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		animeVal, ok := anime.Traits[name]
		if !ok {
			continue
		}
		prefVal := prefs.Traits[name]

		delta := math.Abs(prefVal - animeVal)
		distance := (delta * delta) / 100

		weight := s.weightFor(name, prefs)
		if weight <= 0 {
			continue
		}

		weightedSum += distance * weight
		totalWeight += weight
		matches = append(matches, traitMatch{name: name, distance: distance})
	}

	avg := neutralDistance
	if totalWeight > 0 {
		avg = weightedSum / totalWeight
	}

	raw := math.Round(100 - avg*100)
	scoreValue := int(math.Max(0, math.Min(100, raw)))

	// Closest traits first; name breaks ties so ordering never depends on
	// map iteration.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	var reasons []string
	for _, m := range matches {
		if m.distance > reasonThreshold {
			break
		}
		reasons = append(reasons, reasonFor(m.name))
		if len(reasons) == maxReasons {
			break
		}
	}

	return scoreValue, reasons
}

func (s *Scorer) weightFor(name string, prefs models.UserPreferenceVector) float64 {
	weight := 1.0
	if w, ok := s.cfg.Weights[name]; ok {
		weight = w
	}
	if s.cfg.ConfidenceWeighting {
		if c, ok := prefs.Confidence[name]; ok {
			weight *= c
		}
	}
	return weight
}

func reasonFor(name string) string {
	if tmpl, ok := reasonTemplates[name]; ok {
		return tmpl
	}
	return fmt.Sprintf("Its %s closely matches your preference", name)
}
