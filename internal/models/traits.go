// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package models

import "sort"

// Trait names shared between anime records and user preference vectors.
// Values are always on a 0-10 scale.
const (
	TraitNarrativeComplexity = "narrativeComplexity"
	TraitMoralAmbiguity      = "moralAmbiguity"
	TraitVisualComplexity    = "visualComplexity"
	TraitEmotionalIntensity  = "emotionalIntensity"
	TraitPacing              = "pacing"
)

// TraitNames returns all known trait names in stable order.
func TraitNames() []string {
	return []string{
		TraitNarrativeComplexity,
		TraitMoralAmbiguity,
		TraitVisualComplexity,
		TraitEmotionalIntensity,
		TraitPacing,
	}
}

// genreTraits maps normalized genres to the trait contributions they imply.
// The values are fixed editorial estimates; providers that expose richer
// metadata may overwrite them during reconciliation.
var genreTraits = map[string]map[string]float64{
	"psychological": {TraitNarrativeComplexity: 9, TraitMoralAmbiguity: 8, TraitEmotionalIntensity: 7},
	"mystery":       {TraitNarrativeComplexity: 8, TraitMoralAmbiguity: 6, TraitPacing: 5},
	"thriller":      {TraitNarrativeComplexity: 7, TraitMoralAmbiguity: 7, TraitPacing: 8, TraitEmotionalIntensity: 8},
	"drama":         {TraitEmotionalIntensity: 8, TraitMoralAmbiguity: 5, TraitPacing: 4},
	"sci fi":        {TraitNarrativeComplexity: 7, TraitVisualComplexity: 7},
	"fantasy":       {TraitVisualComplexity: 8, TraitNarrativeComplexity: 6},
	"action":        {TraitPacing: 8, TraitVisualComplexity: 7, TraitEmotionalIntensity: 6},
	"adventure":     {TraitPacing: 6, TraitVisualComplexity: 6},
	"horror":        {TraitEmotionalIntensity: 9, TraitMoralAmbiguity: 6, TraitVisualComplexity: 6},
	"romance":       {TraitEmotionalIntensity: 7, TraitPacing: 3},
	"comedy":        {TraitPacing: 6, TraitEmotionalIntensity: 4, TraitMoralAmbiguity: 2},
	"slice of life": {TraitPacing: 2, TraitEmotionalIntensity: 3, TraitNarrativeComplexity: 2, TraitMoralAmbiguity: 1},
	"supernatural":  {TraitVisualComplexity: 7, TraitNarrativeComplexity: 5},
	"mecha":         {TraitVisualComplexity: 8, TraitPacing: 7},
	"sports":        {TraitPacing: 7, TraitEmotionalIntensity: 6, TraitMoralAmbiguity: 1},
	"music":         {TraitEmotionalIntensity: 5, TraitVisualComplexity: 5},
	"seinen":        {TraitMoralAmbiguity: 7, TraitNarrativeComplexity: 6},
	"animation":     {TraitVisualComplexity: 5},
}

// TraitsFromGenres derives a sparse trait vector from a normalized genre
// list. Each trait is the mean of the contributions of the genres that
// mention it; genres without a table entry contribute nothing. Deterministic
// for any input ordering.
func TraitsFromGenres(genres []string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, g := range genres {
		contrib, ok := genreTraits[NormalizeGenre(g)]
		if !ok {
			continue
		}
		for trait, v := range contrib {
			sums[trait] += v
			counts[trait]++
		}
	}
	if len(sums) == 0 {
		return nil
	}
	traits := make(map[string]float64, len(sums))
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		traits[name] = sums[name] / float64(counts[name])
	}
	return traits
}
