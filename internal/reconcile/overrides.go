// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package reconcile

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/animatch/internal/models"
)

// OverrideLink is one curated cross-provider identity: the same logical
// title under each provider's native ID.
type OverrideLink struct {
	Title string            `koanf:"title" json:"title"`
	IDs   map[string]string `koanf:"ids" json:"ids"`
}

// overrideFile is the on-disk document shape.
type overrideFile struct {
	Links []OverrideLink `koanf:"links"`
}

// OverrideTable answers "which curated identity does this provider ID
// belong to". It is loaded once at startup from a version-controlled YAML
// asset and never mutated afterward, so lookups need no locking.
type OverrideTable struct {
	links []OverrideLink

	// index maps provider|id to the link's position in links.
	index map[string]int
}

// NewOverrideTable builds an empty table.
func NewOverrideTable() *OverrideTable {
	return &OverrideTable{index: make(map[string]int)}
}

// LoadOverrideTable reads the curated link table from a YAML file.
func LoadOverrideTable(path string) (*OverrideTable, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load override table %s: %w", path, err)
	}

	var doc overrideFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("parse override table %s: %w", path, err)
	}

	t := NewOverrideTable()
	for _, link := range doc.Links {
		if err := t.add(link); err != nil {
			return nil, fmt.Errorf("override table %s: %w", path, err)
		}
	}
	return t, nil
}

func (t *OverrideTable) add(link OverrideLink) error {
	if len(link.IDs) < 2 {
		return fmt.Errorf("link %q needs at least two provider IDs", link.Title)
	}
	pos := len(t.links)
	for providerName, id := range link.IDs {
		p := models.Provider(providerName)
		if !p.Known() {
			return fmt.Errorf("link %q references unknown provider %q", link.Title, providerName)
		}
		key := overrideKey(p, id)
		if prev, dup := t.index[key]; dup && prev != pos {
			return fmt.Errorf("link %q: %s/%s already linked by %q", link.Title, p, id, t.links[prev].Title)
		}
		t.index[key] = pos
	}
	t.links = append(t.links, link)
	return nil
}

// GroupFor returns the curated identity index for a provider ID.
func (t *OverrideTable) GroupFor(p models.Provider, id string) (int, bool) {
	g, ok := t.index[overrideKey(p, id)]
	return g, ok
}

// IDs returns the full cross-provider ID set of one curated identity.
func (t *OverrideTable) IDs(group int) map[models.Provider]string {
	if group < 0 || group >= len(t.links) {
		return nil
	}
	out := make(map[models.Provider]string, len(t.links[group].IDs))
	for providerName, id := range t.links[group].IDs {
		out[models.Provider(providerName)] = id
	}
	return out
}

// Len returns the number of curated identities.
func (t *OverrideTable) Len() int { return len(t.links) }

func overrideKey(p models.Provider, id string) string {
	return string(p) + "|" + id
}
