// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/animatch/internal/models"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := NewResponseCache(10)
	c.Set("k1", models.ProviderMAL, []byte("v1"), time.Minute)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != "v1" {
		t.Errorf("value = %q", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := NewResponseCache(10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k1", models.ProviderMAL, []byte("v1"), time.Minute)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k1"); ok {
		t.Error("expired entry must be treated as absent")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("expired entry must be lazily evicted, entries = %d", stats.Entries)
	}
}

func TestZeroTTLStoresNothing(t *testing.T) {
	c := NewResponseCache(10)
	c.Set("k1", models.ProviderMAL, []byte("v1"), 0)
	if _, ok := c.Get("k1"); ok {
		t.Error("zero ttl must not store")
	}
}

func TestReplaceIsAtomic(t *testing.T) {
	c := NewResponseCache(10)
	c.Set("k1", models.ProviderMAL, []byte("old"), time.Minute)
	c.Set("k1", models.ProviderMAL, []byte("new"), time.Minute)

	got, _ := c.Get("k1")
	if string(got) != "new" {
		t.Errorf("value = %q, want new", got)
	}
	if stats := c.Stats(); stats.Entries != 1 {
		t.Errorf("entries = %d, want 1 after replace", stats.Entries)
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewResponseCache(3)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), models.ProviderMAL, []byte("v"), time.Minute)
	}

	// Touch k0 so k1 becomes least recently used.
	c.Get("k0")
	c.Set("k3", models.ProviderMAL, []byte("v"), time.Minute)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted as least recently used")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should survive eviction", key)
		}
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
}

func TestPurgeProvider(t *testing.T) {
	c := NewResponseCache(10)
	c.Set("m1", models.ProviderMAL, []byte("v"), time.Minute)
	c.Set("m2", models.ProviderMAL, []byte("v"), time.Minute)
	c.Set("a1", models.ProviderAniList, []byte("v"), time.Minute)

	if removed := c.PurgeProvider(models.ProviderMAL); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get("m1"); ok {
		t.Error("purged entry must be gone")
	}
	if _, ok := c.Get("a1"); !ok {
		t.Error("other provider's entries must survive the purge")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewResponseCache(100)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, models.ProviderMAL, []byte("v"), time.Minute)
			c.Get(key)
			c.Stats()
		}(i)
	}
	wg.Wait()

	if stats := c.Stats(); stats.Entries != 5 {
		t.Errorf("entries = %d, want 5", stats.Entries)
	}
}
