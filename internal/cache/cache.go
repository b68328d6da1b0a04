// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

/*
cache.go - Response Cache

TTL + LRU cache for provider responses, keyed by the deterministic request
fingerprint. Entries carry the provider they came from so a whole provider
can be purged at once (after an override-table edit, for example). Expired
entries are treated as absent on read and lazily evicted.

Thread Safety: single mutex over the map and the recency list. Entries are
replaced, never mutated, so readers can hold returned values without
copying.
*/

//nolint:staticcheck // File documentation, not package doc
package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/animatch/internal/models"
)

// entry is one cached response with its recency-list links.
type entry struct {
	key       string
	provider  models.Provider
	value     []byte
	expiresAt time.Time

	prev, next *entry
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// ResponseCache stores raw provider response bodies with per-entry TTLs and
// a bounded capacity. Least-recently-used entries are evicted when full.
type ResponseCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int

	// head is most recently used, tail least.
	head, tail *entry

	hits, misses, evictions int64

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewResponseCache creates a cache holding at most capacity entries.
// A non-positive capacity defaults to 4096.
func NewResponseCache(capacity int) *ResponseCache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &ResponseCache{
		entries:  make(map[string]*entry),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached body for key, or (nil, false) when absent or
// expired. A hit refreshes the entry's recency.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(e)
		c.misses++
		return nil, false
	}

	c.moveToFrontLocked(e)
	c.hits++
	return e.value, true
}

// Set stores a response body under key, replacing any existing entry.
// A non-positive ttl stores nothing.
func (c *ResponseCache) Set(key string, provider models.Provider, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}

	e := &entry{
		key:       key,
		provider:  provider,
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	c.entries[key] = e
	c.pushFrontLocked(e)

	for len(c.entries) > c.capacity && c.tail != nil {
		c.removeLocked(c.tail)
		c.evictions++
	}
}

// PurgeProvider drops every entry belonging to one provider and returns the
// number removed.
func (c *ResponseCache) PurgeProvider(provider models.Provider) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for e := c.head; e != nil; {
		next := e.next
		if e.provider == provider {
			c.removeLocked(e)
			removed++
		}
		e = next
	}
	return removed
}

// Purge drops all entries.
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

// Stats returns current counters. Entries counts live (possibly expired but
// not yet evicted) entries.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *ResponseCache) pushFrontLocked(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *ResponseCache) removeLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
	delete(c.entries, e.key)
}

func (c *ResponseCache) moveToFrontLocked(e *entry) {
	if c.head == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
	c.pushFrontLocked(e)
}
