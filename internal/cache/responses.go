// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package cache provides the in-memory response cache for
// recommendation results. Entries carry their own TTL and the cache
// evicts least-recently-used entries when capacity is reached, so a
// burst of unique request fingerprints cannot grow memory unbounded.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// entry is a node in the LRU list. head.next is the most recently
// used, tail.prev the least.
type entry struct {
	key       string
	resp      *recommend.Response
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// Responses is a thread-safe LRU response cache with per-entry TTL.
// Lookups, inserts and eviction are O(1).
type Responses struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry
	head     *entry
	tail     *entry

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// NewResponses creates a response cache holding at most capacity
// entries. A non-positive capacity falls back to 10000.
func NewResponses(capacity int) *Responses {
	if capacity <= 0 {
		capacity = 10000
	}
	c := &Responses{
		capacity: capacity,
		items:    make(map[string]*entry, capacity),
		head:     &entry{},
		tail:     &entry{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached response for a fingerprint if present and not
// expired. Expired entries are removed lazily. Found entries move to
// the front of the LRU order.
func (c *Responses) Get(_ context.Context, key string) (*recommend.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		c.evictions++
		return nil, false
	}

	c.moveToFront(e)
	c.hits++
	return e.resp, true
}

// Set stores a response under a fingerprint with the given validity
// window. Capacity overflow evicts the least recently used entry.
func (c *Responses) Set(_ context.Context, key string, resp *recommend.Response, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if e, ok := c.items[key]; ok {
		e.resp = resp
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, resp: resp, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Delete removes a single entry. Safe to call for absent keys.
func (c *Responses) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
		c.evictions++
	}
}

// Clear removes all entries. Called after model retraining so stale
// rankings do not outlive the model that produced them.
func (c *Responses) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictions += int64(len(c.items))
	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes all expired entries, walking from the LRU
// tail. Returns the number removed.
func (c *Responses) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}
	c.evictions += int64(removed)
	return removed
}

// Len returns the current number of entries.
func (c *Responses) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a counter snapshot.
func (c *Responses) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
	}
}

// List maintenance. Callers hold c.mu.

func (c *Responses) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Responses) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *Responses) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *Responses) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
}

var _ recommend.ResponseCache = (*Responses)(nil)
