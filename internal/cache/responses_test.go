// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func resp(algo string) *recommend.Response {
	return &recommend.Response{Algorithm: algo}
}

func TestGetSet(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("empty cache should miss")
	}

	c.Set(ctx, "k1", resp("hybrid"), time.Minute)
	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Algorithm != "hybrid" {
		t.Errorf("Algorithm = %q, want hybrid", got.Algorithm)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, size 1", stats)
	}
}

func TestExpiry(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set(ctx, "k1", resp("hybrid"), time.Minute)

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Error("entry should be valid at half TTL")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("entry should expire after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, len = %d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewResponses(3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), resp("hybrid"), time.Minute)
	}

	// Touch k1 so k2 becomes the eviction candidate.
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Fatal("k1 should be present")
	}

	c.Set(ctx, "k4", resp("hybrid"), time.Minute)

	if _, ok := c.Get(ctx, "k2"); ok {
		t.Error("k2 should have been evicted")
	}
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Error("recently used k1 should survive")
	}
	if _, ok := c.Get(ctx, "k4"); !ok {
		t.Error("new entry k4 should be present")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestZeroTTLIgnored(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	c.Set(ctx, "k1", resp("hybrid"), 0)
	if c.Len() != 0 {
		t.Error("zero TTL should not store anything")
	}
}

func TestOverwrite(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	c.Set(ctx, "k1", resp("hybrid"), time.Minute)
	c.Set(ctx, "k1", resp("popularity_based"), time.Minute)

	got, ok := c.Get(ctx, "k1")
	if !ok || got.Algorithm != "popularity_based" {
		t.Errorf("overwrite failed, got %+v", got)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	c.Set(ctx, "k1", resp("hybrid"), time.Minute)
	c.Set(ctx, "k2", resp("hybrid"), time.Minute)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("cleared entry still readable")
	}
}

func TestDelete(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	c.Set(ctx, "k1", resp("hybrid"), time.Minute)
	c.Delete("k1")
	c.Delete("never-existed")

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("deleted entry still readable")
	}
}

func TestCleanupExpired(t *testing.T) {
	c := NewResponses(10)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set(ctx, "short", resp("hybrid"), time.Second)
	c.Set(ctx, "long", resp("hybrid"), time.Hour)

	c.now = func() time.Time { return base.Add(time.Minute) }
	removed := c.CleanupExpired()

	if removed != 1 {
		t.Errorf("removed %d entries, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("unexpired entry was cleaned up")
	}
}
