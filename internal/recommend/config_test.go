// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"math"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultColdStartTTLShorterThanCache(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ColdStart.CacheTTL >= cfg.Cache.TTL {
		t.Errorf("cold-start TTL %v should be shorter than cache TTL %v",
			cfg.ColdStart.CacheTTL, cfg.Cache.TTL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero neighbors", func(c *Config) { c.Collaborative.NumNeighbors = 0 }},
		{"negative shrinkage", func(c *Config) { c.Collaborative.Shrinkage = -1 }},
		{"rating threshold out of range", func(c *Config) { c.Collaborative.ItemRatingThreshold = 1.5 }},
		{"negative content weight", func(c *Config) { c.ContentBased.GenreWeight = -0.1 }},
		{"feature floor out of range", func(c *Config) { c.ContentBased.FeatureFloor = 2 }},
		{"popularity above exploration", func(c *Config) { c.ColdStart.PopularityThreshold = 30 }},
		{"exploration above new user", func(c *Config) { c.ColdStart.ExplorationThreshold = 60 }},
		{"zero training timeout", func(c *Config) { c.Training.Timeout = 0 }},
		{"zero default limit", func(c *Config) { c.Limits.DefaultLimit = 0 }},
		{"max below default limit", func(c *Config) { c.Limits.MaxLimit = 5 }},
		{"zero strategy timeout", func(c *Config) { c.Limits.StrategyTimeout = 0 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestHybridWeightsNormalize(t *testing.T) {
	w := HybridWeights{Collaborative: 2, Content: 1, Popularity: 1}.Normalize()
	sum := w.Collaborative + w.Content + w.Popularity
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("normalized weights sum to %v, want 1.0", sum)
	}
	if math.Abs(w.Collaborative-0.5) > 1e-9 {
		t.Errorf("collaborative = %v, want 0.5", w.Collaborative)
	}
}

func TestHybridWeightsNormalizeZero(t *testing.T) {
	w := HybridWeights{}.Normalize()
	if math.Abs(w.Collaborative-w.Content) > 1e-9 || math.Abs(w.Content-w.Popularity) > 1e-9 {
		t.Errorf("zero weights should normalize to equal shares, got %+v", w)
	}
	sum := w.Collaborative + w.Content + w.Popularity
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("sum = %v, want 1.0", sum)
	}
}

func TestHybridWeightsOverride(t *testing.T) {
	base := HybridWeights{Collaborative: 0.6, Content: 0.25, Popularity: 0.15}

	w := base.Override(map[string]float64{
		"collaborative_weight": 0.5,
		"popularity_weight":    0.2,
	})
	if w.Collaborative != 0.5 {
		t.Errorf("collaborative = %v, want 0.5", w.Collaborative)
	}
	if w.Content != 0.25 {
		t.Errorf("content = %v, want configured 0.25", w.Content)
	}
	if w.Popularity != 0.2 {
		t.Errorf("popularity = %v, want 0.2", w.Popularity)
	}

	if got := base.Override(nil); got != base {
		t.Errorf("nil params changed weights: %+v", got)
	}
}

func TestHybridWeightsToMap(t *testing.T) {
	m := HybridWeights{Collaborative: 0.4, Content: 0.35, Popularity: 0.25}.ToMap()
	if len(m) != 3 {
		t.Fatalf("ToMap() has %d entries, want 3", len(m))
	}
	if m[AlgorithmCollaborative] != 0.4 {
		t.Errorf("collaborative weight = %v, want 0.4", m[AlgorithmCollaborative])
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultConfig()
	cp := cfg.Clone()

	cp.Hybrid.Collaborative = 0.9
	cp.Limits.DefaultLimit = 99

	if cfg.Hybrid.Collaborative == 0.9 {
		t.Error("mutating the clone changed the original hybrid weights")
	}
	if cfg.Limits.DefaultLimit == 99 {
		t.Error("mutating the clone changed the original limits")
	}
}
