// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Hybrid defines the relative contribution of each strategy in the
	// hybrid blend. Weights are normalized at runtime, so they don't
	// need to sum to 1.0.
	Hybrid HybridWeights `json:"hybrid"`

	// Collaborative contains parameters for user-based filtering.
	Collaborative CollaborativeConfig `json:"collaborative"`

	// ContentBased contains parameters for content-based filtering.
	ContentBased ContentBasedConfig `json:"content_based"`

	// ColdStart contains the interaction thresholds for cold-start routing.
	ColdStart ColdStartConfig `json:"cold_start"`

	// Training contains training schedule parameters.
	Training TrainingConfig `json:"training"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Cache contains response caching parameters.
	Cache CacheConfig `json:"cache"`

	// Seed is the random seed for deterministic behavior.
	// If zero, a fixed default seed is used.
	Seed int64 `json:"seed"`
}

// HybridWeights defines the relative contribution of each strategy in
// the hybrid blend.
type HybridWeights struct {
	// Collaborative is the weight for user-based filtering.
	Collaborative float64 `json:"collaborative"`

	// Content is the weight for content-based filtering.
	Content float64 `json:"content"`

	// Popularity is the weight for popularity ranking.
	Popularity float64 `json:"popularity"`
}

// Normalize returns a copy with weights normalized to sum to 1.0.
func (w HybridWeights) Normalize() HybridWeights {
	sum := w.Collaborative + w.Content + w.Popularity
	if sum == 0 {
		const equalWeight = 1.0 / 3.0
		return HybridWeights{Collaborative: equalWeight, Content: equalWeight, Popularity: equalWeight}
	}
	return HybridWeights{
		Collaborative: w.Collaborative / sum,
		Content:       w.Content / sum,
		Popularity:    w.Popularity / sum,
	}
}

// Override returns a copy with any weight named in params substituted.
// A/B variant experiments deliver per-request weight overrides this way;
// absent keys keep the configured value.
func (w HybridWeights) Override(params map[string]float64) HybridWeights {
	if v, ok := params["collaborative_weight"]; ok {
		w.Collaborative = v
	}
	if v, ok := params["content_weight"]; ok {
		w.Content = v
	}
	if v, ok := params["popularity_weight"]; ok {
		w.Popularity = v
	}
	return w
}

// ToMap returns the weights keyed by algorithm for blending.
func (w HybridWeights) ToMap() map[Algorithm]float64 {
	return map[Algorithm]float64{
		AlgorithmCollaborative: w.Collaborative,
		AlgorithmContentBased:  w.Content,
		AlgorithmPopularity:    w.Popularity,
	}
}

// CollaborativeConfig contains parameters for user-based filtering.
type CollaborativeConfig struct {
	// NumNeighbors is the number of similar users considered.
	// Default: 20.
	NumNeighbors int `json:"num_neighbors"`

	// Shrinkage dampens similarities computed from few shared tracks.
	// Default: 10.
	Shrinkage float64 `json:"shrinkage"`

	// MinSharedTracks is the minimum overlap to compute a similarity.
	// Default: 2.
	MinSharedTracks int `json:"min_shared_tracks"`

	// ItemRatingThreshold is the minimum rating for a track to seed
	// item-based expansion. Default: 0.6.
	ItemRatingThreshold float64 `json:"item_rating_threshold"`
}

// ContentBasedConfig contains parameters for content-based filtering.
type ContentBasedConfig struct {
	// GenreWeight is the blend weight for the genre sub-scorer.
	// Default: 0.40.
	GenreWeight float64 `json:"genre_weight"`

	// ArtistWeight is the blend weight for the artist sub-scorer.
	// Default: 0.35.
	ArtistWeight float64 `json:"artist_weight"`

	// FeatureWeight is the blend weight for the audio-feature sub-scorer.
	// Default: 0.25.
	FeatureWeight float64 `json:"feature_weight"`

	// FeatureFloor drops feature-scored candidates at or below this
	// value. Default: 0.3.
	FeatureFloor float64 `json:"feature_floor"`
}

// ColdStartConfig contains the interaction thresholds for cold-start
// strategy stratification.
type ColdStartConfig struct {
	// NewUserThreshold is the interaction count below which a user is
	// considered new and handled by cold-start strategies. Default: 50.
	NewUserThreshold int `json:"new_user_threshold"`

	// PopularityThreshold routes users below it to pure popularity.
	// Default: 5.
	PopularityThreshold int `json:"popularity_threshold"`

	// ExplorationThreshold routes users below it to genre exploration.
	// Default: 25.
	ExplorationThreshold int `json:"exploration_threshold"`

	// CacheTTL caps the validity of cold-start responses. Shorter than
	// the standard cache TTL; early behavior moves users across strata
	// quickly and stale responses would mask that.
	// Default: 30m.
	CacheTTL time.Duration `json:"-"`
}

// TrainingConfig contains training schedule parameters.
type TrainingConfig struct {
	// Interval is how often scheduled retraining runs.
	// Default: 1h.
	Interval time.Duration `json:"-"`

	// MinBehaviors is the minimum behavior count required to train.
	// Default: 10.
	MinBehaviors int `json:"min_behaviors"`

	// Timeout is the maximum time for a full training run.
	// Default: 5m.
	Timeout time.Duration `json:"-"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the track count returned when a request omits one.
	// Default: 20.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit is the maximum allowed request limit.
	// Default: 100.
	MaxLimit int `json:"max_limit"`

	// StrategyTimeout is the maximum time for a single strategy call.
	// Default: 5s.
	StrategyTimeout time.Duration `json:"-"`
}

// CacheConfig contains response caching parameters.
type CacheConfig struct {
	// Enabled controls whether response caching is active.
	// Default: true.
	Enabled bool `json:"enabled"`

	// TTL is the validity window for standard responses.
	// Default: 1h.
	TTL time.Duration `json:"-"`

	// FallbackTTL is the shorter validity window for fallback responses.
	// Default: 30m.
	FallbackTTL time.Duration `json:"-"`

	// MaxEntries is the maximum number of cached responses.
	// Default: 10000.
	MaxEntries int `json:"max_entries"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		Hybrid: HybridWeights{
			Collaborative: 0.40,
			Content:       0.35,
			Popularity:    0.25,
		},
		Collaborative: CollaborativeConfig{
			NumNeighbors:        20,
			Shrinkage:           10,
			MinSharedTracks:     2,
			ItemRatingThreshold: 0.6,
		},
		ContentBased: ContentBasedConfig{
			GenreWeight:   0.40,
			ArtistWeight:  0.35,
			FeatureWeight: 0.25,
			FeatureFloor:  0.3,
		},
		ColdStart: ColdStartConfig{
			NewUserThreshold:     50,
			PopularityThreshold:  5,
			ExplorationThreshold: 25,
			CacheTTL:             30 * time.Minute,
		},
		Training: TrainingConfig{
			Interval:     time.Hour,
			MinBehaviors: 10,
			Timeout:      5 * time.Minute,
		},
		Limits: LimitsConfig{
			DefaultLimit:    20,
			MaxLimit:        100,
			StrategyTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:     true,
			TTL:         time.Hour,
			FallbackTTL: 30 * time.Minute,
			MaxEntries:  10000,
		},
		Seed: 42, // Default seed for determinism
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Collaborative.NumNeighbors < 1 {
		return fmt.Errorf("collaborative.num_neighbors must be positive, got %d", c.Collaborative.NumNeighbors)
	}
	if c.Collaborative.Shrinkage < 0 {
		return fmt.Errorf("collaborative.shrinkage must be non-negative, got %f", c.Collaborative.Shrinkage)
	}
	if c.Collaborative.ItemRatingThreshold < -1 || c.Collaborative.ItemRatingThreshold > 1 {
		return fmt.Errorf("collaborative.item_rating_threshold must be in [-1, 1], got %f", c.Collaborative.ItemRatingThreshold)
	}

	if c.ContentBased.GenreWeight < 0 || c.ContentBased.ArtistWeight < 0 || c.ContentBased.FeatureWeight < 0 {
		return fmt.Errorf("content_based weights must be non-negative")
	}
	if c.ContentBased.FeatureFloor < 0 || c.ContentBased.FeatureFloor > 1 {
		return fmt.Errorf("content_based.feature_floor must be in [0, 1], got %f", c.ContentBased.FeatureFloor)
	}

	if c.ColdStart.PopularityThreshold > c.ColdStart.ExplorationThreshold {
		return fmt.Errorf("cold_start.popularity_threshold must be <= exploration_threshold, got %d > %d",
			c.ColdStart.PopularityThreshold, c.ColdStart.ExplorationThreshold)
	}
	if c.ColdStart.ExplorationThreshold > c.ColdStart.NewUserThreshold {
		return fmt.Errorf("cold_start.exploration_threshold must be <= new_user_threshold, got %d > %d",
			c.ColdStart.ExplorationThreshold, c.ColdStart.NewUserThreshold)
	}

	if c.Training.Timeout <= 0 {
		return fmt.Errorf("training.timeout must be positive, got %v", c.Training.Timeout)
	}
	if c.Training.MinBehaviors < 0 {
		return fmt.Errorf("training.min_behaviors must be non-negative, got %d", c.Training.MinBehaviors)
	}

	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d",
			c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.StrategyTimeout <= 0 {
		return fmt.Errorf("limits.strategy_timeout must be positive, got %v", c.Limits.StrategyTimeout)
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// Direct field copy - all nested structs contain only value types
	cp := *c
	return &cp
}

// configDurations mirrors the duration fields as strings for JSON.
type configDurations struct {
	ColdStartCacheTTL string `json:"cold_start_cache_ttl"`
	TrainingInterval  string `json:"training_interval"`
	TrainingTimeout   string `json:"training_timeout"`
	StrategyTimeout   string `json:"strategy_timeout"`
	CacheTTL          string `json:"cache_ttl"`
	CacheFallbackTTL  string `json:"cache_fallback_ttl"`
}

// MarshalJSON renders duration fields in their string form.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		Durations configDurations `json:"durations"`
	}{
		Alias: (*Alias)(c),
		Durations: configDurations{
			ColdStartCacheTTL: c.ColdStart.CacheTTL.String(),
			TrainingInterval:  c.Training.Interval.String(),
			TrainingTimeout:   c.Training.Timeout.String(),
			StrategyTimeout:   c.Limits.StrategyTimeout.String(),
			CacheTTL:          c.Cache.TTL.String(),
			CacheFallbackTTL:  c.Cache.FallbackTTL.String(),
		},
	})
}
