// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package config loads service configuration with a clear precedence:
// environment variables override the optional YAML config file, which
// overrides built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// APIConfig holds API surface settings.
type APIConfig struct {
	// RateLimitReqs is the per-client request budget per window.
	// Zero disables rate limiting.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line in logs.
	Caller bool `koanf:"caller"`
}

// CatalogConfig controls the synthetic catalog bootstrap.
type CatalogConfig struct {
	// SeedTracks is the number of synthetic tracks to seed when the
	// catalog starts empty. Zero disables seeding.
	SeedTracks int `koanf:"seed_tracks"`

	// Seed is the deterministic seed for catalog and rollup data.
	Seed int64 `koanf:"seed"`
}

// RecommendConfig exposes the engine knobs that operators tune. The
// remaining engine defaults live in the recommend package.
type RecommendConfig struct {
	// TrainInterval is the background retraining cadence.
	TrainInterval time.Duration `koanf:"train_interval"`

	// TrainOnStartup runs a training pass before serving.
	TrainOnStartup bool `koanf:"train_on_startup"`

	// CollaborativeWeight, ContentWeight and PopularityWeight are the
	// hybrid blend weights.
	CollaborativeWeight float64 `koanf:"collaborative_weight"`
	ContentWeight       float64 `koanf:"content_weight"`
	PopularityWeight    float64 `koanf:"popularity_weight"`

	// NewUserThreshold is the interaction count below which users are
	// served by cold start.
	NewUserThreshold int `koanf:"new_user_threshold"`

	// CacheTTL is the response cache validity window.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheMaxEntries bounds the response cache.
	CacheMaxEntries int `koanf:"cache_max_entries"`

	// DefaultLimit and MaxLimit bound per-request track counts.
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	// ModelDir is the directory for trained model snapshots. Empty
	// disables persistence; models are rebuilt on startup training.
	ModelDir string `koanf:"model_dir"`

	// ModelKeepVersions is how many snapshot versions to retain.
	ModelKeepVersions int `koanf:"model_keep_versions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := recommend.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			SeedTracks: 2000,
			Seed:       base.Seed,
		},
		Recommend: RecommendConfig{
			TrainInterval:       base.Training.Interval,
			TrainOnStartup:      true,
			CollaborativeWeight: base.Hybrid.Collaborative,
			ContentWeight:       base.Hybrid.Content,
			PopularityWeight:    base.Hybrid.Popularity,
			NewUserThreshold:    base.ColdStart.NewUserThreshold,
			CacheTTL:            base.Cache.TTL,
			CacheMaxEntries:     base.Cache.MaxEntries,
			DefaultLimit:        base.Limits.DefaultLimit,
			MaxLimit:            base.Limits.MaxLimit,
			ModelKeepVersions:   3,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.API.RateLimitReqs < 0 {
		return fmt.Errorf("api.rate_limit_reqs must not be negative")
	}
	if c.Catalog.SeedTracks < 0 {
		return fmt.Errorf("catalog.seed_tracks must not be negative")
	}
	return c.EngineConfig().Validate()
}

// EngineConfig materializes the recommendation engine configuration by
// applying the tuned knobs onto the engine defaults.
func (c *Config) EngineConfig() *recommend.Config {
	ec := recommend.DefaultConfig()
	ec.Hybrid.Collaborative = c.Recommend.CollaborativeWeight
	ec.Hybrid.Content = c.Recommend.ContentWeight
	ec.Hybrid.Popularity = c.Recommend.PopularityWeight
	ec.ColdStart.NewUserThreshold = c.Recommend.NewUserThreshold
	ec.Training.Interval = c.Recommend.TrainInterval
	ec.Cache.TTL = c.Recommend.CacheTTL
	ec.Cache.MaxEntries = c.Recommend.CacheMaxEntries
	ec.Limits.DefaultLimit = c.Recommend.DefaultLimit
	ec.Limits.MaxLimit = c.Recommend.MaxLimit
	ec.Seed = c.Catalog.Seed
	return ec
}
