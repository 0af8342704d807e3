// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"context"
	"time"
)

// CatalogProvider supplies track metadata and audio features.
// Implemented by the catalog store; the engine and strategies depend
// only on this interface.
type CatalogProvider interface {
	// AllTracks returns the full catalog.
	AllTracks(ctx context.Context) ([]Track, error)

	// TracksByGenres returns tracks tagged with any of the genres.
	TracksByGenres(ctx context.Context, genres []string) ([]Track, error)

	// Track returns a single track, or nil if unknown.
	Track(ctx context.Context, id string) (*Track, error)

	// Features returns the audio feature vector for a track, or nil
	// if the track has not been analyzed.
	Features(ctx context.Context, id string) (*TrackFeatures, error)

	// AllFeatures returns every known feature vector.
	AllFeatures(ctx context.Context) ([]TrackFeatures, error)
}

// ProfileStore manages user profiles and the behavior log.
type ProfileStore interface {
	// Profile returns the user's profile, or nil if the user has no
	// recorded history. A nil profile is not an error.
	Profile(ctx context.Context, userID string) (*UserProfile, error)

	// RecordBehavior appends a behavior event and folds it into the
	// user's profile aggregates.
	RecordBehavior(ctx context.Context, b UserBehavior) error

	// RefreshProfile rebuilds the profile from the behavior log.
	RefreshProfile(ctx context.Context, userID string) (*UserProfile, error)

	// Behaviors returns behavior events recorded at or after since,
	// oldest first. A zero since returns the full log.
	Behaviors(ctx context.Context, since time.Time) ([]UserBehavior, error)
}

// PopularTrack is a popularity rollup for a single track.
type PopularTrack struct {
	// TrackID is the track being described.
	TrackID string `json:"track_id"`

	// PlayCount is the total play count in the rollup window.
	PlayCount int64 `json:"play_count"`

	// SkipRate is the fraction of plays skipped (0-1).
	SkipRate float64 `json:"skip_rate"`

	// CompletionRate is the fraction of plays completed (0-1).
	CompletionRate float64 `json:"completion_rate"`

	// UpdatedAt is when the rollup was last recomputed.
	UpdatedAt time.Time `json:"updated_at"`
}

// TrendingTrack is a velocity rollup for a single track.
type TrendingTrack struct {
	// TrackID is the track being described.
	TrackID string `json:"track_id"`

	// Velocity is the normalized play growth rate (0-1).
	Velocity float64 `json:"velocity"`

	// WindowHours is the measurement window.
	WindowHours int `json:"window_hours"`
}

// TrendingProvider supplies popularity and trending rollups.
type TrendingProvider interface {
	// PopularTracks returns the top n tracks by play count.
	PopularTracks(ctx context.Context, n int) ([]PopularTrack, error)

	// TrendingTracks returns the top n tracks by velocity.
	TrendingTracks(ctx context.Context, n int) ([]TrendingTrack, error)

	// GenrePopularity returns the relative popularity of a genre (0-1).
	GenrePopularity(ctx context.Context, genre string) (float64, error)
}

// Reranker post-processes a scored list, typically trading a little
// relevance for diversity. Implementations must not mutate the input.
type Reranker interface {
	// Rerank returns at most k items selected from scores.
	Rerank(ctx context.Context, scores []Score, k int) []Score
}

// ResponseCache is the request-fingerprint-keyed response cache.
// Implementations are best-effort; the engine treats misses and
// failures identically and recomputes.
type ResponseCache interface {
	// Get returns the cached response for a fingerprint, if present
	// and still valid.
	Get(ctx context.Context, key string) (*Response, bool)

	// Set stores a response under a fingerprint with a validity window.
	Set(ctx context.Context, key string, resp *Response, ttl time.Duration)
}
