// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// HTTP request bodies and query parameters, validated with
// go-playground/validator v10 tags before any engine call.
package api

// RecommendationsRequest is the body for POST /api/v1/recommendations.
type RecommendationsRequest struct {
	UserID          string   `json:"user_id" validate:"required,min=1,max=128"`
	Section         string   `json:"section_type" validate:"omitempty,oneof=made_for_you discover_weekly daily_mix trending_now new_releases popular_now genre_explorer morning_boost evening_chill"`
	Limit           int      `json:"limit" validate:"min=0,max=100"`
	Algorithm       string   `json:"algorithm" validate:"omitempty,oneof=collaborative_filtering content_based hybrid popularity_based time_contextual mood_based"`
	ExcludeTrackIDs []string `json:"exclude_track_ids" validate:"omitempty,max=1000,dive,min=1"`
	DiversityLevel  string   `json:"diversity_level" validate:"omitempty,oneof=low medium high"`
	FreshnessLevel  string   `json:"freshness_level" validate:"omitempty,oneof=low medium high"`
	Mood            string   `json:"mood" validate:"omitempty,max=32"`
}

// BehaviorRequest is the body for POST /api/v1/behavior.
type BehaviorRequest struct {
	UserID         string `json:"user_id" validate:"required,min=1,max=128"`
	TrackID        string `json:"track_id" validate:"required,min=1,max=128"`
	Action         string `json:"action" validate:"required,oneof=play skip like share add_to_playlist"`
	ListenDuration int    `json:"listen_duration" validate:"min=0,max=86400"`
	SessionID      string `json:"session_id" validate:"omitempty,max=128"`
	Device         string `json:"device" validate:"omitempty,max=64"`
}

// SimilarTracksRequest holds the validated query parameters for
// GET /api/v1/tracks/{trackID}/similar.
type SimilarTracksRequest struct {
	Limit int `validate:"min=1,max=100"`
}

// PlaylistAnalyzeRequest is the body for POST /api/v1/playlists/analyze.
type PlaylistAnalyzeRequest struct {
	TrackIDs []string `json:"track_ids" validate:"required,min=1,max=500,dive,min=1"`
}

// ABEventRequest is the body for POST /api/v1/abtests/{name}/events.
type ABEventRequest struct {
	VariantID      string  `json:"variant_id" validate:"required,min=1,max=64"`
	Event          string  `json:"event" validate:"required,oneof=view click play play_through skip like session_end"`
	SessionSeconds float64 `json:"session_seconds" validate:"min=0,max=86400"`
}

// ABVariantRequest describes one variant in a test creation request.
type ABVariantRequest struct {
	ID             string             `json:"id" validate:"required,min=1,max=64"`
	Algorithm      string             `json:"algorithm" validate:"required,oneof=collaborative_filtering content_based hybrid popularity_based time_contextual mood_based"`
	Parameters     map[string]float64 `json:"parameters" validate:"omitempty,max=16"`
	TrafficPercent int                `json:"traffic_percent" validate:"min=1,max=100"`
}

// CreateABTestRequest is the body for POST /api/v1/abtests.
type CreateABTestRequest struct {
	Name        string             `json:"name" validate:"required,min=1,max=64"`
	Description string             `json:"description" validate:"omitempty,max=500"`
	Section     string             `json:"section" validate:"required,oneof=made_for_you discover_weekly daily_mix trending_now new_releases popular_now genre_explorer morning_boost evening_chill"`
	Variants    []ABVariantRequest `json:"variants" validate:"required,min=2,max=10,dive"`
}
