// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Track handles GET /api/v1/tracks/{trackID}.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	track, err := h.catalog.Track(r.Context(), trackID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Catalog lookup failed", err)
		return
	}
	if track == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Track not found", nil)
		return
	}

	features, _ := h.catalog.Features(r.Context(), trackID)
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"track":    track,
		"features": features,
	})
}

// SimilarTracks handles GET /api/v1/tracks/{trackID}/similar.
// Similarity comes from the content analyzer's audio-feature, genre,
// and artist comparison.
func (h *Handler) SimilarTracks(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	req := SimilarTracksRequest{Limit: getIntParam(r, "limit", 20)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	if h.analyzer.TrackFeatures(trackID) == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Track not found", nil)
		return
	}

	similar := h.analyzer.SimilarTracks(trackID, req.Limit)
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"track_id": trackID,
		"similar":  similar,
	})
}

// AnalyzePlaylist handles POST /api/v1/playlists/analyze.
// Reports how coherent a set of tracks is and suggests adjustments.
func (h *Handler) AnalyzePlaylist(w http.ResponseWriter, r *http.Request) {
	var body PlaylistAnalyzeRequest
	if apiErr := decodeJSONBody(w, r, &body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	report := h.analyzer.PlaylistCoherence(body.TrackIDs)
	respondSuccess(w, r, http.StatusOK, report)
}

// Trending handles GET /api/v1/trending.
// Returns tracks ranked by recent play velocity.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	if h.trends == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Trending data not available", nil)
		return
	}

	limit := getIntParam(r, "limit", 20)
	if limit < 1 || limit > 100 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 100", nil)
		return
	}

	tracks, err := h.trends.TrendingTracks(r.Context(), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Trending query failed", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"tracks": tracks,
	})
}
