// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cadenza-audio/cadenza/internal/logging"
	"github.com/cadenza-audio/cadenza/internal/metrics"
	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Recommendations handles POST /api/v1/recommendations.
// The body selects the user, section, and optional overrides; the engine
// resolves the algorithm via A/B assignment when none is given.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var body RecommendationsRequest
	if apiErr := decodeJSONBody(w, r, &body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	req := recommend.Request{
		UserID:          body.UserID,
		Section:         recommend.SectionType(body.Section),
		Limit:           body.Limit,
		ExcludeTrackIDs: body.ExcludeTrackIDs,
		DiversityLevel:  recommend.Level(body.DiversityLevel),
		FreshnessLevel:  recommend.Level(body.FreshnessLevel),
	}
	if body.Algorithm != "" {
		algo, ok := recommend.ParseAlgorithm(body.Algorithm)
		if !ok {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown algorithm: "+body.Algorithm, nil)
			return
		}
		req.Algorithm = algo
	}
	if body.Mood != "" {
		ctx := recommend.ContextFromTime(time.Now())
		ctx.Mood = body.Mood
		req.Context = &ctx
	}

	start := time.Now()
	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Recommendation failed", err)
		return
	}

	metrics.RecordRecommendation(resp.Algorithm, body.Section, time.Since(start))
	if resp.Metadata.ColdStart {
		metrics.RecordColdStart(resp.Metadata.Strategy)
	}
	if assignment := resp.Metadata.ABTestVariant; assignment != "" {
		metrics.RecordABAssignment(body.Section, assignment)
	}

	respondSuccess(w, r, http.StatusOK, resp)
}

// HomeFeed handles GET /api/v1/home-feed/{userID}.
// Sections are composed concurrently; ?refresh=true bypasses cached
// section responses.
func (h *Handler) HomeFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "userID path parameter is required", nil)
		return
	}
	refresh := getBoolParam(r, "refresh", false)

	feed, err := h.engine.HomeFeed(r.Context(), userID, refresh)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Home feed composition failed", err)
		return
	}

	metrics.HomeFeedSections.Observe(float64(len(feed.Sections)))
	respondSuccess(w, r, http.StatusOK, feed)
}

// RefreshFeedSection handles
// POST /api/v1/home-feed/{userID}/sections/{section}/refresh.
// Regenerates one section without rebuilding the whole feed.
func (h *Handler) RefreshFeedSection(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	section := chi.URLParam(r, "section")
	if userID == "" || section == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "userID and section path parameters are required", nil)
		return
	}

	sec, err := h.engine.RefreshSection(r.Context(), userID, recommend.SectionType(section))
	if err != nil {
		if strings.Contains(err.Error(), "unknown feed section") {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Unknown feed section: "+section, nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Section refresh failed", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, sec)
}

// Explain handles GET /api/v1/explain/{trackID}?user_id=...
// Returns the reasons the given track would be recommended to the user.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "user_id query parameter is required", nil)
		return
	}

	reasons, err := h.engine.Explain(r.Context(), trackID, userID)
	if err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Track not found", err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("track_id", sanitizeLogValue(trackID)).
		Str("user_id", sanitizeLogValue(userID)).
		Int("reasons", len(reasons)).
		Msg("Explanation computed")

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"track_id": trackID,
		"user_id":  userID,
		"reasons":  reasons,
	})
}
