// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cadenza-audio/cadenza/internal/logging"
	"github.com/cadenza-audio/cadenza/internal/metrics"
	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Behavior handles POST /api/v1/behavior.
// The event updates the user's profile incrementally, feeds live model
// updates, and folds into the trending rollups.
func (h *Handler) Behavior(w http.ResponseWriter, r *http.Request) {
	var body BehaviorRequest
	if apiErr := decodeJSONBody(w, r, &body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	b := recommend.UserBehavior{
		UserID:         body.UserID,
		TrackID:        body.TrackID,
		Action:         recommend.BehaviorAction(body.Action),
		Timestamp:      time.Now(),
		ListenDuration: body.ListenDuration,
		SessionID:      body.SessionID,
		Device:         body.Device,
	}

	err := h.engine.UpdateBehavior(r.Context(), b)
	metrics.RecordBehaviorEvent(body.Action, err)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Could not record behavior", err)
		return
	}

	if h.trends != nil {
		track, _ := h.catalog.Track(r.Context(), b.TrackID)
		h.trends.Record(b, track)
	}

	respondSuccess(w, r, http.StatusAccepted, map[string]interface{}{
		"recorded": true,
	})
}

// Profile handles GET /api/v1/users/{userID}/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Profile lookup failed", err)
		return
	}
	if profile == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No profile exists for user", nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, profile)
}

// RefreshProfile handles POST /api/v1/users/{userID}/profile/refresh.
// The profile is rebuilt from the full behavior log, discarding
// incremental drift.
func (h *Handler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := h.engine.RefreshProfile(r.Context(), userID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Profile refresh failed", err)
		return
	}
	if profile == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No behavior history for user", nil)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("user_id", sanitizeLogValue(userID)).
		Int("version", profile.Version).
		Msg("Profile rebuilt from behavior log")

	respondSuccess(w, r, http.StatusOK, profile)
}
