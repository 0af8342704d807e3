// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/cadenza-audio/cadenza/internal/logging"
	"github.com/cadenza-audio/cadenza/internal/metrics"
)

// Status handles GET /api/v1/admin/status.
// Reports training state, engine counters, cache statistics, and
// catalog size in one snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"training": h.engine.Status(),
		"engine":   h.engine.Metrics(),
		"uptime":   time.Since(h.startTime).Seconds(),
	}
	if h.respCache != nil {
		stats := h.respCache.Stats()
		data["cache"] = stats
		metrics.ResponseCacheSize.Set(float64(stats.Size))
	}
	if h.catalog != nil {
		data["catalog_tracks"] = h.catalog.Count()
	}

	respondSuccess(w, r, http.StatusOK, data)
}

// Train handles POST /api/v1/admin/train.
// Training is synchronous and serialized; a concurrent request gets 409.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.engine.Train(r.Context())
	metrics.RecordTraining(time.Since(start), h.engine.Metrics().ModelVersion, err)
	if err != nil {
		if strings.Contains(err.Error(), "already in progress") {
			respondError(w, r, http.StatusConflict, ErrCodeConflict, "Training already in progress", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Training failed", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Dur("duration", time.Since(start)).
		Msg("Training triggered via API")

	respondSuccess(w, r, http.StatusOK, h.engine.Status())
}

// EngineConfig handles GET /api/v1/admin/config.
func (h *Handler) EngineConfig(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.engine.Config())
}

// UpdateEngineConfig handles PUT /api/v1/admin/config.
// The body is a full engine configuration; partial updates are not
// supported, so callers should GET, modify, and PUT.
func (h *Handler) UpdateEngineConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()
	if apiErr := decodeJSONBody(w, r, cfg); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	if err := h.engine.UpdateConfig(cfg); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, cfg)
}

// CleanupCache handles POST /api/v1/admin/cache/cleanup.
// Sweeps expired entries out of the response cache.
func (h *Handler) CleanupCache(w http.ResponseWriter, r *http.Request) {
	if h.respCache == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Response cache not enabled", nil)
		return
	}

	removed := h.respCache.CleanupExpired()
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"removed":   removed,
		"remaining": h.respCache.Len(),
	})
}
