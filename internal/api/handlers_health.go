// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the payload for the full health endpoint.
type HealthStatus struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	CatalogLoaded bool      `json:"catalog_loaded"`
	ModelVersion  int       `json:"model_version"`
	LastTrainedAt time.Time `json:"last_trained_at"`
	Uptime        float64   `json:"uptime_seconds"`
}

// Version is the service version reported by health endpoints.
// Overridden at build time via -ldflags.
var Version = "dev"

// Health handles GET /api/v1/health.
// Degraded means requests are still served but only through the
// popularity fallback (no catalog or no trained model).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	catalogLoaded := h.catalog != nil && h.catalog.Count() > 0
	engineMetrics := h.engine.Metrics()

	status := "healthy"
	if !catalogLoaded || engineMetrics.ModelVersion == 0 {
		status = "degraded"
	}

	respondSuccess(w, r, http.StatusOK, HealthStatus{
		Status:        status,
		Version:       Version,
		CatalogLoaded: catalogLoaded,
		ModelVersion:  engineMetrics.ModelVersion,
		LastTrainedAt: engineMetrics.LastTrainedAt,
		Uptime:        time.Since(h.startTime).Seconds(),
	})
}

// HealthLive handles GET /api/v1/health/live.
// Kubernetes-style liveness: 200 whenever the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready.
// Ready only once the catalog is loaded; the engine can serve fallback
// recommendations before first training, so a trained model is not
// required.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil || h.catalog.Count() == 0 {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "Catalog not loaded", nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"ready": true,
	})
}
