// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cadenza-audio/cadenza/internal/metrics"
	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/abtest"
)

// ListABTests handles GET /api/v1/abtests.
func (h *Handler) ListABTests(w http.ResponseWriter, r *http.Request) {
	if h.abtests == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "A/B testing not enabled", nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"tests": h.abtests.Tests(),
	})
}

// CreateABTest handles POST /api/v1/abtests.
// Variant traffic percentages must sum to 100 and only one active test
// is allowed per section.
func (h *Handler) CreateABTest(w http.ResponseWriter, r *http.Request) {
	if h.abtests == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "A/B testing not enabled", nil)
		return
	}

	var body CreateABTestRequest
	if apiErr := decodeJSONBody(w, r, &body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	test := abtest.Test{
		Name:        body.Name,
		Description: body.Description,
		Section:     recommend.SectionType(body.Section),
	}
	for _, v := range body.Variants {
		algo, ok := recommend.ParseAlgorithm(v.Algorithm)
		if !ok || algo == recommend.AlgorithmUnspecified {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown variant algorithm: "+v.Algorithm, nil)
			return
		}
		test.Variants = append(test.Variants, abtest.Variant{
			ID:             v.ID,
			Algorithm:      algo,
			Parameters:     v.Parameters,
			TrafficPercent: v.TrafficPercent,
		})
	}

	if err := h.abtests.CreateTest(test); err != nil {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
		return
	}

	respondSuccess(w, r, http.StatusCreated, map[string]interface{}{
		"name": body.Name,
	})
}

// ABTestMetrics handles GET /api/v1/abtests/{name}/metrics.
func (h *Handler) ABTestMetrics(w http.ResponseWriter, r *http.Request) {
	if h.abtests == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "A/B testing not enabled", nil)
		return
	}

	name := chi.URLParam(r, "name")
	testMetrics, err := h.abtests.TestMetrics(name)
	if err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"test":    name,
		"metrics": testMetrics,
	})
}

// TrackABEvent handles POST /api/v1/abtests/{name}/events.
// Events accumulate into variant metrics used for winner selection.
func (h *Handler) TrackABEvent(w http.ResponseWriter, r *http.Request) {
	if h.abtests == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "A/B testing not enabled", nil)
		return
	}

	name := chi.URLParam(r, "name")

	var body ABEventRequest
	if apiErr := decodeJSONBody(w, r, &body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	h.abtests.TrackEvent(name, body.VariantID, body.Event, body.SessionSeconds)
	metrics.RecordABEvent(name, body.Event)

	respondSuccess(w, r, http.StatusAccepted, map[string]interface{}{
		"recorded": true,
	})
}

// EndABTest handles POST /api/v1/abtests/{name}/end.
// Concludes the test and returns the winning variant by engagement
// score.
func (h *Handler) EndABTest(w http.ResponseWriter, r *http.Request) {
	if h.abtests == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "A/B testing not enabled", nil)
		return
	}

	name := chi.URLParam(r, "name")
	result, err := h.abtests.EndTest(name)
	if err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
		return
	}

	respondSuccess(w, r, http.StatusOK, result)
}
