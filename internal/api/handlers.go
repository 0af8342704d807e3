// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package api

import (
	"time"

	"github.com/cadenza-audio/cadenza/internal/cache"
	"github.com/cadenza-audio/cadenza/internal/catalog"
	"github.com/cadenza-audio/cadenza/internal/config"
	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/abtest"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
	"github.com/cadenza-audio/cadenza/internal/trending"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_recommend.go: Recommendation, home feed, and explanation endpoints
//   - handlers_behavior.go: Behavior recording and profile endpoints
//   - handlers_tracks.go: Track similarity and playlist analysis endpoints
//   - handlers_abtest.go: A/B test management endpoints
//   - handlers_admin.go: Training, status, and config endpoints
//   - handlers_health.go: Health and readiness probes
type Handler struct {
	engine    *recommend.Engine
	abtests   *abtest.Manager
	trends    *trending.Store
	catalog   *catalog.Store
	profiles  recommend.ProfileStore
	analyzer  *analysis.Analyzer
	respCache *cache.Responses
	config    *config.Config
	startTime time.Time
}

// NewHandler creates the API handler with its service dependencies.
// abtests, trends, and respCache may be nil; the endpoints that need
// them respond 503 when they are absent.
func NewHandler(engine *recommend.Engine, abtests *abtest.Manager, trends *trending.Store, cat *catalog.Store, profiles recommend.ProfileStore, analyzer *analysis.Analyzer, respCache *cache.Responses, cfg *config.Config) *Handler {
	return &Handler{
		engine:    engine,
		abtests:   abtests,
		trends:    trends,
		catalog:   cat,
		profiles:  profiles,
		analyzer:  analyzer,
		respCache: respCache,
		config:    cfg,
		startTime: time.Now(),
	}
}
