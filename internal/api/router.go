// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package api provides the HTTP surface of the recommendation service:
// Chi routing, request validation, and the JSON response envelope.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers to routes with the middleware stack.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router from a handler and middleware set.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to handle OPTIONS preflight.
	r.Use(router.middleware.CORS())

	// Health endpoints get a permissive rate limit so monitoring can
	// poll frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Use(SecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core recommendation surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Post("/recommendations", router.handler.Recommendations)
		r.Get("/home-feed/{userID}", router.handler.HomeFeed)
		r.Post("/home-feed/{userID}/sections/{section}/refresh", router.handler.RefreshFeedSection)
		r.Post("/behavior", router.handler.Behavior)
		r.Get("/explain/{trackID}", router.handler.Explain)
		r.Get("/trending", router.handler.Trending)

		r.Get("/tracks/{trackID}", router.handler.Track)
		r.Get("/tracks/{trackID}/similar", router.handler.SimilarTracks)
		r.Post("/playlists/analyze", router.handler.AnalyzePlaylist)

		r.Get("/users/{userID}/profile", router.handler.Profile)
		r.Post("/users/{userID}/profile/refresh", router.handler.RefreshProfile)

		r.Get("/abtests", router.handler.ListABTests)
		r.Post("/abtests", router.handler.CreateABTest)
		r.Get("/abtests/{name}/metrics", router.handler.ABTestMetrics)
		r.Post("/abtests/{name}/events", router.handler.TrackABEvent)
		r.Post("/abtests/{name}/end", router.handler.EndABTest)
	})

	// Admin endpoints: training and config changes are expensive, so
	// the rate limit is strict.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(router.middleware.RateLimitAdmin())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Get("/status", router.handler.Status)
		r.Post("/train", router.handler.Train)
		r.Get("/config", router.handler.EngineConfig)
		r.Put("/config", router.handler.UpdateEngineConfig)
		r.Post("/cache/cleanup", router.handler.CleanupCache)
	})

	// Prometheus scrape endpoint, outside the JSON envelope.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
