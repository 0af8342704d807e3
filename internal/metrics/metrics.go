// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package metrics provides Prometheus instrumentation for:
//   - API endpoint latency and throughput
//   - Recommendation generation by algorithm and section
//   - Response cache efficiency
//   - Cold-start routing by stratum
//   - Model training runs
//   - Behavior event ingestion
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Recommendation Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation responses served",
		},
		[]string{"algorithm", "section"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Recommendation generation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"algorithm"},
	)

	RecommendationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Total number of popularity fallback responses",
		},
	)

	ColdStartRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldstart_requests_total",
			Help: "Total number of requests routed through cold start",
		},
		[]string{"stratum"},
	)

	HomeFeedSections = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "home_feed_sections",
			Help:    "Number of sections in generated home feeds",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		},
	)

	// Response Cache Metrics
	ResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	ResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	ResponseCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_entries",
			Help: "Current number of cached responses",
		},
	)

	// Training Metrics
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of model training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	TrainingLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_last_success_timestamp",
			Help: "Unix timestamp of last successful training run",
		},
	)

	TrainingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_errors_total",
			Help: "Total number of failed training runs",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_version",
			Help: "Current recommendation model version",
		},
	)

	// Behavior Ingestion Metrics
	BehaviorEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "behavior_events_total",
			Help: "Total number of behavior events ingested",
		},
		[]string{"action"},
	)

	BehaviorEventErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "behavior_event_errors_total",
			Help: "Total number of rejected behavior events",
		},
	)

	// A/B Testing Metrics
	ABAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_assignments_total",
			Help: "Total number of A/B variant assignments",
		},
		[]string{"test", "variant"},
	)

	ABEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_events_total",
			Help: "Total number of A/B engagement events",
		},
		[]string{"test", "event"},
	)
)

// RecordAPIRequest records an API request with its status and duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRecommendation records a served recommendation response.
func RecordRecommendation(algorithm, section string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(algorithm, section).Inc()
	RecommendationDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordColdStart records a cold-start routed request.
func RecordColdStart(stratum string) {
	ColdStartRequests.WithLabelValues(stratum).Inc()
}

// RecordTraining records a training run outcome.
func RecordTraining(duration time.Duration, version int, err error) {
	TrainingDuration.Observe(duration.Seconds())
	if err != nil {
		TrainingErrors.Inc()
		return
	}
	TrainingLastSuccess.SetToCurrentTime()
	ModelVersion.Set(float64(version))
}

// RecordBehaviorEvent records an ingested behavior event.
func RecordBehaviorEvent(action string, err error) {
	if err != nil {
		BehaviorEventErrors.Inc()
		return
	}
	BehaviorEventsTotal.WithLabelValues(action).Inc()
}

// RecordABAssignment records an A/B variant assignment.
func RecordABAssignment(test, variant string) {
	ABAssignmentsTotal.WithLabelValues(test, variant).Inc()
}

// RecordABEvent records an A/B engagement event.
func RecordABEvent(test, event string) {
	ABEventsTotal.WithLabelValues(test, event).Inc()
}
