// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package main is the entry point for the Cadenza recommendation server.
//
// Cadenza serves personalized track recommendations for a music
// streaming product: per-user home feeds, section recommendations,
// similar-track lookups, and recommendation explanations, backed by
// collaborative filtering, content-based scoring, and popularity
// rollups.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml, and
//     CADENZA_* environment variables (Koanf v2)
//  2. Catalog: track metadata and audio features, seeded
//     deterministically when no external catalog is attached
//  3. Stores: user profiles, trending rollups, response cache
//  4. Analyzer and strategies: content analysis plus the five
//     recommendation strategies registered with the engine
//  5. Engine: orchestration, cold-start handling, A/B assignment
//  6. HTTP server: Chi-routed REST API with Prometheus metrics
//
// # Configuration
//
// Environment variables use the CADENZA_ prefix with section and field
// separated by the first underscore, e.g.:
//
//	export CADENZA_SERVER_PORT=8080
//	export CADENZA_LOGGING_LEVEL=debug
//	export CADENZA_RECOMMEND_TRAIN_INTERVAL=30m
//	./cadenza
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests up to the
// configured shutdown timeout, and stops the training loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cadenza-audio/cadenza/internal/api"
	"github.com/cadenza-audio/cadenza/internal/cache"
	"github.com/cadenza-audio/cadenza/internal/catalog"
	"github.com/cadenza-audio/cadenza/internal/config"
	"github.com/cadenza-audio/cadenza/internal/logging"
	"github.com/cadenza-audio/cadenza/internal/metrics"
	"github.com/cadenza-audio/cadenza/internal/profile"
	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/abtest"
	"github.com/cadenza-audio/cadenza/internal/recommend/algorithms"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
	"github.com/cadenza-audio/cadenza/internal/recommend/coldstart"
	"github.com/cadenza-audio/cadenza/internal/recommend/reranking"
	"github.com/cadenza-audio/cadenza/internal/recommend/storage"
	"github.com/cadenza-audio/cadenza/internal/trending"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Int("seed_tracks", cfg.Catalog.SeedTracks).
		Msg("Starting Cadenza")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog with deterministic synthetic data. A production deploy
	// replaces the seed with a catalog ingest.
	catalogStore := catalog.NewStore(logging.Logger())
	catalog.Seed(catalogStore, cfg.Catalog.SeedTracks, cfg.Catalog.Seed)
	logging.Info().Int("tracks", catalogStore.Count()).Msg("Catalog seeded")

	profileStore := profile.NewStore(catalogStore, logging.Logger())

	trendingStore := trending.NewStore(logging.Logger())
	if err := trending.Seed(ctx, trendingStore, catalogStore, cfg.Catalog.Seed); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed trending rollups")
	}

	responseCache := cache.NewResponses(cfg.Recommend.CacheMaxEntries)

	// Content analyzer feeds both the content strategy and the
	// similar-tracks endpoint.
	analyzer := analysis.NewAnalyzer(logging.Logger())
	features, err := catalogStore.AllFeatures(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load catalog features")
	}
	if err := analyzer.Train(ctx, features); err != nil {
		logging.Fatal().Err(err).Msg("Failed to train content analyzer")
	}

	engineCfg := cfg.EngineConfig()
	engine, err := recommend.NewEngine(engineCfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	engine.SetProviders(recommend.Providers{
		Catalog:  catalogStore,
		Profiles: profileStore,
		Trending: trendingStore,
		Cache:    responseCache,
	})

	collab := algorithms.NewCollaborativeStrategy(engineCfg.Collaborative, analyzer, logging.Logger())
	engine.RegisterStrategy(collab)
	engine.RegisterStrategy(algorithms.NewContentStrategy(engineCfg.ContentBased, analyzer, logging.Logger()))
	engine.RegisterStrategy(algorithms.NewPopularityStrategy(trendingStore, catalogStore, logging.Logger()))
	engine.RegisterStrategy(algorithms.NewTimeContextualStrategy(logging.Logger()))
	engine.RegisterStrategy(algorithms.NewMoodStrategy(logging.Logger()))

	engine.SetColdStartHandler(coldstart.NewHandler(engineCfg.ColdStart, catalogStore, trendingStore, analyzer, cfg.Catalog.Seed, logging.Logger()))

	abtests := abtest.NewManagerWithDefaults(logging.Logger())
	engine.SetVariantResolver(abtests)

	// High-diversity requests get MMR reranking over catalog genres.
	engine.SetReranker(reranking.NewMMR(0.7, func(trackID string) []string {
		t, err := catalogStore.Track(context.Background(), trackID)
		if err != nil || t == nil {
			return nil
		}
		return t.Genres
	}))

	// Model persistence lets a restarted server serve collaborative
	// results before its first training pass.
	var modelStore *storage.Store
	if cfg.Recommend.ModelDir != "" {
		modelStore, err = storage.NewStore(cfg.Recommend.ModelDir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.Recommend.ModelDir).Msg("Model persistence disabled")
			modelStore = nil
		} else {
			var state storage.CollaborativeModelState
			if meta, err := modelStore.Load(ctx, "collaborative", 0, &state); err == nil {
				collab.ImportRatings(state.Ratings)
				logging.Info().
					Int("version", meta.Version).
					Time("trained_at", meta.TrainedAt).
					Msg("Loaded collaborative model snapshot")
			}
		}
	}

	trainer := &modelTrainer{
		engine:       engine,
		collab:       collab,
		store:        modelStore,
		keepVersions: cfg.Recommend.ModelKeepVersions,
	}

	if cfg.Recommend.TrainOnStartup {
		if err := trainer.train(ctx); err != nil {
			// Not fatal: the engine serves popularity fallbacks until
			// enough behavior accumulates for a successful train.
			logging.Warn().Err(err).Msg("Startup training failed, serving fallbacks")
		}
	}

	go trainer.loop(ctx, cfg.Recommend.TrainInterval)

	handler := api.NewHandler(engine, abtests, trendingStore, catalogStore, profileStore, analyzer, responseCache, cfg)
	router := api.NewRouter(handler, api.NewMiddleware(api.MiddlewareConfig{
		CORSOrigins:       cfg.API.CORSOrigins,
		RateLimitRequests: cfg.API.RateLimitReqs,
		RateLimitWindow:   cfg.API.RateLimitWindow,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// modelTrainer runs training passes and persists the collaborative
// matrix after each successful one.
type modelTrainer struct {
	engine       *recommend.Engine
	collab       *algorithms.CollaborativeStrategy
	store        *storage.Store
	keepVersions int
}

func (t *modelTrainer) train(ctx context.Context) error {
	start := time.Now()
	err := t.engine.Train(ctx)
	metrics.RecordTraining(time.Since(start), t.engine.Metrics().ModelVersion, err)
	if err != nil {
		return err
	}

	t.persist(ctx, start)
	return nil
}

func (t *modelTrainer) persist(ctx context.Context, trainStart time.Time) {
	if t.store == nil {
		return
	}

	status := t.engine.Status()
	ratings := t.collab.ExportRatings()
	state := storage.CollaborativeModelState{
		Ratings:   ratings,
		TrainedAt: status.LastTrainedAt,
	}
	meta := storage.ModelMetadata{
		TrainedAt:          status.LastTrainedAt,
		BehaviorCount:      status.BehaviorCount,
		UserCount:          len(ratings),
		TrainingDurationMS: time.Since(trainStart).Milliseconds(),
	}

	if err := t.store.Save(ctx, "collaborative", status.ModelVersion, state, meta); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist collaborative model")
		return
	}
	if err := t.store.Prune(ctx, "collaborative", t.keepVersions); err != nil {
		logging.Warn().Err(err).Msg("Failed to prune model snapshots")
	}
}

// loop retrains on the configured cadence. A failed pass is logged and
// retried at the next tick.
func (t *modelTrainer) loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.train(ctx); err != nil {
				logging.Warn().Err(err).Msg("Scheduled training failed")
			}
		}
	}
}
