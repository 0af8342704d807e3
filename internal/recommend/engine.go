// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Note: this package has no dependencies on other internal packages.
// The provider interfaces let the catalog, profile, trending and cache
// layers integrate without circular imports.

// Engine orchestrates the recommendation strategies and produces final
// responses. It is safe for concurrent use.
type Engine struct {
	cfgMu  sync.RWMutex
	config *Config
	logger zerolog.Logger

	// Collaborators
	catalog  CatalogProvider
	profiles ProfileStore
	trending TrendingProvider
	cache    ResponseCache

	// Registered strategies, keyed by algorithm
	strategies map[Algorithm]Strategy
	stratMu    sync.RWMutex

	coldStart ColdStartHandler
	variants  VariantResolver
	reranker  Reranker

	// Training state. trainMu serializes training runs; statusMu
	// guards the status snapshot so reads never block on a run.
	trainMu       sync.Mutex
	statusMu      sync.RWMutex
	trainStatus   TrainingStatus
	modelVersion  atomic.Int32
	lastTrainedAt time.Time

	// Metrics
	requestCount  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	errorCount    atomic.Int64
	fallbackCount atomic.Int64

	now func() time.Time
}

// Providers bundles the engine's external collaborators.
type Providers struct {
	Catalog  CatalogProvider
	Profiles ProfileStore
	Trending TrendingProvider
	Cache    ResponseCache
}

// BehaviorRecorder is implemented by strategies that fold live behavior
// events into their model without a full retrain.
type BehaviorRecorder interface {
	RecordBehavior(b UserBehavior)
}

// Metrics contains engine metrics for observability.
type Metrics struct {
	// RequestCount is the total number of recommendation requests.
	RequestCount int64 `json:"request_count"`

	// CacheHits is the number of response cache hits.
	CacheHits int64 `json:"cache_hits"`

	// CacheMisses is the number of response cache misses.
	CacheMisses int64 `json:"cache_misses"`

	// ErrorCount is the number of strategy or provider errors.
	ErrorCount int64 `json:"error_count"`

	// FallbackCount is the number of popularity fallback responses.
	FallbackCount int64 `json:"fallback_count"`

	// ModelVersion is the current model version.
	ModelVersion int `json:"model_version"`

	// LastTrainedAt is when the model was last trained.
	LastTrainedAt time.Time `json:"last_trained_at"`
}

// sectionAlgorithms maps sections with a fixed, rule-based strategy.
// Sections absent from this table resolve through A/B assignment.
var sectionAlgorithms = map[SectionType]Algorithm{
	SectionTrendingNow:  AlgorithmPopularity,
	SectionPopularNow:   AlgorithmPopularity,
	SectionNewReleases:  AlgorithmPopularity,
	SectionMorningBoost: AlgorithmTimeContextual,
	SectionEveningChill: AlgorithmTimeContextual,
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:     cfg,
		logger:     logger.With().Str("component", "recommend").Logger(),
		strategies: make(map[Algorithm]Strategy),
		now:        time.Now,
	}, nil
}

// SetProviders wires the engine's external collaborators.
func (e *Engine) SetProviders(p Providers) {
	e.catalog = p.Catalog
	e.profiles = p.Profiles
	e.trending = p.Trending
	e.cache = p.Cache
}

// RegisterStrategy adds a strategy to the dispatch table. Registering a
// second strategy for the same algorithm replaces the first.
func (e *Engine) RegisterStrategy(s Strategy) {
	e.stratMu.Lock()
	defer e.stratMu.Unlock()

	e.strategies[s.Algorithm()] = s
	e.logger.Info().
		Str("strategy", s.Algorithm().String()).
		Msg("registered strategy")
}

// SetColdStartHandler wires the cold-start handler.
func (e *Engine) SetColdStartHandler(h ColdStartHandler) {
	e.coldStart = h
}

// SetVariantResolver wires the A/B variant resolver.
func (e *Engine) SetVariantResolver(v VariantResolver) {
	e.variants = v
}

// SetReranker wires an optional reranker, applied to high-diversity
// requests after level re-scoring.
func (e *Engine) SetReranker(r Reranker) {
	e.reranker = r
}

// Recommend generates recommendations for a request.
//
// Unexpected strategy failures downgrade to a popularity fallback
// rather than surfacing an error; callers only see an error when even
// the fallback cannot run.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	e.requestCount.Add(1)

	cfg := e.configSnapshot()
	req = e.prepareRequest(req, cfg)
	logger := e.requestLogger(&req)
	logger.Debug().Msg("processing recommendation request")

	if resp := e.tryCachedResponse(ctx, cfg, &req, start, logger); resp != nil {
		return resp, nil
	}

	profile, err := e.loadProfile(ctx, req.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("profile load failed, serving fallback")
		e.errorCount.Add(1)
		return e.fallback(ctx, cfg, &req, nil, start)
	}

	rctx := e.resolveContext(&req)

	if e.coldStart != nil && e.coldStart.InColdStart(profile) {
		return e.coldStartResponse(ctx, cfg, &req, profile, rctx, start, logger)
	}

	algo, assignment := e.resolveAlgorithm(&req)

	scores, err := e.dispatch(ctx, cfg, algo, &req, profile, rctx)
	if err != nil {
		logger.Warn().Err(err).Str("algorithm", algo.String()).Msg("strategy failed, serving fallback")
		e.errorCount.Add(1)
		return e.fallback(ctx, cfg, &req, profile, start)
	}

	scores = applyLevels(scores, req.DiversityLevel, req.FreshnessLevel)
	totalAvailable := len(scores)
	if e.reranker != nil && req.DiversityLevel == LevelHigh {
		scores = e.reranker.Rerank(ctx, scores, req.Limit)
	}
	if len(scores) > req.Limit {
		scores = scores[:req.Limit]
	}

	resp := &Response{
		Tracks:         scores,
		TotalAvailable: totalAvailable,
		Algorithm:      algo.String(),
		GeneratedAt:    start,
		ValidUntil:     start.Add(cfg.Cache.TTL),
		Metadata:       e.responseMetadata(&req, profile, assignment, start),
	}
	e.cacheResponse(ctx, cfg, &req, resp, cfg.Cache.TTL)

	logger.Debug().
		Str("algorithm", algo.String()).
		Int("returned", len(scores)).
		Int64("latency_ms", resp.Metadata.ProcessingTimeMS).
		Msg("recommendation complete")
	return resp, nil
}

// prepareRequest applies defaults and generates a request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request, cfg *Config) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Limit <= 0 {
		req.Limit = cfg.Limits.DefaultLimit
	}
	if req.Limit > cfg.Limits.MaxLimit {
		req.Limit = cfg.Limits.MaxLimit
	}
	req.BuildExclusions()
	return req
}

func (e *Engine) requestLogger(req *Request) zerolog.Logger {
	return e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Str("section", string(req.Section)).
		Logger()
}

// tryCachedResponse returns a copy of the cached response, if any.
func (e *Engine) tryCachedResponse(ctx context.Context, cfg *Config, req *Request, start time.Time, logger zerolog.Logger) *Response {
	if !cfg.Cache.Enabled || e.cache == nil || req.Refresh {
		return nil
	}

	cached, ok := e.cache.Get(ctx, req.Fingerprint())
	if !ok {
		e.cacheMisses.Add(1)
		return nil
	}

	e.cacheHits.Add(1)
	resp := *cached
	resp.Metadata.CacheHit = true
	resp.Metadata.RequestID = req.RequestID
	resp.Metadata.ProcessingTimeMS = e.now().Sub(start).Milliseconds()
	logger.Debug().Msg("cache hit")
	return &resp
}

// loadProfile fetches the user profile. A nil profile for an unknown
// user is not an error; it routes the request through cold start.
func (e *Engine) loadProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if e.profiles == nil {
		return nil, nil
	}
	return e.profiles.Profile(ctx, userID)
}

// resolveContext uses the supplied context, filling gaps from the clock.
func (e *Engine) resolveContext(req *Request) Context {
	derived := ContextFromTime(e.now())
	if req.Context == nil {
		return derived
	}
	rctx := *req.Context
	if rctx.TimeOfDay == "" {
		rctx.TimeOfDay = derived.TimeOfDay
	}
	if rctx.Season == "" {
		rctx.Season = derived.Season
	}
	return rctx
}

// coldStartResponse delegates entirely to the cold-start handler.
func (e *Engine) coldStartResponse(ctx context.Context, cfg *Config, req *Request, profile *UserProfile, rctx Context, start time.Time, logger zerolog.Logger) (*Response, error) {
	resp, err := e.coldStart.Recommend(ctx, req, profile, rctx)
	if err != nil {
		logger.Warn().Err(err).Msg("cold-start handler failed, serving fallback")
		e.errorCount.Add(1)
		return e.fallback(ctx, cfg, req, profile, start)
	}

	resp.Metadata.RequestID = req.RequestID
	resp.Metadata.ColdStart = true
	resp.Metadata.ProcessingTimeMS = e.now().Sub(start).Milliseconds()
	if profile != nil {
		resp.Metadata.UserProfileVersion = profile.Version
	}
	e.cacheResponse(ctx, cfg, req, resp, cfg.ColdStart.CacheTTL)
	return resp, nil
}

// resolveAlgorithm picks the strategy for a request: explicit override
// first, then the rule-based section table, then A/B assignment.
func (e *Engine) resolveAlgorithm(req *Request) (Algorithm, *VariantAssignment) {
	if req.Algorithm != AlgorithmUnspecified {
		return req.Algorithm, nil
	}
	if algo, ok := sectionAlgorithms[req.Section]; ok {
		return algo, nil
	}
	if e.variants != nil {
		assignment := e.variants.AlgorithmForSection(req.UserID, req.Section)
		if len(assignment.Parameters) > 0 {
			if req.Params == nil {
				req.Params = make(map[string]float64, len(assignment.Parameters))
			}
			for k, v := range assignment.Parameters {
				req.Params[k] = v
			}
		}
		return assignment.Algorithm, &assignment
	}
	return AlgorithmHybrid, nil
}

// dispatch runs the resolved strategy, or the hybrid blend, under the
// per-strategy timeout.
func (e *Engine) dispatch(ctx context.Context, cfg *Config, algo Algorithm, req *Request, profile *UserProfile, rctx Context) ([]Score, error) {
	if algo == AlgorithmHybrid {
		return e.hybrid(ctx, cfg, req, profile, rctx)
	}

	strat := e.strategy(algo)
	if strat == nil {
		return nil, fmt.Errorf("no strategy registered for %s", algo)
	}

	sctx, cancel := context.WithTimeout(ctx, cfg.Limits.StrategyTimeout)
	defer cancel()
	return strat.Recommend(sctx, req, profile, rctx)
}

func (e *Engine) strategy(algo Algorithm) Strategy {
	e.stratMu.RLock()
	defer e.stratMu.RUnlock()
	return e.strategies[algo]
}

// hybridResult carries one sub-strategy's output.
type hybridResult struct {
	algo   Algorithm
	scores []Score
	err    error
}

// hybrid blends collaborative, content and popularity scores with the
// configured weights, overridden per request by A/B variant parameters,
// summing weighted scores and concatenating reasons
// per track. Summation is commutative, so the blend is independent of
// sub-strategy completion order.
func (e *Engine) hybrid(ctx context.Context, cfg *Config, req *Request, profile *UserProfile, rctx Context) ([]Score, error) {
	weights := cfg.Hybrid.Override(req.Params).Normalize().ToMap()

	// Sub-strategies over-fetch so the merged list has enough depth.
	subReq := *req
	subReq.Limit = req.Limit * 2

	results := make([]hybridResult, 0, len(weights))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for algo, w := range weights {
		// A zero weight disables the sub-strategy outright.
		if w == 0 {
			continue
		}
		strat := e.strategy(algo)
		if strat == nil {
			continue
		}
		wg.Add(1)
		go func(algo Algorithm, strat Strategy) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, cfg.Limits.StrategyTimeout)
			defer cancel()

			scores, err := strat.Recommend(sctx, &subReq, profile, rctx)
			mu.Lock()
			results = append(results, hybridResult{algo: algo, scores: scores, err: err})
			mu.Unlock()
		}(algo, strat)
	}
	wg.Wait()

	type blended struct {
		score     float64
		freshness float64
		diversity float64
		weightSum float64
		reasons   []Reason
	}
	combined := make(map[string]*blended)
	succeeded := 0
	for i := range results {
		r := &results[i]
		if r.err != nil {
			e.logger.Warn().Err(r.err).Str("strategy", r.algo.String()).Msg("hybrid sub-strategy failed")
			continue
		}
		succeeded++
		w := weights[r.algo]
		for j := range r.scores {
			sc := &r.scores[j]
			b, ok := combined[sc.TrackID]
			if !ok {
				b = &blended{}
				combined[sc.TrackID] = b
			}
			b.score += sc.Score * w
			b.freshness += sc.Freshness * w
			b.diversity += sc.Diversity * w
			b.weightSum += w
			b.reasons = append(b.reasons, sc.Reasons...)
		}
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("all hybrid sub-strategies failed")
	}

	out := make([]Score, 0, len(combined))
	for trackID, b := range combined {
		out = append(out, Score{
			TrackID:   trackID,
			Score:     b.score,
			Reasons:   b.reasons,
			Algorithm: AlgorithmHybrid.String(),
			Freshness: b.freshness / b.weightSum,
			Diversity: b.diversity / b.weightSum,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out, nil
}

// applyLevels re-scores with the requested diversity and freshness
// boosts, then re-sorts. Totals are intentionally not re-clamped;
// ordering is the contract.
func applyLevels(scores []Score, diversity, freshness Level) []Score {
	divW := diversity.Weight()
	freshW := freshness.Weight()
	for i := range scores {
		scores[i].Score += scores[i].Diversity*divW + scores[i].Freshness*freshW
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TrackID < scores[j].TrackID
	})
	return scores
}

// fallback serves a pure popularity ranking with a shortened validity
// window. Only an unusable popularity strategy can make it fail, in
// which case an empty response is returned.
func (e *Engine) fallback(ctx context.Context, cfg *Config, req *Request, profile *UserProfile, start time.Time) (*Response, error) {
	e.fallbackCount.Add(1)

	var scores []Score
	if strat := e.strategy(AlgorithmPopularity); strat != nil {
		sctx, cancel := context.WithTimeout(ctx, cfg.Limits.StrategyTimeout)
		defer cancel()

		var err error
		scores, err = strat.Recommend(sctx, req, profile, Context{})
		if err != nil {
			e.logger.Error().Err(err).Msg("popularity fallback failed")
			scores = nil
		}
	}

	scores = applyLevels(scores, req.DiversityLevel, req.FreshnessLevel)
	totalAvailable := len(scores)
	if len(scores) > req.Limit {
		scores = scores[:req.Limit]
	}
	if scores == nil {
		scores = []Score{}
	}

	meta := e.responseMetadata(req, profile, nil, start)
	meta.Fallback = true
	resp := &Response{
		Tracks:         scores,
		TotalAvailable: totalAvailable,
		Algorithm:      AlgorithmPopularity.String(),
		GeneratedAt:    start,
		ValidUntil:     start.Add(cfg.Cache.FallbackTTL),
		Metadata:       meta,
	}
	e.cacheResponse(ctx, cfg, req, resp, cfg.Cache.FallbackTTL)
	return resp, nil
}

func (e *Engine) responseMetadata(req *Request, profile *UserProfile, assignment *VariantAssignment, start time.Time) ResponseMetadata {
	meta := ResponseMetadata{
		RequestID:        req.RequestID,
		ProcessingTimeMS: e.now().Sub(start).Milliseconds(),
	}
	if profile != nil {
		meta.UserProfileVersion = profile.Version
	}
	if assignment != nil {
		meta.ABTestVariant = assignment.VariantID
	}
	return meta
}

// cacheResponse stores the response under the request fingerprint.
// Cache failures are non-fatal by construction; the interface has no
// error path.
func (e *Engine) cacheResponse(ctx context.Context, cfg *Config, req *Request, resp *Response, ttl time.Duration) {
	if !cfg.Cache.Enabled || e.cache == nil {
		return
	}
	e.cache.Set(ctx, req.Fingerprint(), resp, ttl)
}

// HomeFeed assembles the prioritized section list for a user. Sections
// are generated concurrently and a failed section is omitted rather
// than aborting the feed.
func (e *Engine) HomeFeed(ctx context.Context, userID string, refresh bool) (*HomeFeed, error) {
	start := e.now()
	rctx := ContextFromTime(start)

	profile, err := e.loadProfile(ctx, userID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("profile load failed for home feed")
		profile = nil
	}

	var configs []SectionConfig
	if e.coldStart != nil && e.coldStart.InColdStart(profile) {
		configs = newUserSections()
	} else {
		configs = returningUserSections()
	}
	if extra := timeOfDaySection(rctx.TimeOfDay); extra != nil {
		configs = append([]SectionConfig{*extra}, configs...)
	}

	sections := make([]FeedSection, len(configs))
	ok := make([]bool, len(configs))
	var wg sync.WaitGroup
	for i := range configs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sc := &configs[i]
			resp, err := e.Recommend(ctx, Request{
				UserID:         userID,
				Section:        sc.Type,
				Limit:          sc.Limit,
				DiversityLevel: sc.DiversityLevel,
				FreshnessLevel: sc.FreshnessLevel,
				Refresh:        refresh,
			})
			if err != nil {
				e.logger.Warn().Err(err).Str("section", string(sc.Type)).Msg("section generation failed")
				return
			}
			sections[i] = FeedSection{
				Type:         sc.Type,
				Title:        sc.Title,
				Priority:     sc.Priority,
				Personalized: sc.Personalized,
				Tracks:       resp.Tracks,
				Algorithm:    resp.Algorithm,
				RefreshAt:    start.Add(sc.RefreshInterval),
			}
			ok[i] = true
		}(i)
	}
	wg.Wait()

	feed := &HomeFeed{
		UserID:      userID,
		GeneratedAt: start,
	}
	for i := range sections {
		if ok[i] {
			feed.Sections = append(feed.Sections, sections[i])
		}
	}
	sort.SliceStable(feed.Sections, func(i, j int) bool {
		return feed.Sections[i].Priority < feed.Sections[j].Priority
	})

	e.aggregateFeed(feed)
	return feed, nil
}

// RefreshSection regenerates one home-feed section, bypassing any
// cached response. Sections are independently refreshable.
func (e *Engine) RefreshSection(ctx context.Context, userID string, section SectionType) (*FeedSection, error) {
	start := e.now()
	sc, ok := sectionConfigFor(section)
	if !ok {
		return nil, fmt.Errorf("unknown feed section %q", section)
	}

	resp, err := e.Recommend(ctx, Request{
		UserID:         userID,
		Section:        sc.Type,
		Limit:          sc.Limit,
		DiversityLevel: sc.DiversityLevel,
		FreshnessLevel: sc.FreshnessLevel,
		Refresh:        true,
	})
	if err != nil {
		return nil, err
	}

	return &FeedSection{
		Type:         sc.Type,
		Title:        sc.Title,
		Priority:     sc.Priority,
		Personalized: sc.Personalized,
		Tracks:       resp.Tracks,
		Algorithm:    resp.Algorithm,
		RefreshAt:    start.Add(sc.RefreshInterval),
	}, nil
}

// aggregateFeed computes feed-level diversity, freshness and confidence
// means across all section tracks.
func (e *Engine) aggregateFeed(feed *HomeFeed) {
	var diversity, freshness, confidence float64
	count := 0
	for i := range feed.Sections {
		for j := range feed.Sections[i].Tracks {
			t := &feed.Sections[i].Tracks[j]
			diversity += t.Diversity
			freshness += t.Freshness
			confidence += t.Score
			count++
		}
	}
	if count == 0 {
		return
	}
	feed.Diversity = diversity / float64(count)
	feed.Freshness = freshness / float64(count)
	feed.AverageConfidence = confidence / float64(count)
}

// UpdateBehavior records a behavior event and folds it into any
// strategies that support live updates.
func (e *Engine) UpdateBehavior(ctx context.Context, b UserBehavior) error {
	if !b.Action.Valid() {
		return fmt.Errorf("unknown behavior action %q", b.Action)
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = e.now()
	}
	if e.profiles == nil {
		return fmt.Errorf("profile store not set")
	}
	if err := e.profiles.RecordBehavior(ctx, b); err != nil {
		return fmt.Errorf("recording behavior: %w", err)
	}

	e.stratMu.RLock()
	defer e.stratMu.RUnlock()
	for _, strat := range e.strategies {
		if recorder, ok := strat.(BehaviorRecorder); ok {
			recorder.RecordBehavior(b)
		}
	}
	return nil
}

// RefreshProfile rebuilds a user's profile from the behavior log.
func (e *Engine) RefreshProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if e.profiles == nil {
		return nil, fmt.Errorf("profile store not set")
	}
	return e.profiles.RefreshProfile(ctx, userID)
}

// Explain reconstructs human-readable reasons for recommending a track
// to a user without re-running full scoring.
func (e *Engine) Explain(ctx context.Context, trackID, userID string) ([]Reason, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("catalog not set")
	}
	track, err := e.catalog.Track(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("loading track: %w", err)
	}
	if track == nil {
		return nil, fmt.Errorf("track %s not found", trackID)
	}

	profile, err := e.loadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	var reasons []Reason
	if profile != nil {
		trackGenres := make(map[string]struct{}, len(track.Genres))
		for _, g := range track.Genres {
			trackGenres[g] = struct{}{}
		}
		for i := range profile.FavoriteGenres {
			pref := &profile.FavoriteGenres[i]
			if _, ok := trackGenres[pref.Genre]; ok {
				reasons = append(reasons, Reason{
					Type:        ReasonGenreMatch,
					Weight:      pref.Score,
					Explanation: fmt.Sprintf("You've played %s tracks %d times", pref.Genre, pref.PlayCount),
					Metadata:    map[string]string{"genre": pref.Genre},
				})
			}
		}
		for i := range profile.FavoriteArtists {
			pref := &profile.FavoriteArtists[i]
			if pref.ArtistID == track.ArtistID {
				reasons = append(reasons, Reason{
					Type:        ReasonArtistMatch,
					Weight:      pref.Score,
					Explanation: fmt.Sprintf("You've played %s %d times", pref.Name, pref.PlayCount),
					Metadata:    map[string]string{"artist": pref.Name},
				})
			}
		}
	}
	if track.Popularity >= 70 {
		reasons = append(reasons, Reason{
			Type:        ReasonPopularity,
			Weight:      track.Popularity / 100,
			Explanation: "Popular with listeners right now",
		})
	}
	if len(reasons) == 0 {
		reasons = append(reasons, Reason{
			Type:        ReasonExploration,
			Weight:      0.5,
			Explanation: "Picked to broaden your listening",
		})
	}
	return reasons, nil
}

// Train trains all registered strategies on the current data snapshot.
// Returns immediately with an error if training is already in progress.
func (e *Engine) Train(ctx context.Context) error {
	if err := e.acquireTrainingLock(); err != nil {
		return err
	}
	defer e.trainMu.Unlock()

	if e.profiles == nil || e.catalog == nil {
		return fmt.Errorf("providers not set")
	}

	cfg := e.configSnapshot()
	start := e.now()
	e.updateStatus(func(s *TrainingStatus) {
		s.IsTraining = true
		s.LastError = ""
	})
	e.logger.Info().Msg("starting model training")

	defer func() {
		elapsed := e.now().Sub(start).Milliseconds()
		e.updateStatus(func(s *TrainingStatus) {
			s.IsTraining = false
			s.CurrentStrategy = ""
			s.LastTrainingDurationMS = elapsed
		})
	}()

	trainCtx, cancel := context.WithTimeout(ctx, cfg.Training.Timeout)
	defer cancel()

	data, err := e.loadTrainingData(trainCtx, cfg)
	if err != nil {
		e.updateStatus(func(s *TrainingStatus) { s.LastError = err.Error() })
		return err
	}

	e.trainStrategies(trainCtx, data)

	version := int(e.modelVersion.Add(1))
	if clearer, ok := e.cache.(interface{ Clear() }); ok {
		clearer.Clear()
	}
	trained := e.now()
	e.statusMu.Lock()
	e.lastTrainedAt = trained
	e.trainStatus.LastTrainedAt = trained
	e.trainStatus.ModelVersion = version
	e.statusMu.Unlock()

	e.logger.Info().
		Int("version", version).
		Int64("duration_ms", e.now().Sub(start).Milliseconds()).
		Msg("model training complete")
	return nil
}

func (e *Engine) acquireTrainingLock() error {
	if !e.trainMu.TryLock() {
		return fmt.Errorf("training already in progress")
	}
	return nil
}

func (e *Engine) updateStatus(fn func(*TrainingStatus)) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	fn(&e.trainStatus)
}

func (e *Engine) loadTrainingData(ctx context.Context, cfg *Config) (TrainingData, error) {
	behaviors, err := e.profiles.Behaviors(ctx, time.Time{})
	if err != nil {
		return TrainingData{}, fmt.Errorf("loading behaviors: %w", err)
	}
	if len(behaviors) < cfg.Training.MinBehaviors {
		return TrainingData{}, fmt.Errorf("insufficient behaviors: %d < %d", len(behaviors), cfg.Training.MinBehaviors)
	}

	tracks, err := e.catalog.AllTracks(ctx)
	if err != nil {
		return TrainingData{}, fmt.Errorf("loading tracks: %w", err)
	}
	features, err := e.catalog.AllFeatures(ctx)
	if err != nil {
		return TrainingData{}, fmt.Errorf("loading features: %w", err)
	}

	e.updateStatus(func(s *TrainingStatus) {
		s.BehaviorCount = len(behaviors)
		s.TrackCount = len(tracks)
	})
	e.logger.Info().
		Int("behaviors", len(behaviors)).
		Int("tracks", len(tracks)).
		Msg("loaded training data")

	return TrainingData{Behaviors: behaviors, Tracks: tracks, Features: features}, nil
}

// trainStrategies trains each registered strategy. Individual failures
// are logged and skipped.
func (e *Engine) trainStrategies(ctx context.Context, data TrainingData) {
	e.stratMu.RLock()
	strategies := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		strategies = append(strategies, s)
	}
	e.stratMu.RUnlock()

	for _, strat := range strategies {
		e.updateStatus(func(s *TrainingStatus) { s.CurrentStrategy = strat.Algorithm().String() })
		if err := strat.Train(ctx, data); err != nil {
			e.logger.Error().
				Str("strategy", strat.Algorithm().String()).
				Err(err).
				Msg("strategy training failed")
			continue
		}
		e.logger.Debug().
			Str("strategy", strat.Algorithm().String()).
			Msg("strategy training complete")
	}
}

// Status returns the current training status.
func (e *Engine) Status() TrainingStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.trainStatus
}

// Metrics returns the current engine metrics.
func (e *Engine) Metrics() Metrics {
	e.statusMu.RLock()
	lastTrained := e.lastTrainedAt
	e.statusMu.RUnlock()

	return Metrics{
		RequestCount:  e.requestCount.Load(),
		CacheHits:     e.cacheHits.Load(),
		CacheMisses:   e.cacheMisses.Load(),
		ErrorCount:    e.errorCount.Load(),
		FallbackCount: e.fallbackCount.Load(),
		ModelVersion:  int(e.modelVersion.Load()),
		LastTrainedAt: lastTrained,
	}
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() *Config {
	return e.configSnapshot().Clone()
}

// UpdateConfig replaces the engine configuration after validation.
func (e *Engine) UpdateConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	e.cfgMu.Lock()
	e.config = cfg
	e.cfgMu.Unlock()

	e.logger.Info().Msg("configuration updated")
	return nil
}

func (e *Engine) configSnapshot() *Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.config
}
