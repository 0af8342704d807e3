// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package coldstart serves users with too little history for the
// personalized strategies. Users are routed into strata by interaction
// count, each stratum trading a different amount of relevance for
// diversity and exploration.
package coldstart

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
)

const (
	// popularShare is the fraction of the popularity stratum filled
	// from the play-count rollup; the rest comes from trending velocity.
	popularShare = 0.7

	// demographicDiscount flattens demographic scores; the stratum has
	// the weakest personalization signal of the four.
	demographicDiscount = 0.8

	// explorationFloor and explorationSpread bound the scores given to
	// randomly mixed-in exploration tracks so they rank near the tail.
	explorationFloor  = 0.2
	explorationSpread = 0.15

	// tracksPerGenre caps each genre's contribution to the
	// genre-exploration stratum; coverage across genres beats depth
	// within one.
	tracksPerGenre = 2

	// genrePopShare is the fraction of a genre-exploration score taken
	// from the genre's catalog-wide popularity rather than the track's.
	genrePopShare = 0.2
)

// Stratum names, reported in response metadata.
const (
	StrategyPopularity       = "popularity_based"
	StrategyGenreExploration = "genre_exploration"
	StrategyOnboarding       = "onboarding_based"
	StrategyDemographic      = "demographic_based"
)

// explorationGenres is the fixed genre pool ranked for the
// genre-exploration stratum.
var explorationGenres = []string{
	"pop", "rock", "hip-hop", "electronic",
	"jazz", "r&b", "indie", "classical",
}

// onboardingTimeGenres maps time of day to genres for the onboarding
// time slice.
var onboardingTimeGenres = map[recommend.TimeOfDay][]string{
	recommend.TimeMorning:   {"pop", "electronic", "indie"},
	recommend.TimeAfternoon: {"pop", "rock", "hip-hop"},
	recommend.TimeEvening:   {"jazz", "r&b", "ambient"},
	recommend.TimeNight:     {"ambient", "classical", "jazz"},
}

// stratum describes one cold-start band.
type stratum struct {
	name              string
	diversityBoost    float64
	explorationWeight float64
}

// Handler implements recommend.ColdStartHandler.
type Handler struct {
	cfg      recommend.ColdStartConfig
	catalog  recommend.CatalogProvider
	trending recommend.TrendingProvider
	analyzer *analysis.Analyzer
	logger   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	now func() time.Time
}

// NewHandler creates a cold-start handler. The analyzer is optional;
// without it the onboarding mood slice is skipped.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(cfg recommend.ColdStartConfig, catalog recommend.CatalogProvider, trending recommend.TrendingProvider, analyzer *analysis.Analyzer, seed int64, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		catalog:  catalog,
		trending: trending,
		analyzer: analyzer,
		logger:   logger.With().Str("component", "coldstart").Logger(),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
	}
}

// InColdStart reports whether the profile has too little history for
// the personalized strategies. A nil profile always qualifies.
func (h *Handler) InColdStart(profile *recommend.UserProfile) bool {
	if profile == nil {
		return true
	}
	return profile.TotalInteractions() < h.cfg.NewUserThreshold
}

// stratumFor maps an interaction count to its cold-start band.
func (h *Handler) stratumFor(interactions int) stratum {
	switch {
	case interactions < h.cfg.PopularityThreshold:
		return stratum{name: StrategyPopularity, diversityBoost: 0.3, explorationWeight: 0.2}
	case interactions < h.cfg.ExplorationThreshold:
		return stratum{name: StrategyGenreExploration, diversityBoost: 0.4, explorationWeight: 0.3}
	case interactions < h.cfg.NewUserThreshold:
		return stratum{name: StrategyOnboarding, diversityBoost: 0.2, explorationWeight: 0.1}
	default:
		return stratum{name: StrategyDemographic, diversityBoost: 0.1, explorationWeight: 0.0}
	}
}

// Recommend produces a full cold-start response for the request.
func (h *Handler) Recommend(ctx context.Context, req *recommend.Request, profile *recommend.UserProfile, rctx recommend.Context) (*recommend.Response, error) {
	start := h.now()

	interactions := 0
	if profile != nil {
		interactions = profile.TotalInteractions()
	}
	st := h.stratumFor(interactions)

	var (
		scores []recommend.Score
		algo   recommend.Algorithm
		err    error
	)
	switch st.name {
	case StrategyPopularity:
		algo = recommend.AlgorithmPopularity
		scores, err = h.popularityScores(ctx, req, req.Limit)
	case StrategyGenreExploration:
		algo = recommend.AlgorithmContentBased
		scores, err = h.genreExploration(ctx, req, profile)
	case StrategyOnboarding:
		algo = recommend.AlgorithmHybrid
		scores, err = h.onboarding(ctx, req, rctx)
	default:
		// Demographic cohorts behave like a coarse collaborative
		// neighborhood, so the scores carry that label.
		algo = recommend.AlgorithmCollaborative
		scores, err = h.demographic(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("cold-start %s: %w", st.name, err)
	}

	for i := range scores {
		scores[i].Algorithm = algo.String()
		scores[i].Score += scores[i].Diversity * st.diversityBoost
	}
	h.decorateFreshness(ctx, scores)
	sortScores(scores)
	scores = h.mixExploration(ctx, scores, req, st.explorationWeight, algo)
	totalAvailable := len(scores)
	if len(scores) > req.Limit {
		scores = scores[:req.Limit]
	}

	h.logger.Debug().
		Str("user_id", req.UserID).
		Str("stratum", st.name).
		Int("interactions", interactions).
		Int("returned", len(scores)).
		Msg("cold-start recommendation")

	return &recommend.Response{
		Tracks:         scores,
		TotalAvailable: totalAvailable,
		Algorithm:      algo.String(),
		GeneratedAt:    start,
		ValidUntil:     start.Add(h.cfg.CacheTTL),
		Metadata: recommend.ResponseMetadata{
			ColdStart: true,
			Strategy:  st.name,
		},
	}, nil
}

// popularityScores blends the play-count rollup with trending velocity
// for users with almost no history.
func (h *Handler) popularityScores(ctx context.Context, req *recommend.Request, limit int) ([]recommend.Score, error) {
	popCount := int(math.Ceil(float64(limit) * popularShare))
	trendCount := limit - popCount

	// Over-fetch to survive exclusions.
	fetch := limit + len(req.Exclude) + limit
	popular, err := h.trending.PopularTracks(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("loading popular tracks: %w", err)
	}

	var maxPlays int64
	for i := range popular {
		if popular[i].PlayCount > maxPlays {
			maxPlays = popular[i].PlayCount
		}
	}

	seen := make(map[string]struct{})
	scores := make([]recommend.Score, 0, limit)
	for i := range popular {
		if len(scores) >= popCount {
			break
		}
		p := &popular[i]
		if req.Excluded(p.TrackID) {
			continue
		}
		norm := 0.0
		if maxPlays > 0 {
			norm = float64(p.PlayCount) / float64(maxPlays)
		}
		seen[p.TrackID] = struct{}{}
		scores = append(scores, recommend.Score{
			TrackID:   p.TrackID,
			Score:     norm * (1 - p.SkipRate),
			Diversity: 0.3,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonPopularity,
				Weight:      norm,
				Explanation: "Popular with listeners right now",
			}},
		})
	}

	trendingTracks, err := h.trending.TrendingTracks(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("loading trending tracks: %w", err)
	}
	maxVelocity := 0.0
	for i := range trendingTracks {
		if trendingTracks[i].Velocity > maxVelocity {
			maxVelocity = trendingTracks[i].Velocity
		}
	}
	added := 0
	for i := range trendingTracks {
		if added >= trendCount {
			break
		}
		t := &trendingTracks[i]
		if req.Excluded(t.TrackID) {
			continue
		}
		if _, ok := seen[t.TrackID]; ok {
			continue
		}
		norm := 0.0
		if maxVelocity > 0 {
			norm = t.Velocity / maxVelocity
		}
		added++
		scores = append(scores, recommend.Score{
			TrackID:   t.TrackID,
			Score:     norm,
			Diversity: 0.3,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonTrending,
				Weight:      norm,
				Explanation: "Rapidly gaining plays",
			}},
		})
	}
	return scores, nil
}

// genreExploration samples the top tracks of every genre in the fixed
// exploration pool, skipping genres the user already knows. Each genre
// contributes at most tracksPerGenre tracks so the response spans the
// pool instead of collapsing into its most popular corner.
func (h *Handler) genreExploration(ctx context.Context, req *recommend.Request, profile *recommend.UserProfile) ([]recommend.Score, error) {
	known := make(map[string]struct{})
	if profile != nil {
		for i := range profile.FavoriteGenres {
			known[profile.FavoriteGenres[i].Genre] = struct{}{}
		}
	}

	genres := make([]string, 0, len(explorationGenres))
	for _, g := range explorationGenres {
		if _, ok := known[g]; ok {
			continue
		}
		genres = append(genres, g)
	}
	if len(genres) == 0 {
		return h.popularityScores(ctx, req, req.Limit)
	}

	tracks, err := h.catalog.TracksByGenres(ctx, genres)
	if err != nil {
		return nil, fmt.Errorf("loading genre tracks: %w", err)
	}
	byGenre := make(map[string][]*recommend.Track, len(genres))
	for i := range tracks {
		t := &tracks[i]
		if req.Excluded(t.ID) {
			continue
		}
		for _, g := range t.Genres {
			byGenre[g] = append(byGenre[g], t)
		}
	}

	picked := make(map[string]struct{})
	scores := make([]recommend.Score, 0, len(genres)*tracksPerGenre)
	for _, g := range genres {
		cands := byGenre[g]
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].Popularity != cands[j].Popularity {
				return cands[i].Popularity > cands[j].Popularity
			}
			return cands[i].ID < cands[j].ID
		})

		genrePop, err := h.trending.GenrePopularity(ctx, g)
		if err != nil {
			h.logger.Warn().Err(err).Str("genre", g).Msg("genre popularity lookup failed")
			genrePop = 0
		}

		taken := 0
		for _, t := range cands {
			if taken >= tracksPerGenre {
				break
			}
			if _, dup := picked[t.ID]; dup {
				continue
			}
			picked[t.ID] = struct{}{}
			taken++
			scores = append(scores, recommend.Score{
				TrackID:   t.ID,
				Score:     t.Popularity/100*(1-genrePopShare) + genrePop*genrePopShare,
				Diversity: 0.7,
				Reasons: []recommend.Reason{{
					Type:        recommend.ReasonExploration,
					Weight:      0.7,
					Explanation: fmt.Sprintf("Exploring %s for you", g),
				}},
			})
		}
	}
	return scores, nil
}

// onboarding splits the limit across time-of-day, activity and mood
// slices, backfilling any shortfall from the popularity rollup.
func (h *Handler) onboarding(ctx context.Context, req *recommend.Request, rctx recommend.Context) ([]recommend.Score, error) {
	slice := req.Limit / 3
	if slice < 1 {
		slice = 1
	}

	seen := make(map[string]struct{})
	var scores []recommend.Score

	timeScores, err := h.onboardingTimeSlice(ctx, req, rctx.TimeOfDay, slice, seen)
	if err != nil {
		h.logger.Warn().Err(err).Msg("onboarding time slice failed")
	}
	scores = append(scores, timeScores...)

	activityScores, err := h.onboardingActivitySlice(ctx, req, slice, seen)
	if err != nil {
		h.logger.Warn().Err(err).Msg("onboarding activity slice failed")
	}
	scores = append(scores, activityScores...)

	scores = append(scores, h.onboardingMoodSlice(req, rctx, slice, seen)...)

	if len(scores) < req.Limit {
		backfill, err := h.popularityScores(ctx, req, req.Limit-len(scores))
		if err != nil {
			h.logger.Warn().Err(err).Msg("onboarding backfill failed")
		}
		for i := range backfill {
			if _, ok := seen[backfill[i].TrackID]; ok {
				continue
			}
			seen[backfill[i].TrackID] = struct{}{}
			scores = append(scores, backfill[i])
		}
	}
	return scores, nil
}

func (h *Handler) onboardingTimeSlice(ctx context.Context, req *recommend.Request, tod recommend.TimeOfDay, n int, seen map[string]struct{}) ([]recommend.Score, error) {
	genres, ok := onboardingTimeGenres[tod]
	if !ok {
		genres = onboardingTimeGenres[recommend.TimeAfternoon]
	}
	tracks, err := h.catalog.TracksByGenres(ctx, genres)
	if err != nil {
		return nil, err
	}
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Popularity != tracks[j].Popularity {
			return tracks[i].Popularity > tracks[j].Popularity
		}
		return tracks[i].ID < tracks[j].ID
	})

	scores := make([]recommend.Score, 0, n)
	for i := range tracks {
		if len(scores) >= n {
			break
		}
		t := &tracks[i]
		if req.Excluded(t.ID) {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		scores = append(scores, recommend.Score{
			TrackID:   t.ID,
			Score:     t.Popularity / 100,
			Diversity: 0.5,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonTimeContext,
				Weight:      0.6,
				Explanation: fmt.Sprintf("A good fit for the %s", tod),
			}},
		})
	}
	return scores, nil
}

func (h *Handler) onboardingActivitySlice(ctx context.Context, req *recommend.Request, n int, seen map[string]struct{}) ([]recommend.Score, error) {
	popular, err := h.trending.PopularTracks(ctx, n+len(req.Exclude)+n)
	if err != nil {
		return nil, err
	}
	var maxPlays int64
	for i := range popular {
		if popular[i].PlayCount > maxPlays {
			maxPlays = popular[i].PlayCount
		}
	}

	scores := make([]recommend.Score, 0, n)
	for i := range popular {
		if len(scores) >= n {
			break
		}
		p := &popular[i]
		if req.Excluded(p.TrackID) {
			continue
		}
		if _, dup := seen[p.TrackID]; dup {
			continue
		}
		norm := 0.0
		if maxPlays > 0 {
			norm = float64(p.PlayCount) / float64(maxPlays)
		}
		seen[p.TrackID] = struct{}{}
		scores = append(scores, recommend.Score{
			TrackID:   p.TrackID,
			Score:     norm * p.CompletionRate,
			Diversity: 0.5,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonOnboarding,
				Weight:      norm,
				Explanation: "Widely listened this week",
			}},
		})
	}
	return scores, nil
}

// onboardingMoodSlice scores analyzed tracks against the mood implied
// by the request context. Skipped without an analyzer.
func (h *Handler) onboardingMoodSlice(req *recommend.Request, rctx recommend.Context, n int, seen map[string]struct{}) []recommend.Score {
	if h.analyzer == nil {
		return nil
	}
	mood := rctx.Mood
	if mood == "" {
		switch rctx.TimeOfDay {
		case recommend.TimeMorning:
			mood = "energetic"
		case recommend.TimeEvening, recommend.TimeNight:
			mood = "calm"
		default:
			mood = "happy"
		}
	}

	type moodCandidate struct {
		trackID string
		match   float64
	}
	var candidates []moodCandidate
	for _, id := range h.analyzer.TrackIDs() {
		if req.Excluded(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		f := h.analyzer.TrackFeatures(id)
		match := analysis.MoodMatch(f, mood)
		if match > 0.5 {
			candidates = append(candidates, moodCandidate{trackID: id, match: match})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].match != candidates[j].match {
			return candidates[i].match > candidates[j].match
		}
		return candidates[i].trackID < candidates[j].trackID
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	scores := make([]recommend.Score, 0, len(candidates))
	for _, c := range candidates {
		seen[c.trackID] = struct{}{}
		scores = append(scores, recommend.Score{
			TrackID:   c.trackID,
			Score:     c.match,
			Diversity: 0.5,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonMoodMatch,
				Weight:      c.match,
				Explanation: fmt.Sprintf("Matches a %s mood", mood),
				Metadata:    map[string]string{"mood": mood},
			}},
		})
	}
	return scores
}

// demographic serves flattened popularity for users just below the
// personalization threshold. Cohort signals would slot in here once a
// demographics source exists.
func (h *Handler) demographic(ctx context.Context, req *recommend.Request) ([]recommend.Score, error) {
	scores, err := h.popularityScores(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i].Score *= demographicDiscount
		scores[i].Diversity = 0.4
	}
	return scores, nil
}

// mixExploration replaces the tail of the ranking with random catalog
// tracks so every cold-start response carries some discovery.
func (h *Handler) mixExploration(ctx context.Context, scores []recommend.Score, req *recommend.Request, weight float64, algo recommend.Algorithm) []recommend.Score {
	n := int(math.Floor(float64(req.Limit) * weight))
	if n == 0 || len(scores) == 0 {
		return scores
	}

	tracks, err := h.catalog.AllTracks(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("exploration mix skipped")
		return scores
	}

	present := make(map[string]struct{}, len(scores))
	for i := range scores {
		present[scores[i].TrackID] = struct{}{}
	}
	var pool []string
	for i := range tracks {
		id := tracks[i].ID
		if req.Excluded(id) {
			continue
		}
		if _, ok := present[id]; ok {
			continue
		}
		pool = append(pool, id)
	}
	if len(pool) == 0 {
		return scores
	}

	h.rngMu.Lock()
	h.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	picks := make([]float64, 0, n)
	for i := 0; i < n && i < len(pool); i++ {
		picks = append(picks, h.rng.Float64())
	}
	h.rngMu.Unlock()

	for i := 0; i < len(picks); i++ {
		slot := len(scores) - 1 - i
		if slot < 0 {
			break
		}
		scores[slot] = recommend.Score{
			TrackID:   pool[i],
			Score:     explorationFloor + picks[i]*explorationSpread,
			Algorithm: algo.String(),
			Diversity: 0.8,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonExploration,
				Weight:      weight,
				Explanation: "Something different to try",
			}},
		}
	}
	sortScores(scores)
	return scores
}

// decorateFreshness fills per-track freshness from catalog release
// dates. Lookup failures leave the zero value.
func (h *Handler) decorateFreshness(ctx context.Context, scores []recommend.Score) {
	now := h.now()
	for i := range scores {
		track, err := h.catalog.Track(ctx, scores[i].TrackID)
		if err != nil || track == nil {
			continue
		}
		scores[i].Freshness = recommend.FreshnessScore(track.ReleaseDate, now)
	}
}

func sortScores(scores []recommend.Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TrackID < scores[j].TrackID
	})
}

var _ recommend.ColdStartHandler = (*Handler)(nil)
