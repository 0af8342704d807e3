// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Time-contextual score blend: genre membership dominates, energy
// proximity refines.
const (
	todGenreWeight  = 0.7
	todEnergyWeight = 0.3
)

// defaultTimePrefs backs users whose profiles carry no time-of-day
// preferences yet.
var defaultTimePrefs = map[recommend.TimeOfDay]recommend.TimePreference{
	recommend.TimeMorning:   {Genres: []string{"pop", "electronic", "indie"}, Energy: 0.7},
	recommend.TimeAfternoon: {Genres: []string{"pop", "rock", "hip-hop"}, Energy: 0.6},
	recommend.TimeEvening:   {Genres: []string{"jazz", "r&b", "ambient"}, Energy: 0.4},
	recommend.TimeNight:     {Genres: []string{"ambient", "classical", "jazz"}, Energy: 0.25},
}

// TimeContextualStrategy matches tracks against the user's time-of-day
// listening preferences: preferred genres and a target energy level.
type TimeContextualStrategy struct {
	BaseStrategy
	logger zerolog.Logger

	tracks   []recommend.Track
	byGenre  map[string][]int
	features map[string]recommend.TrackFeatures
	now      func() time.Time
}

// NewTimeContextualStrategy creates an untrained time-contextual strategy.
func NewTimeContextualStrategy(logger zerolog.Logger) *TimeContextualStrategy {
	return &TimeContextualStrategy{
		BaseStrategy: NewBaseStrategy(recommend.AlgorithmTimeContextual),
		logger:       logger.With().Str("strategy", "time_contextual").Logger(),
		now:          time.Now,
	}
}

// Train snapshots the catalog and genre index.
func (s *TimeContextualStrategy) Train(ctx context.Context, data recommend.TrainingData) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("time-contextual training cancelled: %w", err)
	}

	tracks := make([]recommend.Track, len(data.Tracks))
	copy(tracks, data.Tracks)

	byGenre := make(map[string][]int)
	for i := range tracks {
		for _, g := range tracks[i].Genres {
			key := strings.ToLower(g)
			byGenre[key] = append(byGenre[key], i)
		}
	}

	features := make(map[string]recommend.TrackFeatures, len(data.Features))
	for _, f := range data.Features {
		features[f.TrackID] = f
	}

	s.acquireTrainLock()
	s.tracks = tracks
	s.byGenre = byGenre
	s.features = features
	s.markTrained()
	s.releaseTrainLock()

	s.logger.Info().Int("tracks", len(tracks)).Msg("time-contextual strategy trained")
	return nil
}

// Recommend scores tracks in the preferred genres for the request's
// time of day by genre membership and energy proximity.
func (s *TimeContextualStrategy) Recommend(ctx context.Context, req *recommend.Request, prof *recommend.UserProfile, rctx recommend.Context) ([]recommend.Score, error) {
	if !s.IsTrained() {
		return nil, fmt.Errorf("time-contextual strategy not trained")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pref := s.timePreference(prof, rctx.TimeOfDay)

	s.acquireScoreLock()
	defer s.releaseScoreLock()

	now := s.now()
	seen := make(map[string]struct{})
	scores := make([]recommend.Score, 0, req.Limit)
	for _, genre := range pref.Genres {
		for _, idx := range s.byGenre[strings.ToLower(genre)] {
			t := &s.tracks[idx]
			if req.Excluded(t.ID) {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}

			energyMatch := 0.5
			if f, ok := s.features[t.ID]; ok {
				energyMatch = 1.0 - math.Abs(f.Energy-pref.Energy)
			}
			score := clamp01(todGenreWeight + todEnergyWeight*energyMatch)

			scores = append(scores, recommend.Score{
				TrackID:   t.ID,
				Score:     score,
				Algorithm: recommend.AlgorithmTimeContextual.String(),
				Freshness: recommend.FreshnessScore(t.ReleaseDate, now),
				Diversity: 0.5,
				Reasons: []recommend.Reason{{
					Type:        recommend.ReasonTimeContext,
					Weight:      score,
					Explanation: fmt.Sprintf("Fits your %s listening", rctx.TimeOfDay),
					Metadata:    map[string]string{"time_of_day": string(rctx.TimeOfDay), "genre": genre},
				}},
			})
		}
	}

	sortByScore(scores)
	return truncate(scores, req.Limit), nil
}

// timePreference resolves the user's preference for a time slot,
// falling back to the fixed defaults.
func (s *TimeContextualStrategy) timePreference(prof *recommend.UserProfile, tod recommend.TimeOfDay) recommend.TimePreference {
	if prof != nil {
		if tp, ok := prof.TimePrefs[tod]; ok && len(tp.Genres) > 0 {
			return tp
		}
	}
	if tp, ok := defaultTimePrefs[tod]; ok {
		return tp
	}
	return defaultTimePrefs[recommend.TimeAfternoon]
}

var _ recommend.Strategy = (*TimeContextualStrategy)(nil)
