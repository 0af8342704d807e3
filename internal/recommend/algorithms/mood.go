// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
)

// Mood score blend: the requested mood outweighs the user's baseline
// feature preferences.
const (
	moodMatchWeight   = 0.6
	moodProfileWeight = 0.4
)

// MoodStrategy scores tracks by per-feature similarity against the
// user's audio preferences, contextualized by the requested mood.
type MoodStrategy struct {
	BaseStrategy
	logger zerolog.Logger

	tracks   []recommend.Track
	features map[string]recommend.TrackFeatures
	now      func() time.Time
}

// NewMoodStrategy creates an untrained mood strategy.
func NewMoodStrategy(logger zerolog.Logger) *MoodStrategy {
	return &MoodStrategy{
		BaseStrategy: NewBaseStrategy(recommend.AlgorithmMoodBased),
		logger:       logger.With().Str("strategy", "mood").Logger(),
		now:          time.Now,
	}
}

// Train snapshots the catalog and feature table.
func (s *MoodStrategy) Train(ctx context.Context, data recommend.TrainingData) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mood training cancelled: %w", err)
	}

	tracks := make([]recommend.Track, len(data.Tracks))
	copy(tracks, data.Tracks)

	features := make(map[string]recommend.TrackFeatures, len(data.Features))
	for _, f := range data.Features {
		features[f.TrackID] = f
	}

	s.acquireTrainLock()
	s.tracks = tracks
	s.features = features
	s.markTrained()
	s.releaseTrainLock()

	s.logger.Info().Int("tracks", len(tracks)).Msg("mood strategy trained")
	return nil
}

// Recommend blends mood proximity with the user's baseline feature
// preferences. Without a mood hint the slot's implied mood is used.
func (s *MoodStrategy) Recommend(ctx context.Context, req *recommend.Request, prof *recommend.UserProfile, rctx recommend.Context) ([]recommend.Score, error) {
	if !s.IsTrained() {
		return nil, fmt.Errorf("mood strategy not trained")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mood := rctx.Mood
	if mood == "" {
		mood = impliedMood(rctx.TimeOfDay)
	}

	s.acquireScoreLock()
	defer s.releaseScoreLock()

	now := s.now()
	scores := make([]recommend.Score, 0, req.Limit)
	for i := range s.tracks {
		t := &s.tracks[i]
		if req.Excluded(t.ID) {
			continue
		}
		f, ok := s.features[t.ID]
		if !ok {
			continue
		}

		match := analysis.MoodMatch(&f, mood)
		profileMatch := 0.5
		if prof != nil {
			profileMatch = featureMatch(&prof.FeaturePrefs, &f)
		}
		score := clamp01(moodMatchWeight*match + moodProfileWeight*profileMatch)

		scores = append(scores, recommend.Score{
			TrackID:   t.ID,
			Score:     score,
			Algorithm: recommend.AlgorithmMoodBased.String(),
			Freshness: recommend.FreshnessScore(t.ReleaseDate, now),
			Diversity: 0.5,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonMoodMatch,
				Weight:      score,
				Explanation: fmt.Sprintf("Fits a %s mood", mood),
				Metadata:    map[string]string{"mood": mood},
			}},
		})
	}

	sortByScore(scores)
	return truncate(scores, req.Limit), nil
}

// impliedMood maps a time slot to the mood it usually calls for.
func impliedMood(tod recommend.TimeOfDay) string {
	switch tod {
	case recommend.TimeMorning:
		return "energetic"
	case recommend.TimeEvening:
		return "calm"
	case recommend.TimeNight:
		return "calm"
	default:
		return "happy"
	}
}

var _ recommend.Strategy = (*MoodStrategy)(nil)
