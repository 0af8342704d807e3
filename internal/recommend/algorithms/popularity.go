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
)

// recentDataBoost is applied to tracks whose popularity rollup was
// refreshed within the last 24 hours.
const recentDataBoost = 1.2

// PopularityStrategy ranks tracks by catalog-wide play statistics.
// It is the baseline every other strategy falls back to, the third leg
// of the hybrid blend, and the engine's error-path fallback.
//
// The popularity score is computed as:
//
//	score(track) = normalized(playCount) * completionRate * (1 - skipRate)
//
// boosted by 1.2x for rollups refreshed in the last 24 hours and capped
// at 1.0.
type PopularityStrategy struct {
	BaseStrategy
	trending recommend.TrendingProvider
	catalog  recommend.CatalogProvider
	logger   zerolog.Logger

	// releaseDates is snapshotted at train time for freshness scoring.
	releaseDates map[string]time.Time
	genres       map[string][]string
	now          func() time.Time
}

// NewPopularityStrategy creates a popularity strategy reading live
// rollups from the trending provider.
func NewPopularityStrategy(trending recommend.TrendingProvider, catalog recommend.CatalogProvider, logger zerolog.Logger) *PopularityStrategy {
	return &PopularityStrategy{
		BaseStrategy: NewBaseStrategy(recommend.AlgorithmPopularity),
		trending:     trending,
		catalog:      catalog,
		logger:       logger.With().Str("strategy", "popularity").Logger(),
		releaseDates: make(map[string]time.Time),
		genres:       make(map[string][]string),
		now:          time.Now,
	}
}

// Train snapshots release dates and genres for freshness and diversity
// scoring. Popularity rollups themselves are read live at request time.
func (s *PopularityStrategy) Train(ctx context.Context, data recommend.TrainingData) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("popularity training cancelled: %w", err)
	}

	releaseDates := make(map[string]time.Time, len(data.Tracks))
	genres := make(map[string][]string, len(data.Tracks))
	for i := range data.Tracks {
		t := &data.Tracks[i]
		releaseDates[t.ID] = t.ReleaseDate
		genres[t.ID] = t.Genres
	}

	s.acquireTrainLock()
	s.releaseDates = releaseDates
	s.genres = genres
	s.markTrained()
	s.releaseTrainLock()

	s.logger.Info().Int("tracks", len(releaseDates)).Msg("popularity strategy trained")
	return nil
}

// Recommend ranks the most popular tracks, honoring exclusions before
// scoring.
func (s *PopularityStrategy) Recommend(ctx context.Context, req *recommend.Request, prof *recommend.UserProfile, _ recommend.Context) ([]recommend.Score, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSubScorerLimit
	}

	// Over-fetch so exclusions don't starve the result.
	popular, err := s.trending.PopularTracks(ctx, limit+len(req.ExcludeTrackIDs)+limit)
	if err != nil {
		return nil, fmt.Errorf("fetching popular tracks: %w", err)
	}
	if len(popular) == 0 {
		return []recommend.Score{}, nil
	}

	var maxPlays int64
	for i := range popular {
		if popular[i].PlayCount > maxPlays {
			maxPlays = popular[i].PlayCount
		}
	}
	if maxPlays == 0 {
		maxPlays = 1
	}

	now := s.now()
	s.acquireScoreLock()
	defer s.releaseScoreLock()

	scores := make([]recommend.Score, 0, limit)
	for i := range popular {
		p := &popular[i]
		if req.Excluded(p.TrackID) {
			continue
		}

		score := float64(p.PlayCount) / float64(maxPlays) * p.CompletionRate * (1 - p.SkipRate)
		if now.Sub(p.UpdatedAt) < 24*time.Hour {
			score *= recentDataBoost
		}
		score = clamp01(score)

		scores = append(scores, recommend.Score{
			TrackID:   p.TrackID,
			Score:     score,
			Algorithm: recommend.AlgorithmPopularity.String(),
			Freshness: s.freshness(p.TrackID, now),
			Diversity: s.diversity(p.TrackID, prof),
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonPopularity,
				Weight:      score,
				Explanation: "Popular with listeners right now",
			}},
		})
	}

	sortByScore(scores)
	return truncate(scores, limit), nil
}

func (s *PopularityStrategy) freshness(trackID string, now time.Time) float64 {
	if release, ok := s.releaseDates[trackID]; ok {
		return recommend.FreshnessScore(release, now)
	}
	return 0.5
}

// diversity compares track genres against the user's favorites; without
// a profile everything is equally novel.
func (s *PopularityStrategy) diversity(trackID string, prof *recommend.UserProfile) float64 {
	genres, ok := s.genres[trackID]
	if !ok || prof == nil || len(prof.FavoriteGenres) == 0 || len(genres) == 0 {
		return 0.5
	}
	favorites := make(map[string]struct{}, len(prof.FavoriteGenres))
	for _, g := range prof.FavoriteGenres {
		favorites[g.Genre] = struct{}{}
	}
	overlap := 0
	for _, g := range genres {
		if _, has := favorites[g]; has {
			overlap++
		}
	}
	return 1.0 - float64(overlap)/float64(len(genres))
}

var _ recommend.Strategy = (*PopularityStrategy)(nil)
