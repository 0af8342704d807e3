// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// stubTrending serves fixed rollups for strategy tests.
type stubTrending struct {
	popular  []recommend.PopularTrack
	trending []recommend.TrendingTrack
}

func (s *stubTrending) PopularTracks(_ context.Context, n int) ([]recommend.PopularTrack, error) {
	if n > len(s.popular) {
		n = len(s.popular)
	}
	return s.popular[:n], nil
}

func (s *stubTrending) TrendingTracks(_ context.Context, n int) ([]recommend.TrendingTrack, error) {
	if n > len(s.trending) {
		n = len(s.trending)
	}
	return s.trending[:n], nil
}

func (s *stubTrending) GenrePopularity(_ context.Context, _ string) (float64, error) {
	return 0.5, nil
}

func newPopularity(t *testing.T) *PopularityStrategy {
	t.Helper()
	old := time.Now().Add(-48 * time.Hour)
	trending := &stubTrending{
		popular: []recommend.PopularTrack{
			{TrackID: "hit", PlayCount: 1000, SkipRate: 0.1, CompletionRate: 0.9, UpdatedAt: old},
			{TrackID: "mid", PlayCount: 500, SkipRate: 0.2, CompletionRate: 0.8, UpdatedAt: old},
			{TrackID: "tail", PlayCount: 50, SkipRate: 0.5, CompletionRate: 0.5, UpdatedAt: old},
		},
	}

	s := NewPopularityStrategy(trending, nil, zerolog.Nop())
	data := recommend.TrainingData{Tracks: []recommend.Track{
		{ID: "hit", Genres: []string{"pop"}, ReleaseDate: time.Now().AddDate(0, 0, -3)},
		{ID: "mid", Genres: []string{"rock"}, ReleaseDate: time.Now().AddDate(-2, 0, 0)},
		{ID: "tail", Genres: []string{"jazz"}, ReleaseDate: time.Now().AddDate(-5, 0, 0)},
	}}
	if err := s.Train(context.Background(), data); err != nil {
		t.Fatalf("train: %v", err)
	}
	return s
}

func TestPopularityRecommend(t *testing.T) {
	s := newPopularity(t)

	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 3}, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(scores))
	}
	if scores[0].TrackID != "hit" {
		t.Errorf("top track = %q, want hit", scores[0].TrackID)
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Score > scores[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, scores[i].Score, scores[i-1].Score)
		}
	}

	// The recently released chart-topper carries full freshness.
	if scores[0].Freshness != 1.0 {
		t.Errorf("hit freshness = %v, want 1.0", scores[0].Freshness)
	}
}

func TestPopularityExclusions(t *testing.T) {
	s := newPopularity(t)

	req := &recommend.Request{UserID: "u1", Limit: 3, ExcludeTrackIDs: []string{"hit"}}
	req.BuildExclusions()
	scores, err := s.Recommend(context.Background(), req, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, sc := range scores {
		if sc.TrackID == "hit" {
			t.Error("excluded track was recommended")
		}
	}
	if len(scores) == 0 {
		t.Error("exclusion starved the result entirely")
	}
}

func TestPopularityDiversity(t *testing.T) {
	s := newPopularity(t)

	prof := &recommend.UserProfile{
		FavoriteGenres: []recommend.GenrePreference{{Genre: "pop", PlayCount: 10}},
	}
	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 3}, prof, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	byID := make(map[string]recommend.Score, len(scores))
	for _, sc := range scores {
		byID[sc.TrackID] = sc
	}
	// A track in the user's favorite genre is less novel than one outside it.
	if byID["hit"].Diversity >= byID["mid"].Diversity {
		t.Errorf("pop track diversity %v should be below rock track %v for a pop listener",
			byID["hit"].Diversity, byID["mid"].Diversity)
	}
}

func TestPopularityEmptyRollups(t *testing.T) {
	s := NewPopularityStrategy(&stubTrending{}, nil, zerolog.Nop())
	if err := s.Train(context.Background(), recommend.TrainingData{}); err != nil {
		t.Fatalf("train: %v", err)
	}

	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 5}, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("empty rollups produced %d scores", len(scores))
	}
}
