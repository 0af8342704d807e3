// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package trending

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func play(trackID string, duration int, at time.Time) recommend.UserBehavior {
	return recommend.UserBehavior{
		UserID: "u1", TrackID: trackID, Action: recommend.ActionPlay,
		ListenDuration: duration, Timestamp: at,
	}
}

func TestPopularTracksOrdering(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Record(play("hit", 60, at), nil)
	}
	for i := 0; i < 2; i++ {
		s.Record(play("mid", 60, at), nil)
	}
	s.Record(play("tail", 60, at), nil)

	popular, err := s.PopularTracks(ctx, 10)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if len(popular) != 3 {
		t.Fatalf("got %d tracks, want 3", len(popular))
	}
	want := []string{"hit", "mid", "tail"}
	for i, id := range want {
		if popular[i].TrackID != id {
			t.Errorf("position %d = %q, want %q", i, popular[i].TrackID, id)
		}
	}
	if popular[0].PlayCount != 5 {
		t.Errorf("hit play count = %d, want 5", popular[0].PlayCount)
	}

	limited, err := s.PopularTracks(ctx, 1)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d tracks", len(limited))
	}

	if _, err := s.PopularTracks(ctx, 0); err == nil {
		t.Error("n=0 should error")
	}
}

func TestSkipRate(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.Record(play("t1", 60, at), nil)
	}
	s.Record(recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionSkip, Timestamp: at}, nil)

	popular, err := s.PopularTracks(ctx, 1)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if got := popular[0].SkipRate; got != 0.25 {
		t.Errorf("skip rate = %v, want 0.25", got)
	}
}

func TestCompletionDetection(t *testing.T) {
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	track := &recommend.Track{ID: "t1", DurationSeconds: 200, Genres: []string{"rock"}}

	tests := []struct {
		name     string
		behavior recommend.UserBehavior
		track    *recommend.Track
		want     bool
	}{
		{"80 percent of known duration", play("t1", 160, at), track, true},
		{"below 80 percent", play("t1", 100, at), track, false},
		{"unknown duration, long listen", play("t1", 45, at), nil, true},
		{"unknown duration, short listen", play("t1", 10, at), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := completed(tt.behavior, tt.track); got != tt.want {
				t.Errorf("completed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompletionRateRollup(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	s.Record(play("t1", 45, at), nil)
	s.Record(play("t1", 5, at), nil)

	popular, err := s.PopularTracks(ctx, 1)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if got := popular[0].CompletionRate; got != 0.5 {
		t.Errorf("completion rate = %v, want 0.5", got)
	}
}

func TestTrendingVelocity(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base.Add(time.Hour) })

	// rising gets recent plays, steady got all its plays earlier.
	for i := 0; i < 10; i++ {
		s.Record(play("rising", 60, base.Add(time.Duration(i)*time.Minute)), nil)
	}
	for i := 0; i < 3; i++ {
		s.Record(play("steady", 60, base.Add(time.Duration(i)*time.Minute)), nil)
	}

	trending, err := s.TrendingTracks(ctx, 10)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(trending) != 2 {
		t.Fatalf("got %d tracks, want 2", len(trending))
	}
	if trending[0].TrackID != "rising" {
		t.Errorf("top trending = %q, want rising", trending[0].TrackID)
	}
	if trending[0].Velocity != 1.0 {
		t.Errorf("top velocity = %v, want 1.0 (normalized)", trending[0].Velocity)
	}
	if trending[1].Velocity >= trending[0].Velocity {
		t.Error("velocities not descending")
	}

	// Tracks without plays never trend.
	s.Record(recommend.UserBehavior{UserID: "u1", TrackID: "liked", Action: recommend.ActionLike, Timestamp: base}, nil)
	trending, _ = s.TrendingTracks(ctx, 10)
	for _, tr := range trending {
		if tr.TrackID == "liked" {
			t.Error("like-only track appeared in trending")
		}
	}
}

func TestSlidingCounterRotation(t *testing.T) {
	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	c := slidingCounter{window: time.Hour}

	c.incr(base)
	c.incr(base.Add(10 * time.Minute))
	if got := c.weightedRate(base.Add(30 * time.Minute)); got != 2 {
		t.Errorf("rate inside window = %v, want 2", got)
	}

	// One window later the old bucket decays with overlap.
	rate := c.weightedRate(base.Add(90 * time.Minute))
	if rate <= 0 || rate >= 2 {
		t.Errorf("rate one window later = %v, want decayed in (0, 2)", rate)
	}

	// Two windows later everything has aged out.
	if got := c.weightedRate(base.Add(3 * time.Hour)); got != 0 {
		t.Errorf("rate after two windows = %v, want 0", got)
	}
}

func TestGenrePopularity(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()
	at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	rock := &recommend.Track{ID: "r1", Genres: []string{"rock"}}
	jazz := &recommend.Track{ID: "j1", Genres: []string{"jazz"}}
	for i := 0; i < 4; i++ {
		s.Record(play("r1", 60, at), rock)
	}
	s.Record(play("j1", 60, at), jazz)

	if got, _ := s.GenrePopularity(ctx, "rock"); got != 1.0 {
		t.Errorf("rock popularity = %v, want 1.0", got)
	}
	if got, _ := s.GenrePopularity(ctx, "jazz"); got != 0.25 {
		t.Errorf("jazz popularity = %v, want 0.25", got)
	}
	if got, _ := s.GenrePopularity(ctx, "polka"); got != 0 {
		t.Errorf("unknown genre popularity = %v, want 0", got)
	}
}

func TestGenrePopularityEmpty(t *testing.T) {
	s := NewStore(zerolog.Nop())
	if got, err := s.GenrePopularity(context.Background(), "rock"); err != nil || got != 0 {
		t.Errorf("empty store popularity = %v, %v, want 0, nil", got, err)
	}
}
