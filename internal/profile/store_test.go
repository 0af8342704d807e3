// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package profile

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/catalog"
	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func newTestStore(t *testing.T) (*Store, *catalog.Store) {
	t.Helper()
	cat := catalog.NewStore(zerolog.Nop())
	cat.Add(recommend.Track{ID: "t1", ArtistID: "a1", Artist: "Artist One", Genres: []string{"rock"}},
		&recommend.TrackFeatures{Energy: 0.8, Valence: 0.6})
	cat.Add(recommend.Track{ID: "t2", ArtistID: "a2", Artist: "Artist Two", Genres: []string{"jazz"}},
		&recommend.TrackFeatures{Energy: 0.3, Valence: 0.5})
	return NewStore(cat, zerolog.Nop()), cat
}

func TestProfileUnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p != nil {
		t.Errorf("unknown user profile = %+v, want nil", p)
	}
}

func TestRecordBehaviorFolds(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	like := recommend.UserBehavior{
		UserID: "u1", TrackID: "t1", Action: recommend.ActionLike,
		Timestamp: time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := s.RecordBehavior(ctx, like); err != nil {
		t.Fatalf("record: %v", err)
	}

	p, err := s.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p == nil {
		t.Fatal("profile should exist after a behavior")
	}

	if len(p.FavoriteGenres) != 1 || p.FavoriteGenres[0].Genre != "rock" {
		t.Fatalf("genres = %+v, want rock", p.FavoriteGenres)
	}
	if math.Abs(p.FavoriteGenres[0].Score-0.20) > 1e-9 {
		t.Errorf("like genre score = %v, want 0.20", p.FavoriteGenres[0].Score)
	}
	if len(p.FavoriteArtists) != 1 || p.FavoriteArtists[0].ArtistID != "a1" {
		t.Errorf("artists = %+v, want a1", p.FavoriteArtists)
	}
	if p.Version != 1 {
		t.Errorf("version = %d, want 1", p.Version)
	}
	// 9am lands in the morning slot.
	if _, ok := p.TimePrefs[recommend.TimeMorning]; !ok {
		t.Errorf("morning time pref missing: %+v", p.TimePrefs)
	}
}

func TestSkipPushesScoreDown(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionSkip}); err != nil {
		t.Fatalf("record: %v", err)
	}

	p, _ := s.Profile(ctx, "u1")
	want := 0.20 - 0.08
	if math.Abs(p.FavoriteGenres[0].Score-want) > 1e-9 {
		t.Errorf("score after like+skip = %v, want %v", p.FavoriteGenres[0].Score, want)
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}
}

func TestPlayStepScalesWithDuration(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordBehavior(ctx, recommend.UserBehavior{
		UserID: "short", TrackID: "t1", Action: recommend.ActionPlay, ListenDuration: 3,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordBehavior(ctx, recommend.UserBehavior{
		UserID: "full", TrackID: "t1", Action: recommend.ActionPlay, ListenDuration: 120,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	short, _ := s.Profile(ctx, "short")
	full, _ := s.Profile(ctx, "full")
	if short.FavoriteGenres[0].Score >= full.FavoriteGenres[0].Score {
		t.Errorf("3s play score %v should be below full play score %v",
			short.FavoriteGenres[0].Score, full.FavoriteGenres[0].Score)
	}
	if math.Abs(full.FavoriteGenres[0].Score-0.10) > 1e-9 {
		t.Errorf("full play score = %v, want 0.10", full.FavoriteGenres[0].Score)
	}
}

func TestGenresSortedByScore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Two jazz likes against one rock like.
	for _, b := range []recommend.UserBehavior{
		{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike},
		{UserID: "u1", TrackID: "t2", Action: recommend.ActionLike},
		{UserID: "u1", TrackID: "t2", Action: recommend.ActionLike},
	} {
		if err := s.RecordBehavior(ctx, b); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	p, _ := s.Profile(ctx, "u1")
	if p.FavoriteGenres[0].Genre != "jazz" {
		t.Errorf("top genre = %q, want jazz", p.FavoriteGenres[0].Genre)
	}
}

func TestFeaturePrefsTrackPositiveActionsOnly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionSkip}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p, _ := s.Profile(ctx, "u1")
	if p.FeaturePrefs.Energy != 0 {
		t.Errorf("skip should not move the feature EMA, energy = %v", p.FeaturePrefs.Energy)
	}

	if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p, _ = s.Profile(ctx, "u1")
	if math.Abs(p.FeaturePrefs.Energy-0.08) > 1e-9 {
		t.Errorf("energy EMA after one like = %v, want 0.08", p.FeaturePrefs.Energy)
	}
}

func TestProfileReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike}); err != nil {
		t.Fatalf("record: %v", err)
	}

	p, _ := s.Profile(ctx, "u1")
	p.FavoriteGenres[0].Score = 0.99

	again, _ := s.Profile(ctx, "u1")
	if again.FavoriteGenres[0].Score == 0.99 {
		t.Error("mutating the returned profile changed the stored copy")
	}
}

func TestRefreshProfile(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("no history", func(t *testing.T) {
		p, err := s.RefreshProfile(ctx, "nobody")
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if p != nil {
			t.Errorf("refresh with no history = %+v, want nil", p)
		}
	})

	t.Run("replays the log", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := s.RecordBehavior(ctx, recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike}); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
		before, _ := s.Profile(ctx, "u1")

		rebuilt, err := s.RefreshProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if rebuilt == nil {
			t.Fatal("refresh should return the rebuilt profile")
		}
		if rebuilt.Version != before.Version {
			t.Errorf("replayed version = %d, want %d", rebuilt.Version, before.Version)
		}
		if math.Abs(rebuilt.FavoriteGenres[0].Score-before.FavoriteGenres[0].Score) > 1e-9 {
			t.Errorf("replayed score = %v, want %v", rebuilt.FavoriteGenres[0].Score, before.FavoriteGenres[0].Score)
		}
	})
}

func TestBehaviorsSince(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		b := recommend.UserBehavior{
			UserID: "u1", TrackID: "t1", Action: recommend.ActionPlay,
			ListenDuration: 30, Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.RecordBehavior(ctx, b); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := s.Behaviors(ctx, time.Time{})
	if err != nil {
		t.Fatalf("behaviors: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d events, want 3", len(all))
	}

	recent, err := s.Behaviors(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("behaviors: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("got %d events since base+1h, want 2", len(recent))
	}
}
