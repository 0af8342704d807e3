// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package catalog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func TestAddAndLookup(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()

	s.Add(recommend.Track{ID: "t1", Title: "One", Genres: []string{"Rock"}},
		&recommend.TrackFeatures{Energy: 0.8})

	tr, err := s.Track(ctx, "t1")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if tr == nil || tr.Title != "One" {
		t.Fatalf("Track(t1) = %+v, want title One", tr)
	}

	f, err := s.Features(ctx, "t1")
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	if f == nil || f.Energy != 0.8 {
		t.Fatalf("Features(t1) = %+v, want energy 0.8", f)
	}
	if f.TrackID != "t1" {
		t.Errorf("feature TrackID = %q, want t1 (set on add)", f.TrackID)
	}

	missing, err := s.Track(ctx, "ghost")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if missing != nil {
		t.Error("unknown track should be nil")
	}
}

func TestTracksByGenres(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()

	s.Add(recommend.Track{ID: "r1", Genres: []string{"Rock"}}, nil)
	s.Add(recommend.Track{ID: "r2", Genres: []string{"rock", "indie"}}, nil)
	s.Add(recommend.Track{ID: "j1", Genres: []string{"jazz"}}, nil)

	t.Run("case insensitive", func(t *testing.T) {
		got, err := s.TracksByGenres(ctx, []string{"ROCK"})
		if err != nil {
			t.Fatalf("by genres: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d rock tracks, want 2", len(got))
		}
	})

	t.Run("dedupes across genres", func(t *testing.T) {
		got, err := s.TracksByGenres(ctx, []string{"rock", "indie"})
		if err != nil {
			t.Fatalf("by genres: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d tracks, want 2 (r2 counted once)", len(got))
		}
	})

	t.Run("unknown genre", func(t *testing.T) {
		got, err := s.TracksByGenres(ctx, []string{"polka"})
		if err != nil {
			t.Fatalf("by genres: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d tracks for unknown genre", len(got))
		}
	})
}

func TestReplaceTrack(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()

	s.Add(recommend.Track{ID: "t1", Genres: []string{"rock"}}, nil)
	s.Add(recommend.Track{ID: "t1", Genres: []string{"jazz"}}, nil)

	if s.Count() != 1 {
		t.Errorf("count = %d, want 1 after replace", s.Count())
	}
	rock, _ := s.TracksByGenres(ctx, []string{"rock"})
	if len(rock) != 0 {
		t.Error("stale genre index entry after replace")
	}
	jazz, _ := s.TracksByGenres(ctx, []string{"jazz"})
	if len(jazz) != 1 {
		t.Error("replaced track missing from new genre index")
	}
}

func TestLoadBulk(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()

	s.Load(
		[]recommend.Track{{ID: "t1"}, {ID: "t2"}},
		[]recommend.TrackFeatures{{TrackID: "t2", Valence: 0.4}},
	)

	if s.Count() != 2 {
		t.Errorf("count = %d, want 2", s.Count())
	}
	feats, err := s.AllFeatures(ctx)
	if err != nil {
		t.Fatalf("all features: %v", err)
	}
	if len(feats) != 1 {
		t.Errorf("got %d feature vectors, want 1", len(feats))
	}
}

func TestAllTracksInsertionOrder(t *testing.T) {
	s := NewStore(zerolog.Nop())
	ctx := context.Background()

	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		s.Add(recommend.Track{ID: id}, nil)
	}
	got, err := s.AllTracks(ctx)
	if err != nil {
		t.Fatalf("all tracks: %v", err)
	}
	for i, id := range ids {
		if got[i].ID != id {
			t.Errorf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestSeedDeterministic(t *testing.T) {
	a := NewStore(zerolog.Nop())
	b := NewStore(zerolog.Nop())
	Seed(a, 100, 42)
	Seed(b, 100, 42)

	if a.Count() != 100 || b.Count() != 100 {
		t.Fatalf("counts = %d/%d, want 100 each", a.Count(), b.Count())
	}

	ctx := context.Background()
	ta, _ := a.AllTracks(ctx)
	tb, _ := b.AllTracks(ctx)
	for i := range ta {
		if ta[i].ID != tb[i].ID || ta[i].Title != tb[i].Title {
			t.Fatalf("seeded catalogs diverge at %d: %q vs %q", i, ta[i].ID, tb[i].ID)
		}
	}

	// Every seeded track carries a feature vector.
	feats, _ := a.AllFeatures(ctx)
	if len(feats) != 100 {
		t.Errorf("got %d feature vectors, want 100", len(feats))
	}
}
