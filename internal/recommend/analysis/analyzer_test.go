// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func testFeatures() []recommend.TrackFeatures {
	return []recommend.TrackFeatures{
		{
			TrackID: "t1", Danceability: 0.8, Energy: 0.9, Valence: 0.8,
			Tempo: 128, Genres: []string{"electronic", "house"}, MoodTags: []string{"energetic"},
		},
		{
			TrackID: "t2", Danceability: 0.75, Energy: 0.85, Valence: 0.75,
			Tempo: 126, Genres: []string{"electronic", "techno"}, MoodTags: []string{"energetic"},
		},
		{
			TrackID: "t3", Danceability: 0.2, Energy: 0.15, Valence: 0.2,
			Acousticness: 0.9, Tempo: 70, Genres: []string{"folk"}, MoodTags: []string{"calm"},
		},
	}
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a := NewAnalyzer(zerolog.Nop())
	if err := a.Train(context.Background(), testFeatures()); err != nil {
		t.Fatalf("train: %v", err)
	}
	return a
}

func TestTrackSimilarity(t *testing.T) {
	a := newTestAnalyzer(t)

	t.Run("self similarity is one", func(t *testing.T) {
		if got := a.TrackSimilarity("t1", "t1"); got != 1.0 {
			t.Errorf("TrackSimilarity(t1, t1) = %v, want 1.0", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		ab := a.TrackSimilarity("t1", "t2")
		ba := a.TrackSimilarity("t2", "t1")
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
		}
	})

	t.Run("close tracks beat distant tracks", func(t *testing.T) {
		near := a.TrackSimilarity("t1", "t2")
		far := a.TrackSimilarity("t1", "t3")
		if near <= far {
			t.Errorf("similar tracks scored %v, dissimilar %v; want near > far", near, far)
		}
	})

	t.Run("missing track scores zero", func(t *testing.T) {
		if got := a.TrackSimilarity("t1", "ghost"); got != 0 {
			t.Errorf("TrackSimilarity with unknown track = %v, want 0", got)
		}
	})
}

func TestSimilarTracks(t *testing.T) {
	a := newTestAnalyzer(t)

	sims := a.SimilarTracks("t1", 10)
	if len(sims) != 2 {
		t.Fatalf("SimilarTracks returned %d results, want 2", len(sims))
	}
	if sims[0].ID != "t2" {
		t.Errorf("most similar to t1 is %q, want t2", sims[0].ID)
	}
	for i := 1; i < len(sims); i++ {
		if sims[i].Score > sims[i-1].Score {
			t.Errorf("results not sorted by score: %v before %v", sims[i-1].Score, sims[i].Score)
		}
	}

	if limited := a.SimilarTracks("t1", 1); len(limited) != 1 {
		t.Errorf("limit 1 returned %d results", len(limited))
	}
	if none := a.SimilarTracks("ghost", 10); none != nil {
		t.Errorf("unknown track returned %v, want nil", none)
	}
}

func TestTrackFeaturesLookup(t *testing.T) {
	a := newTestAnalyzer(t)

	f := a.TrackFeatures("t1")
	if f == nil {
		t.Fatal("TrackFeatures(t1) returned nil")
	}
	if f.Tempo != 128 {
		t.Errorf("Tempo = %v, want 128", f.Tempo)
	}

	// The returned vector is a copy.
	f.Tempo = 999
	if again := a.TrackFeatures("t1"); again.Tempo != 128 {
		t.Error("mutating the returned features changed the stored copy")
	}

	if a.TrackFeatures("ghost") != nil {
		t.Error("unknown track should return nil features")
	}
}

func TestPlaylistCoherence(t *testing.T) {
	a := newTestAnalyzer(t)

	t.Run("tight playlist scores higher", func(t *testing.T) {
		tight := a.PlaylistCoherence([]string{"t1", "t2"})
		mixed := a.PlaylistCoherence([]string{"t1", "t3"})
		if tight.CoherenceScore <= mixed.CoherenceScore {
			t.Errorf("tight playlist %v should beat mixed %v", tight.CoherenceScore, mixed.CoherenceScore)
		}
	})

	t.Run("dominant genres reflect members", func(t *testing.T) {
		rep := a.PlaylistCoherence([]string{"t1", "t2"})
		found := false
		for _, g := range rep.DominantGenres {
			if g == "electronic" {
				found = true
			}
		}
		if !found {
			t.Errorf("DominantGenres = %v, want electronic present", rep.DominantGenres)
		}
	})
}

func TestArtistSimilarity(t *testing.T) {
	a := newTestAnalyzer(t)

	if got := a.ArtistSimilarity("a1", "a1"); got != 1.0 {
		t.Errorf("same artist = %v, want 1.0", got)
	}

	a.SetArtistSimilarities(map[string]map[string]float64{
		"a1": {"a2": 0.83},
	})
	if got := a.ArtistSimilarity("a1", "a2"); got != 0.83 {
		t.Errorf("table lookup = %v, want 0.83", got)
	}

	// No table entry falls through to the deterministic pseudo score.
	first := a.ArtistSimilarity("a1", "a9")
	second := a.ArtistSimilarity("a1", "a9")
	if first != second {
		t.Errorf("pseudo similarity not deterministic: %v vs %v", first, second)
	}
	if first < 0 || first > 1 {
		t.Errorf("pseudo similarity %v out of [0, 1]", first)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1.0", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}

func TestSetOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"rock"}, nil, 0},
		{"disjoint", []string{"rock"}, []string{"jazz"}, 0},
		{"identical", []string{"rock", "pop"}, []string{"rock", "pop"}, 1.0},
		{"case insensitive", []string{"Rock"}, []string{"rock"}, 1.0},
		{"partial", []string{"rock", "pop"}, []string{"rock", "jazz"}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := setOverlap(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("setOverlap(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
