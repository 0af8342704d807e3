// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func newTimeCtx(t *testing.T) *TimeContextualStrategy {
	t.Helper()
	s := NewTimeContextualStrategy(zerolog.Nop())
	data := recommend.TrainingData{
		Tracks: []recommend.Track{
			{ID: "amb1", Genres: []string{"ambient"}},
			{ID: "amb2", Genres: []string{"Ambient"}},
			{ID: "pop1", Genres: []string{"pop"}},
			{ID: "metal1", Genres: []string{"metal"}},
		},
		Features: []recommend.TrackFeatures{
			{TrackID: "amb1", Energy: 0.2},
			{TrackID: "amb2", Energy: 0.6},
			{TrackID: "pop1", Energy: 0.7},
			{TrackID: "metal1", Energy: 0.95},
		},
	}
	if err := s.Train(context.Background(), data); err != nil {
		t.Fatalf("train: %v", err)
	}
	return s
}

func TestTimeContextualDefaults(t *testing.T) {
	s := newTimeCtx(t)

	// No profile: night defaults prefer ambient at low energy.
	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 10},
		nil, recommend.Context{TimeOfDay: recommend.TimeNight})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(scores) == 0 {
		t.Fatal("expected recommendations")
	}
	if scores[0].TrackID != "amb1" {
		t.Errorf("top night track = %q, want amb1 (closest to target energy)", scores[0].TrackID)
	}
	for _, sc := range scores {
		if sc.TrackID == "metal1" {
			t.Error("metal is not in the night genre defaults")
		}
	}
}

func TestTimeContextualProfilePrefs(t *testing.T) {
	s := newTimeCtx(t)

	prof := &recommend.UserProfile{
		UserID: "u1",
		TimePrefs: map[recommend.TimeOfDay]recommend.TimePreference{
			recommend.TimeNight: {Genres: []string{"metal"}, Energy: 0.9},
		},
	}
	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 10},
		prof, recommend.Context{TimeOfDay: recommend.TimeNight})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(scores) != 1 || scores[0].TrackID != "metal1" {
		t.Errorf("profile prefs should override defaults, got %v", scores)
	}
}

func TestTimeContextualGenreCaseInsensitive(t *testing.T) {
	s := newTimeCtx(t)

	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 10},
		nil, recommend.Context{TimeOfDay: recommend.TimeNight})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	found := false
	for _, sc := range scores {
		if sc.TrackID == "amb2" {
			found = true
		}
	}
	if !found {
		t.Error("genre matching should be case-insensitive; amb2 missing")
	}
}

func TestTimeContextualUnknownSlotFallsBack(t *testing.T) {
	s := newTimeCtx(t)

	scores, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1", Limit: 10},
		nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	// Afternoon defaults include pop.
	found := false
	for _, sc := range scores {
		if sc.TrackID == "pop1" {
			found = true
		}
	}
	if !found {
		t.Error("empty time slot should fall back to afternoon defaults")
	}
}
