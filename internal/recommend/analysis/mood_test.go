// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package analysis

import (
	"testing"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func TestMoodFromFeatures(t *testing.T) {
	t.Run("nil features", func(t *testing.T) {
		if got := MoodFromFeatures(nil); got != nil {
			t.Errorf("nil features = %v, want nil", got)
		}
	})

	t.Run("happy energetic", func(t *testing.T) {
		moods := MoodFromFeatures(&recommend.TrackFeatures{Valence: 0.9, Energy: 0.9, Danceability: 0.8})
		want := map[string]bool{"happy": true, "energetic": true, "danceable": true}
		for _, m := range moods {
			delete(want, m)
		}
		if len(want) != 0 {
			t.Errorf("missing moods %v in %v", want, moods)
		}
	})

	t.Run("sad calm", func(t *testing.T) {
		moods := MoodFromFeatures(&recommend.TrackFeatures{Valence: 0.1, Energy: 0.1})
		hasSad, hasCalm := false, false
		for _, m := range moods {
			switch m {
			case "sad":
				hasSad = true
			case "calm":
				hasCalm = true
			}
		}
		if !hasSad || !hasCalm {
			t.Errorf("moods = %v, want sad and calm present", moods)
		}
	})

	t.Run("neutral track has no moods", func(t *testing.T) {
		moods := MoodFromFeatures(&recommend.TrackFeatures{Valence: 0.5, Energy: 0.5, Danceability: 0.5})
		if len(moods) != 0 {
			t.Errorf("neutral features produced %v", moods)
		}
	})
}

func TestMoodMatch(t *testing.T) {
	t.Run("nil features score zero", func(t *testing.T) {
		if got := MoodMatch(nil, "happy"); got != 0 {
			t.Errorf("MoodMatch(nil) = %v, want 0", got)
		}
	})

	t.Run("unknown mood is neutral", func(t *testing.T) {
		f := &recommend.TrackFeatures{Valence: 0.5}
		if got := MoodMatch(f, "zorp"); got != 0.5 {
			t.Errorf("unknown mood = %v, want 0.5", got)
		}
	})

	t.Run("matching beats opposing", func(t *testing.T) {
		happy := &recommend.TrackFeatures{Valence: 0.9, Energy: 0.7}
		sad := &recommend.TrackFeatures{Valence: 0.1, Energy: 0.2}

		if MoodMatch(happy, "happy") <= MoodMatch(sad, "happy") {
			t.Error("happy track should outscore sad track for mood happy")
		}
		if MoodMatch(sad, "sad") <= MoodMatch(happy, "sad") {
			t.Error("sad track should outscore happy track for mood sad")
		}
	})

	t.Run("perfect match scores one", func(t *testing.T) {
		f := &recommend.TrackFeatures{Valence: 0.9, Energy: 0.7}
		if got := MoodMatch(f, "happy"); got != 1.0 {
			t.Errorf("exact target = %v, want 1.0", got)
		}
	})
}
