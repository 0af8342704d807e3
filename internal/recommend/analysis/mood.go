// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package analysis

import "github.com/cadenza-audio/cadenza/internal/recommend"

// MoodFromFeatures derives mood tags from an audio feature vector using
// fixed threshold rules. The result is deterministic for a given vector.
func MoodFromFeatures(f *recommend.TrackFeatures) []string {
	if f == nil {
		return nil
	}

	var moods []string

	switch {
	case f.Valence > 0.7:
		moods = append(moods, "happy", "uplifting", "positive")
	case f.Valence < 0.3:
		moods = append(moods, "melancholic", "sad")
	}

	switch {
	case f.Energy > 0.8:
		moods = append(moods, "energetic", "intense", "powerful")
	case f.Energy < 0.3:
		moods = append(moods, "calm", "peaceful")
	}

	if f.Danceability > 0.7 {
		moods = append(moods, "danceable", "groovy")
	}
	if f.Acousticness > 0.7 {
		moods = append(moods, "acoustic", "intimate")
	}
	if f.Instrumentalness > 0.7 {
		moods = append(moods, "instrumental", "focus")
	}

	return moods
}

// moodTargets maps a requested mood to its ideal feature values.
// Only the features present in the map constrain the match.
var moodTargets = map[string]map[string]float64{
	"happy":      {"valence": 0.9, "energy": 0.7},
	"sad":        {"valence": 0.1, "energy": 0.3},
	"energetic":  {"energy": 0.95, "danceability": 0.8},
	"calm":       {"energy": 0.15, "acousticness": 0.7},
	"focus":      {"instrumentalness": 0.9, "energy": 0.4},
	"romantic":   {"valence": 0.6, "acousticness": 0.6, "energy": 0.4},
	"party":      {"danceability": 0.95, "energy": 0.9},
	"melancholy": {"valence": 0.2, "acousticness": 0.5},
}

// MoodMatch scores how well a feature vector fits a requested mood in
// [0, 1]. Unknown moods score a neutral 0.5.
func MoodMatch(f *recommend.TrackFeatures, mood string) float64 {
	if f == nil {
		return 0
	}
	targets, ok := moodTargets[mood]
	if !ok {
		return 0.5
	}

	var sum float64
	for name, target := range targets {
		var value float64
		switch name {
		case "valence":
			value = f.Valence
		case "energy":
			value = f.Energy
		case "danceability":
			value = f.Danceability
		case "acousticness":
			value = f.Acousticness
		case "instrumentalness":
			value = f.Instrumentalness
		}
		diff := value - target
		if diff < 0 {
			diff = -diff
		}
		sum += 1.0 - diff
	}
	return sum / float64(len(targets))
}
