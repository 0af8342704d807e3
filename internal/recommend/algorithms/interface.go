// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package algorithms implements the recommendation strategies dispatched
// by the engine.
//
// Each strategy implements the recommend.Strategy interface and can be
// registered with the recommendation engine.
//
// # Strategy Categories
//
//   - Collaborative: user-user similarity over the interaction matrix
//   - Content-Based: genre, artist and audio-feature affinity
//   - Popularity: catalog-wide play statistics
//   - Contextual: time-of-day and mood matching
//
// # Thread Safety
//
// All strategies are safe for concurrent use. Training acquires an
// exclusive lock while scoring uses a shared lock.
package algorithms

import (
	"sort"
	"sync"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// BaseStrategy provides common functionality for all strategies.
type BaseStrategy struct {
	algo    recommend.Algorithm
	trained bool
	mu      sync.RWMutex
}

// NewBaseStrategy creates a base strategy for the given algorithm.
func NewBaseStrategy(algo recommend.Algorithm) BaseStrategy {
	return BaseStrategy{algo: algo}
}

// Algorithm returns the strategy identifier.
func (b *BaseStrategy) Algorithm() recommend.Algorithm {
	return b.algo
}

// IsTrained reports whether the strategy has been trained.
func (b *BaseStrategy) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// markTrained updates the trained state.
// Must be called while holding the training lock.
func (b *BaseStrategy) markTrained() {
	b.trained = true
}

func (b *BaseStrategy) acquireTrainLock() { b.mu.Lock() }
func (b *BaseStrategy) releaseTrainLock() { b.mu.Unlock() }
func (b *BaseStrategy) acquireScoreLock() { b.mu.RLock() }
func (b *BaseStrategy) releaseScoreLock() { b.mu.RUnlock() }

// normalizeScores normalizes scores to [0, 1] using min-max scaling.
// All-equal inputs normalize to 0.5.
func normalizeScores(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	var minScore, maxScore float64
	first := true
	for _, score := range scores {
		if first {
			minScore, maxScore = score, score
			first = false
			continue
		}
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	rang := maxScore - minScore
	if rang == 0 {
		for id := range scores {
			scores[id] = 0.5
		}
		return scores
	}

	for id, score := range scores {
		scores[id] = (score - minScore) / rang
	}
	return scores
}

// clamp01 clamps a score to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sortByScore orders scores descending, breaking ties by track ID for
// deterministic output.
func sortByScore(scores []recommend.Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TrackID < scores[j].TrackID
	})
}

// truncate caps a score list at limit. Zero or negative limits leave the
// list unchanged.
func truncate(scores []recommend.Score, limit int) []recommend.Score {
	if limit > 0 && len(scores) > limit {
		return scores[:limit]
	}
	return scores
}

// withinDays reports whether t falls within the last n days of now.
func withinDays(t, now time.Time, n int) bool {
	if t.IsZero() {
		return false
	}
	return now.Sub(t) < time.Duration(n)*24*time.Hour
}
