// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package trending maintains play-count, skip-rate and velocity rollups
// over the live behavior stream. It backs recommend.TrendingProvider.
//
// Velocity uses a two-bucket sliding window: plays land in the current
// bucket, the window rotates as time passes, and the previous bucket is
// weighted by its remaining overlap. This keeps per-track memory
// constant while still reacting to play-rate changes within a window.
package trending

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

const (
	// velocityWindow is the measurement window for play velocity.
	velocityWindow = 24 * time.Hour

	// completionSeconds is the listen duration that counts a play as
	// completed when track length is unknown.
	completionSeconds = 30
)

// slidingCounter is a two-bucket sliding window counter.
type slidingCounter struct {
	window      time.Duration
	windowStart time.Time
	current     int64
	previous    int64
}

func (c *slidingCounter) rotate(now time.Time) {
	if c.windowStart.IsZero() {
		c.windowStart = now
		return
	}
	elapsed := now.Sub(c.windowStart)
	switch {
	case elapsed >= 2*c.window:
		c.previous = 0
		c.current = 0
		c.windowStart = now
	case elapsed >= c.window:
		c.previous = c.current
		c.current = 0
		c.windowStart = c.windowStart.Add(c.window)
	}
}

func (c *slidingCounter) incr(now time.Time) {
	c.rotate(now)
	c.current++
}

// weightedRate estimates plays per window, blending the previous
// bucket by its remaining overlap with the lookback window.
func (c *slidingCounter) weightedRate(now time.Time) float64 {
	c.rotate(now)
	if c.windowStart.IsZero() {
		return 0
	}
	frac := float64(now.Sub(c.windowStart)) / float64(c.window)
	if frac > 1 {
		frac = 1
	}
	return float64(c.previous)*(1-frac) + float64(c.current)
}

// trackStats accumulates rollups for a single track.
type trackStats struct {
	plays       int64
	skips       int64
	completions int64
	counter     slidingCounter
	updatedAt   time.Time
}

// Store is a thread-safe in-memory rollup store.
type Store struct {
	mu         sync.RWMutex
	stats      map[string]*trackStats
	genrePlays map[string]int64
	logger     zerolog.Logger
	now        func() time.Time
}

// NewStore creates an empty rollup store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		stats:      make(map[string]*trackStats),
		genrePlays: make(map[string]int64),
		logger:     logger.With().Str("component", "trending").Logger(),
	}
}

// Record folds a behavior event into the rollups. The track is used
// for genre attribution and completion detection; nil is tolerated.
func (s *Store) Record(b recommend.UserBehavior, track *recommend.Track) {
	now := b.Timestamp
	if now.IsZero() {
		now = s.clock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[b.TrackID]
	if !ok {
		st = &trackStats{counter: slidingCounter{window: velocityWindow}}
		s.stats[b.TrackID] = st
	}
	st.updatedAt = now

	switch b.Action {
	case recommend.ActionPlay:
		st.plays++
		st.counter.incr(now)
		if completed(b, track) {
			st.completions++
		}
		if track != nil {
			for _, g := range track.Genres {
				s.genrePlays[g]++
			}
		}
	case recommend.ActionSkip:
		st.skips++
	case recommend.ActionLike, recommend.ActionShare, recommend.ActionAddToPlaylist:
		// Engagement without a play does not move the rollups.
	}
}

func completed(b recommend.UserBehavior, track *recommend.Track) bool {
	if track != nil && track.DurationSeconds > 0 {
		return float64(b.ListenDuration) >= 0.8*float64(track.DurationSeconds)
	}
	return b.ListenDuration >= completionSeconds
}

// PopularTracks returns the top n tracks by play count.
func (s *Store) PopularTracks(_ context.Context, n int) ([]recommend.PopularTrack, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}

	s.mu.RLock()
	out := make([]recommend.PopularTrack, 0, len(s.stats))
	for id, st := range s.stats {
		if st.plays == 0 {
			continue
		}
		out = append(out, recommend.PopularTrack{
			TrackID:        id,
			PlayCount:      st.plays,
			SkipRate:       ratio(st.skips, st.plays),
			CompletionRate: ratio(st.completions, st.plays),
			UpdatedAt:      st.updatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayCount != out[j].PlayCount {
			return out[i].PlayCount > out[j].PlayCount
		}
		return out[i].TrackID < out[j].TrackID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// TrendingTracks returns the top n tracks by play velocity, normalized
// so the fastest-growing track scores 1.0.
func (s *Store) TrendingTracks(_ context.Context, n int) ([]recommend.TrendingTrack, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}
	now := s.clock()

	s.mu.Lock()
	type rawVelocity struct {
		trackID string
		rate    float64
	}
	raw := make([]rawVelocity, 0, len(s.stats))
	maxRate := 0.0
	for id, st := range s.stats {
		rate := st.counter.weightedRate(now)
		if rate <= 0 {
			continue
		}
		if rate > maxRate {
			maxRate = rate
		}
		raw = append(raw, rawVelocity{trackID: id, rate: rate})
	}
	s.mu.Unlock()

	out := make([]recommend.TrendingTrack, 0, len(raw))
	for _, r := range raw {
		out = append(out, recommend.TrendingTrack{
			TrackID:     r.trackID,
			Velocity:    r.rate / maxRate,
			WindowHours: int(velocityWindow.Hours()),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Velocity != out[j].Velocity {
			return out[i].Velocity > out[j].Velocity
		}
		return out[i].TrackID < out[j].TrackID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// GenrePopularity returns the genre's share of plays relative to the
// most-played genre, in [0, 1].
func (s *Store) GenrePopularity(_ context.Context, genre string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for _, plays := range s.genrePlays {
		if plays > max {
			max = plays
		}
	}
	if max == 0 {
		return 0, nil
	}
	return float64(s.genrePlays[genre]) / float64(max), nil
}

// SetClock overrides the store clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

var _ recommend.TrendingProvider = (*Store)(nil)
