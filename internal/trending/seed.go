// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package trending

import (
	"context"
	"math/rand"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Seed bootstraps the rollups from catalog popularity so the
// popularity and trending strategies have signal before real behavior
// arrives. Deterministic for a given seed.
func Seed(ctx context.Context, store *Store, catalog recommend.CatalogProvider, seed int64) error {
	tracks, err := catalog.AllTracks(ctx)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))
	now := time.Now()

	store.mu.Lock()
	defer store.mu.Unlock()

	for i := range tracks {
		t := &tracks[i]
		plays := int64(t.Popularity*10) + int64(rng.Intn(50))
		if plays == 0 {
			continue
		}
		skips := int64(float64(plays) * (0.05 + rng.Float64()*0.3))
		completions := int64(float64(plays) * (0.5 + rng.Float64()*0.45))

		// Newer releases get a velocity head start.
		recent := int64(0)
		if now.Sub(t.ReleaseDate) < 30*24*time.Hour {
			recent = plays / 10
		}

		store.stats[t.ID] = &trackStats{
			plays:       plays,
			skips:       skips,
			completions: completions,
			counter: slidingCounter{
				window:      velocityWindow,
				windowStart: now.Add(-velocityWindow / 2),
				current:     recent,
				previous:    recent / 2,
			},
			updatedAt: now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
		}
		for _, g := range t.Genres {
			store.genrePlays[g] += plays
		}
	}

	store.logger.Info().
		Int("tracks", len(tracks)).
		Int64("seed", seed).
		Msg("seeded trending rollups")
	return nil
}
