// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package catalog

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
)

// genreProfile centers the synthetic feature distribution for a genre
// so similarity scoring behaves plausibly on seeded data.
type genreProfile struct {
	genre        string
	related      []string
	energy       float64
	danceability float64
	valence      float64
	acousticness float64
	instrumental float64
	tempo        float64
}

var genreProfiles = []genreProfile{
	{genre: "pop", related: []string{"dance-pop", "indie"}, energy: 0.7, danceability: 0.7, valence: 0.7, acousticness: 0.2, instrumental: 0.05, tempo: 118},
	{genre: "rock", related: []string{"indie", "alternative"}, energy: 0.8, danceability: 0.5, valence: 0.55, acousticness: 0.15, instrumental: 0.1, tempo: 128},
	{genre: "hip-hop", related: []string{"r&b", "trap"}, energy: 0.7, danceability: 0.8, valence: 0.6, acousticness: 0.1, instrumental: 0.02, tempo: 95},
	{genre: "electronic", related: []string{"house", "techno"}, energy: 0.85, danceability: 0.8, valence: 0.6, acousticness: 0.05, instrumental: 0.7, tempo: 126},
	{genre: "jazz", related: []string{"blues", "soul"}, energy: 0.4, danceability: 0.45, valence: 0.55, acousticness: 0.7, instrumental: 0.6, tempo: 110},
	{genre: "r&b", related: []string{"soul", "hip-hop"}, energy: 0.55, danceability: 0.65, valence: 0.6, acousticness: 0.3, instrumental: 0.05, tempo: 90},
	{genre: "indie", related: []string{"rock", "folk"}, energy: 0.55, danceability: 0.5, valence: 0.5, acousticness: 0.45, instrumental: 0.15, tempo: 115},
	{genre: "classical", related: []string{"ambient"}, energy: 0.25, danceability: 0.2, valence: 0.45, acousticness: 0.9, instrumental: 0.95, tempo: 85},
	{genre: "ambient", related: []string{"classical", "electronic"}, energy: 0.2, danceability: 0.25, valence: 0.4, acousticness: 0.6, instrumental: 0.9, tempo: 75},
	{genre: "folk", related: []string{"indie", "country"}, energy: 0.4, danceability: 0.4, valence: 0.55, acousticness: 0.8, instrumental: 0.2, tempo: 100},
}

var titleWords = []string{
	"Midnight", "Golden", "Electric", "Velvet", "Neon", "Silver",
	"Echoes", "Horizon", "Gravity", "Rivers", "Embers", "Satellites",
	"Paper", "Wild", "Static", "Aurora", "Monsoon", "Harbor",
}

// Seed fills the store with a deterministic synthetic catalog of n
// tracks. The same seed always produces the same catalog.
func Seed(store *Store, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now()

	artistCount := n/8 + 1
	for i := 0; i < n; i++ {
		p := genreProfiles[rng.Intn(len(genreProfiles))]
		artistIdx := rng.Intn(artistCount)

		genres := []string{p.genre}
		if rng.Float64() < 0.5 && len(p.related) > 0 {
			genres = append(genres, p.related[rng.Intn(len(p.related))])
		}

		releaseDaysAgo := rng.Intn(5 * 365)
		track := recommend.Track{
			ID:              fmt.Sprintf("track-%04d", i),
			Title:           fmt.Sprintf("%s %s", titleWords[rng.Intn(len(titleWords))], titleWords[rng.Intn(len(titleWords))]),
			Artist:          fmt.Sprintf("Artist %03d", artistIdx),
			ArtistID:        fmt.Sprintf("artist-%03d", artistIdx),
			Album:           fmt.Sprintf("Album %03d", rng.Intn(artistCount*2)),
			DurationSeconds: 120 + rng.Intn(240),
			Genres:          genres,
			ReleaseDate:     now.AddDate(0, 0, -releaseDaysAgo),
			Popularity:      rng.Float64() * 100,
		}

		features := recommend.TrackFeatures{
			TrackID:          track.ID,
			Danceability:     jitter(rng, p.danceability),
			Energy:           jitter(rng, p.energy),
			Valence:          jitter(rng, p.valence),
			Acousticness:     jitter(rng, p.acousticness),
			Instrumentalness: jitter(rng, p.instrumental),
			Liveness:         clamp01(rng.Float64() * 0.5),
			Speechiness:      clamp01(rng.Float64() * 0.4),
			Tempo:            p.tempo + (rng.Float64()-0.5)*30,
			Loudness:         -20 + rng.Float64()*15,
			Mode:             rng.Intn(2),
			Key:              rng.Intn(12),
			Genres:           genres,
		}
		features.MoodTags = analysis.MoodFromFeatures(&features)

		store.Add(track, &features)
	}
	store.logger.Info().Int("tracks", n).Int64("seed", seed).Msg("seeded synthetic catalog")
}

// jitter perturbs a genre center by up to ±0.15, clamped to [0,1].
func jitter(rng *rand.Rand, center float64) float64 {
	return clamp01(center + (rng.Float64()-0.5)*0.3)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
