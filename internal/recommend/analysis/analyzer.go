// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package analysis implements the content analyzer: the single source of
// track, artist and genre similarity, per-track audio feature lookup,
// mood extraction and playlist coherence scoring.
//
// # Thread Safety
//
// The analyzer is safe for concurrent use. Training acquires an
// exclusive lock while lookups use a shared lock. Cached track
// similarity rows are derived values and replaced wholesale, never
// mutated in place.
package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Track similarity component weights.
const (
	featureWeight = 0.50
	genreWeight   = 0.25
	tempoWeight   = 0.15
	moodWeight    = 0.10

	// tempoDecayBPM is the tempo difference at which tempo proximity
	// reaches zero.
	tempoDecayBPM = 100.0

	// defaultGenreAffinity is returned for genre pairs absent from the
	// affinity table.
	defaultGenreAffinity = 0.1
)

// Similarity pairs an entity ID with a similarity score.
type Similarity struct {
	// ID is the related entity identifier.
	ID string `json:"id"`

	// Score is the similarity in [0, 1].
	Score float64 `json:"score"`
}

// CoherenceReport summarizes how well a set of tracks fits together.
type CoherenceReport struct {
	// CoherenceScore is 1 minus twice the mean per-feature variance,
	// floored at zero.
	CoherenceScore float64 `json:"coherence_score"`

	// DominantGenres are the top genres by member frequency.
	DominantGenres []string `json:"dominant_genres"`

	// AverageFeatures is the mean audio feature vector of the members.
	AverageFeatures recommend.FeaturePreferences `json:"average_features"`

	// Recommendations are textual suggestions for improving the playlist.
	Recommendations []string `json:"recommendations"`
}

// Analyzer holds per-track audio feature vectors and pairwise similarity
// tables for tracks, artists and genres.
type Analyzer struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	features  map[string]recommend.TrackFeatures
	artistSim map[string]map[string]float64
	trackRows map[string][]Similarity
	trained   bool
}

// NewAnalyzer creates an analyzer with empty tables.
func NewAnalyzer(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		logger:    logger.With().Str("component", "content_analyzer").Logger(),
		features:  make(map[string]recommend.TrackFeatures),
		artistSim: make(map[string]map[string]float64),
		trackRows: make(map[string][]Similarity),
	}
}

// Train loads the feature table from a catalog snapshot. Cached track
// similarity rows are discarded and recomputed lazily.
func (a *Analyzer) Train(ctx context.Context, features []recommend.TrackFeatures) error {
	table := make(map[string]recommend.TrackFeatures, len(features))
	for i, f := range features {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("content analyzer training cancelled: %w", err)
			}
		}
		table[f.TrackID] = f
	}

	a.mu.Lock()
	a.features = table
	a.trackRows = make(map[string][]Similarity)
	a.trained = true
	a.mu.Unlock()

	a.logger.Info().Int("tracks", len(table)).Msg("content analyzer trained")
	return nil
}

// SetArtistSimilarities installs a precomputed artist similarity table.
// Pairs absent from the table fall back to a deterministic
// pseudo-similarity derived from the two IDs.
func (a *Analyzer) SetArtistSimilarities(table map[string]map[string]float64) {
	a.mu.Lock()
	a.artistSim = table
	a.mu.Unlock()
}

// IsTrained reports whether the feature table has been loaded.
func (a *Analyzer) IsTrained() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trained
}

// TrackFeatures returns the feature vector for a track, or nil if the
// track has not been analyzed. No side effects.
func (a *Analyzer) TrackFeatures(trackID string) *recommend.TrackFeatures {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.features[trackID]
	if !ok {
		return nil
	}
	return &f
}

// TrackIDs returns the IDs of all analyzed tracks, sorted for
// deterministic iteration.
func (a *Analyzer) TrackIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.features))
	for id := range a.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TrackSimilarity computes the similarity of two tracks in [0, 1].
// Returns 0 if either track's features are missing. Symmetric, and 1.0
// for a track compared with itself.
func (a *Analyzer) TrackSimilarity(trackA, trackB string) float64 {
	a.mu.RLock()
	fa, okA := a.features[trackA]
	fb, okB := a.features[trackB]
	a.mu.RUnlock()

	if !okA || !okB {
		return 0
	}
	if trackA == trackB {
		return 1.0
	}
	return similarity(&fa, &fb)
}

// similarity is the weighted blend of feature cosine, genre overlap,
// tempo proximity and mood overlap.
func similarity(fa, fb *recommend.TrackFeatures) float64 {
	va, vb := fa.Vector(), fb.Vector()
	cos := cosine(va[:], vb[:])
	genres := setOverlap(fa.Genres, fb.Genres)
	tempo := tempoProximity(fa.Tempo, fb.Tempo)
	moods := setOverlap(fa.MoodTags, fb.MoodTags)

	return featureWeight*cos + genreWeight*genres + tempoWeight*tempo + moodWeight*moods
}

// cosine computes cosine similarity between two equal-length vectors.
// Zero vectors yield zero similarity.
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// setOverlap computes Jaccard overlap of two tag sets, case-insensitive.
// Two empty sets are considered identical.
func setOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for s := range set {
		union[s] = struct{}{}
	}
	intersection := 0
	for _, s := range b {
		k := strings.ToLower(s)
		if _, ok := set[k]; ok {
			intersection++
		}
		union[k] = struct{}{}
	}
	return float64(intersection) / float64(len(union))
}

// tempoProximity decays linearly to zero over tempoDecayBPM.
func tempoProximity(a, b float64) float64 {
	diff := math.Abs(a - b)
	if diff >= tempoDecayBPM {
		return 0
	}
	return 1.0 - diff/tempoDecayBPM
}

// ArtistSimilarity returns the similarity of two artists in [0, 1].
// Looks up the installed table first, then falls back to a
// deterministic pseudo-similarity derived from a hash of both IDs.
// Real deployments install co-listening-derived tables instead.
func (a *Analyzer) ArtistSimilarity(artistA, artistB string) float64 {
	if artistA == artistB {
		return 1.0
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if row, ok := a.artistSim[artistA]; ok {
		if s, ok := row[artistB]; ok {
			return s
		}
	}
	if row, ok := a.artistSim[artistB]; ok {
		if s, ok := row[artistA]; ok {
			return s
		}
	}
	return pseudoSimilarity(artistA, artistB)
}

// pseudoSimilarity derives a stable value in [0, 0.8) from two IDs.
// Sorting the pair first keeps the result symmetric.
func pseudoSimilarity(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return float64(h.Sum32()%800) / 1000.0
}

// GenreSimilarity returns the similarity of two genres in [0, 1].
// Equal genres score 1.0; known pairs come from the affinity table;
// unknown pairs score a low default.
func (a *Analyzer) GenreSimilarity(genreA, genreB string) float64 {
	ga, gb := strings.ToLower(genreA), strings.ToLower(genreB)
	if ga == gb {
		return 1.0
	}
	if row, ok := genreAffinity[ga]; ok {
		if s, ok := row[gb]; ok {
			return s
		}
	}
	if row, ok := genreAffinity[gb]; ok {
		if s, ok := row[ga]; ok {
			return s
		}
	}
	return defaultGenreAffinity
}

// SimilarTracks returns up to limit tracks most similar to the given
// track, descending. Rows are computed lazily and cached until the next
// training run.
func (a *Analyzer) SimilarTracks(trackID string, limit int) []Similarity {
	a.mu.RLock()
	row, cached := a.trackRows[trackID]
	base, ok := a.features[trackID]
	a.mu.RUnlock()

	if !ok {
		return nil
	}

	if !cached {
		row = a.computeTrackRow(&base)
		a.mu.Lock()
		a.trackRows[trackID] = row
		a.mu.Unlock()
	}

	if limit > 0 && len(row) > limit {
		row = row[:limit]
	}
	out := make([]Similarity, len(row))
	copy(out, row)
	return out
}

// computeTrackRow scores every other track against base, descending.
func (a *Analyzer) computeTrackRow(base *recommend.TrackFeatures) []Similarity {
	a.mu.RLock()
	row := make([]Similarity, 0, len(a.features))
	for id, f := range a.features {
		if id == base.TrackID {
			continue
		}
		row = append(row, Similarity{ID: id, Score: similarity(base, &f)})
	}
	a.mu.RUnlock()

	sort.Slice(row, func(i, j int) bool {
		if row[i].Score != row[j].Score {
			return row[i].Score > row[j].Score
		}
		return row[i].ID < row[j].ID
	})
	return row
}

// SimilarArtists returns up to limit artists most similar to the given
// artist from the installed table, descending.
func (a *Analyzer) SimilarArtists(artistID string, limit int) []Similarity {
	a.mu.RLock()
	row := a.artistSim[artistID]
	out := make([]Similarity, 0, len(row))
	for id, s := range row {
		out = append(out, Similarity{ID: id, Score: s})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SimilarGenres returns up to limit genres most related to the given
// genre from the affinity table, descending.
func (a *Analyzer) SimilarGenres(genre string, limit int) []Similarity {
	g := strings.ToLower(genre)
	row := genreAffinity[g]
	out := make([]Similarity, 0, len(row))
	for other, s := range row {
		out = append(out, Similarity{ID: other, Score: s})
	}
	for other, affRow := range genreAffinity {
		if other == g {
			continue
		}
		if s, ok := affRow[g]; ok {
			if _, have := row[other]; !have {
				out = append(out, Similarity{ID: other, Score: s})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PlaylistCoherence analyzes how well a set of tracks fits together.
// Tracks without features are skipped.
func (a *Analyzer) PlaylistCoherence(trackIDs []string) CoherenceReport {
	a.mu.RLock()
	members := make([]recommend.TrackFeatures, 0, len(trackIDs))
	for _, id := range trackIDs {
		if f, ok := a.features[id]; ok {
			members = append(members, f)
		}
	}
	a.mu.RUnlock()

	if len(members) == 0 {
		return CoherenceReport{Recommendations: []string{"No analyzable tracks in this playlist."}}
	}

	// Coherence uses the four features listeners perceive most directly.
	dims := [4]func(*recommend.TrackFeatures) float64{
		func(f *recommend.TrackFeatures) float64 { return f.Danceability },
		func(f *recommend.TrackFeatures) float64 { return f.Energy },
		func(f *recommend.TrackFeatures) float64 { return f.Valence },
		func(f *recommend.TrackFeatures) float64 { return f.Acousticness },
	}
	var varianceSum float64
	for _, dim := range dims {
		varianceSum += variance(members, dim)
	}
	coherence := 1.0 - 2.0*(varianceSum/float64(len(dims)))
	if coherence < 0 {
		coherence = 0
	}

	report := CoherenceReport{
		CoherenceScore:  coherence,
		DominantGenres:  dominantGenres(members, 3),
		AverageFeatures: averageFeatures(members),
	}
	report.Recommendations = coherenceAdvice(coherence, report.DominantGenres)
	return report
}

func variance(members []recommend.TrackFeatures, dim func(*recommend.TrackFeatures) float64) float64 {
	var mean float64
	for i := range members {
		mean += dim(&members[i])
	}
	mean /= float64(len(members))

	var v float64
	for i := range members {
		d := dim(&members[i]) - mean
		v += d * d
	}
	return v / float64(len(members))
}

// dominantGenres returns the top n genres by member frequency.
func dominantGenres(members []recommend.TrackFeatures, n int) []string {
	counts := make(map[string]int)
	for i := range members {
		for _, g := range members[i].Genres {
			counts[strings.ToLower(g)]++
		}
	}
	genres := make([]string, 0, len(counts))
	for g := range counts {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		if counts[genres[i]] != counts[genres[j]] {
			return counts[genres[i]] > counts[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

func averageFeatures(members []recommend.TrackFeatures) recommend.FeaturePreferences {
	var avg recommend.FeaturePreferences
	for i := range members {
		f := &members[i]
		avg.Danceability += f.Danceability
		avg.Energy += f.Energy
		avg.Valence += f.Valence
		avg.Acousticness += f.Acousticness
		avg.Instrumentalness += f.Instrumentalness
		avg.Liveness += f.Liveness
		avg.Speechiness += f.Speechiness
	}
	n := float64(len(members))
	avg.Danceability /= n
	avg.Energy /= n
	avg.Valence /= n
	avg.Acousticness /= n
	avg.Instrumentalness /= n
	avg.Liveness /= n
	avg.Speechiness /= n
	return avg
}

func coherenceAdvice(coherence float64, dominant []string) []string {
	var advice []string
	switch {
	case coherence >= 0.8:
		advice = append(advice, "This playlist flows well; tracks share a consistent sound.")
	case coherence >= 0.5:
		advice = append(advice, "Moderately coherent; consider grouping tracks by energy for smoother transitions.")
	default:
		advice = append(advice, "Low coherence; consider splitting this playlist by mood or genre.")
	}
	if len(dominant) > 0 {
		advice = append(advice, fmt.Sprintf("Adding more %s tracks would reinforce the playlist's character.", dominant[0]))
	}
	return advice
}

// genreAffinity is the static genre affinity table. Entries are
// symmetric; lookups check both directions.
var genreAffinity = map[string]map[string]float64{
	"pop": {
		"dance":      0.8,
		"electronic": 0.6,
		"r&b":        0.6,
		"indie":      0.5,
		"rock":       0.4,
	},
	"rock": {
		"metal":       0.7,
		"punk":        0.7,
		"indie":       0.6,
		"alternative": 0.8,
		"blues":       0.5,
	},
	"jazz": {
		"blues":     0.7,
		"soul":      0.6,
		"funk":      0.6,
		"classical": 0.4,
		"r&b":       0.5,
	},
	"electronic": {
		"dance":   0.9,
		"house":   0.8,
		"techno":  0.8,
		"ambient": 0.5,
	},
	"hip-hop": {
		"rap":  0.9,
		"r&b":  0.7,
		"trap": 0.8,
		"funk": 0.5,
	},
	"classical": {
		"ambient":      0.4,
		"instrumental": 0.6,
		"soundtrack":   0.5,
	},
	"country": {
		"folk":      0.7,
		"blues":     0.5,
		"americana": 0.8,
	},
	"r&b": {
		"soul": 0.8,
		"funk": 0.6,
	},
	"folk": {
		"indie":    0.6,
		"acoustic": 0.7,
	},
	"ambient": {
		"chill":        0.8,
		"instrumental": 0.6,
	},
}
