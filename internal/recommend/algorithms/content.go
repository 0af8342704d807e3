// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
)

// Sub-scorer expansion limits and boosts.
const (
	topGenres          = 5
	similarPerGenre    = 3
	topArtists         = 10
	similarPerArtist   = 5
	candidateFactor    = 1.5 // candidate cap multiplier per sub-scorer
	recencyBoost       = 1.2
	timeOfDayBoost     = 1.1
	exactArtistBoost   = 1.3
	followedBoost      = 1.2
	recentArtistBoost  = 1.1
	genreRecencyDays   = 7
	artistRecencyDays  = 3
	favoriteDiversity  = 0.2
	discoveryDiversity = 0.8

	defaultSubScorerLimit = 20
)

// ContentStrategy blends genre-preference, artist-preference and
// audio-feature recommendations into one ranked list.
//
// Each sub-scorer produces candidates capped at ceil(limit*1.5); the
// final blend sums genre*0.40 + artist*0.35 + feature*0.25 per track
// and concatenates reasons across contributing sources.
type ContentStrategy struct {
	BaseStrategy
	cfg      recommend.ContentBasedConfig
	analyzer *analysis.Analyzer
	logger   zerolog.Logger

	// Trained model
	tracks   []recommend.Track
	byID     map[string]int
	byGenre  map[string][]int
	byArtist map[string][]int
	features map[string]recommend.TrackFeatures

	now func() time.Time
}

// NewContentStrategy creates an untrained content-based strategy.
func NewContentStrategy(cfg recommend.ContentBasedConfig, analyzer *analysis.Analyzer, logger zerolog.Logger) *ContentStrategy {
	return &ContentStrategy{
		BaseStrategy: NewBaseStrategy(recommend.AlgorithmContentBased),
		cfg:          cfg,
		analyzer:     analyzer,
		logger:       logger.With().Str("strategy", "content").Logger(),
		now:          time.Now,
	}
}

// Train snapshots the catalog and builds genre and artist indexes.
func (s *ContentStrategy) Train(ctx context.Context, data recommend.TrainingData) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("content training cancelled: %w", err)
	}

	tracks := make([]recommend.Track, len(data.Tracks))
	copy(tracks, data.Tracks)

	byID := make(map[string]int, len(tracks))
	byGenre := make(map[string][]int)
	byArtist := make(map[string][]int)
	for i := range tracks {
		byID[tracks[i].ID] = i
		for _, g := range tracks[i].Genres {
			key := strings.ToLower(g)
			byGenre[key] = append(byGenre[key], i)
		}
		byArtist[tracks[i].ArtistID] = append(byArtist[tracks[i].ArtistID], i)
	}

	features := make(map[string]recommend.TrackFeatures, len(data.Features))
	for _, f := range data.Features {
		features[f.TrackID] = f
	}

	s.acquireTrainLock()
	s.tracks = tracks
	s.byID = byID
	s.byGenre = byGenre
	s.byArtist = byArtist
	s.features = features
	s.markTrained()
	s.releaseTrainLock()

	s.logger.Info().
		Int("tracks", len(tracks)).
		Int("genres", len(byGenre)).
		Int("artists", len(byArtist)).
		Msg("content strategy trained")
	return nil
}

// Recommend combines the three sub-scorers with the configured blend
// weights, summing scores and concatenating reasons per track.
func (s *ContentStrategy) Recommend(ctx context.Context, req *recommend.Request, prof *recommend.UserProfile, rctx recommend.Context) ([]recommend.Score, error) {
	if !s.IsTrained() {
		return nil, fmt.Errorf("content strategy not trained")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if prof == nil {
		return []recommend.Score{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSubScorerLimit
	}
	maxCandidates := int(math.Ceil(float64(limit) * candidateFactor))

	s.acquireScoreLock()
	defer s.releaseScoreLock()

	genreScores := s.genreBased(req, prof, rctx, maxCandidates)
	artistScores := s.artistBased(req, prof, maxCandidates)
	featureScores := s.featureBased(req, prof, rctx, maxCandidates)

	type blended struct {
		score   float64
		reasons []recommend.Reason
	}
	combined := make(map[string]*blended)
	merge := func(scores []recommend.Score, weight float64) {
		for i := range scores {
			sc := &scores[i]
			b, ok := combined[sc.TrackID]
			if !ok {
				b = &blended{}
				combined[sc.TrackID] = b
			}
			b.score += sc.Score * weight
			b.reasons = append(b.reasons, sc.Reasons...)
		}
	}
	merge(genreScores, s.cfg.GenreWeight)
	merge(artistScores, s.cfg.ArtistWeight)
	merge(featureScores, s.cfg.FeatureWeight)

	now := s.now()
	out := make([]recommend.Score, 0, len(combined))
	for trackID, b := range combined {
		out = append(out, recommend.Score{
			TrackID:   trackID,
			Score:     b.score,
			Reasons:   b.reasons,
			Algorithm: recommend.AlgorithmContentBased.String(),
			Freshness: s.trackFreshness(trackID, now),
			Diversity: s.trackDiversity(trackID, prof),
		})
	}

	sortByScore(out)
	return truncate(out, limit), nil
}

// genreBased scores tracks from the user's top genres and their
// neighbors in the genre affinity table.
func (s *ContentStrategy) genreBased(req *recommend.Request, prof *recommend.UserProfile, rctx recommend.Context, maxCandidates int) []recommend.Score {
	now := s.now()
	todGenres := make(map[string]struct{})
	if tp, ok := prof.TimePrefs[rctx.TimeOfDay]; ok {
		for _, g := range tp.Genres {
			todGenres[strings.ToLower(g)] = struct{}{}
		}
	}

	favorites := prof.FavoriteGenres
	if len(favorites) > topGenres {
		favorites = favorites[:topGenres]
	}

	best := make(map[string]float64)
	reasons := make(map[string]recommend.Reason)
	consider := func(genre string, base float64, pref *recommend.GenrePreference) {
		for _, idx := range s.byGenre[strings.ToLower(genre)] {
			t := &s.tracks[idx]
			if req.Excluded(t.ID) {
				continue
			}
			score := base
			if withinDays(pref.LastActivity, now, genreRecencyDays) {
				score *= recencyBoost
			}
			if _, ok := todGenres[strings.ToLower(genre)]; ok {
				score *= timeOfDayBoost
			}
			score = clamp01(score)
			if score > best[t.ID] {
				best[t.ID] = score
				reasons[t.ID] = recommend.Reason{
					Type:        recommend.ReasonGenreMatch,
					Weight:      score,
					Explanation: fmt.Sprintf("Because you listen to %s", pref.Genre),
					Metadata:    map[string]string{"genre": genre},
				}
			}
		}
	}

	for i := range favorites {
		pref := &favorites[i]
		consider(pref.Genre, pref.Score, pref)
		for _, sim := range s.analyzer.SimilarGenres(pref.Genre, similarPerGenre) {
			consider(sim.ID, pref.Score*sim.Score, pref)
		}
	}

	return collectCapped(best, reasons, maxCandidates)
}

// artistBased scores tracks from the user's top artists and artists
// similar to them.
func (s *ContentStrategy) artistBased(req *recommend.Request, prof *recommend.UserProfile, maxCandidates int) []recommend.Score {
	now := s.now()
	favorites := prof.FavoriteArtists
	if len(favorites) > topArtists {
		favorites = favorites[:topArtists]
	}

	best := make(map[string]float64)
	reasons := make(map[string]recommend.Reason)
	consider := func(artistID string, base float64, pref *recommend.ArtistPreference, exact bool) {
		for _, idx := range s.byArtist[artistID] {
			t := &s.tracks[idx]
			if req.Excluded(t.ID) {
				continue
			}
			score := base
			if exact {
				score *= exactArtistBoost
			}
			if pref.Followed {
				score *= followedBoost
			}
			if withinDays(pref.LastPlayed, now, artistRecencyDays) {
				score *= recentArtistBoost
			}
			score = clamp01(score)
			if score > best[t.ID] {
				best[t.ID] = score
				reasons[t.ID] = recommend.Reason{
					Type:        recommend.ReasonArtistMatch,
					Weight:      score,
					Explanation: fmt.Sprintf("Because you listen to %s", pref.Name),
					Metadata:    map[string]string{"artist": pref.Name},
				}
			}
		}
	}

	for i := range favorites {
		pref := &favorites[i]
		consider(pref.ArtistID, pref.Score, pref, true)
		for _, sim := range s.analyzer.SimilarArtists(pref.ArtistID, similarPerArtist) {
			consider(sim.ID, pref.Score*sim.Score, pref, false)
		}
	}

	return collectCapped(best, reasons, maxCandidates)
}

// featureBased scans all tracks and scores them by proximity to the
// user's preferred audio feature values, contextually adjusted for the
// requested mood or activity. Candidates at or below the floor are
// dropped.
func (s *ContentStrategy) featureBased(req *recommend.Request, prof *recommend.UserProfile, rctx recommend.Context, maxCandidates int) []recommend.Score {
	prefs := &prof.FeaturePrefs

	best := make(map[string]float64)
	reasons := make(map[string]recommend.Reason)
	for i := range s.tracks {
		t := &s.tracks[i]
		if req.Excluded(t.ID) {
			continue
		}
		f, ok := s.features[t.ID]
		if !ok {
			continue
		}

		score := featureMatch(prefs, &f) * contextAdjustment(&f, rctx)
		if score <= s.cfg.FeatureFloor {
			continue
		}
		score = clamp01(score)
		if score > best[t.ID] {
			best[t.ID] = score
			reasons[t.ID] = recommend.Reason{
				Type:        recommend.ReasonAudioFeatures,
				Weight:      score,
				Explanation: "Matches the sound you usually play",
			}
		}
	}

	return collectCapped(best, reasons, maxCandidates)
}

// featureMatch is the mean per-feature similarity over the four core
// features.
func featureMatch(prefs *recommend.FeaturePreferences, f *recommend.TrackFeatures) float64 {
	sum := (1 - math.Abs(prefs.Danceability-f.Danceability)) +
		(1 - math.Abs(prefs.Energy-f.Energy)) +
		(1 - math.Abs(prefs.Valence-f.Valence)) +
		(1 - math.Abs(prefs.Acousticness-f.Acousticness))
	return sum / 4
}

// contextAdjustment maps mood or activity proximity into a 0.8-1.2x
// multiplier. Requests without a mood or activity hint are unadjusted.
func contextAdjustment(f *recommend.TrackFeatures, rctx recommend.Context) float64 {
	hint := rctx.Mood
	if hint == "" {
		hint = rctx.Activity
	}
	if hint == "" {
		return 1.0
	}
	return 0.8 + 0.4*analysis.MoodMatch(f, hint)
}

// trackDiversity measures how far a candidate sits from the user's
// established preferences. Genre overlap dominates when available; the
// feature distance stands in otherwise.
func (s *ContentStrategy) trackDiversity(trackID string, prof *recommend.UserProfile) float64 {
	idx, ok := s.byID[trackID]
	if !ok {
		return 0.5
	}
	track := &s.tracks[idx]

	for i := range prof.FavoriteArtists {
		if prof.FavoriteArtists[i].ArtistID == track.ArtistID {
			return favoriteDiversity
		}
	}

	if len(track.Genres) > 0 && len(prof.FavoriteGenres) > 0 {
		favorites := make(map[string]struct{}, len(prof.FavoriteGenres))
		for _, g := range prof.FavoriteGenres {
			favorites[strings.ToLower(g.Genre)] = struct{}{}
		}
		overlap := 0
		for _, g := range track.Genres {
			if _, ok := favorites[strings.ToLower(g)]; ok {
				overlap++
			}
		}
		return 1.0 - float64(overlap)/float64(len(track.Genres))
	}

	if f, ok := s.features[trackID]; ok {
		p := &prof.FeaturePrefs
		diff := math.Abs(p.Danceability-f.Danceability) +
			math.Abs(p.Energy-f.Energy) +
			math.Abs(p.Valence-f.Valence) +
			math.Abs(p.Acousticness-f.Acousticness)
		return diff / 4
	}
	return discoveryDiversity
}

func (s *ContentStrategy) trackFreshness(trackID string, now time.Time) float64 {
	if idx, ok := s.byID[trackID]; ok {
		return recommend.FreshnessScore(s.tracks[idx].ReleaseDate, now)
	}
	return 0.5
}

// collectCapped materializes a score map into a sorted, capped list.
func collectCapped(best map[string]float64, reasons map[string]recommend.Reason, maxCandidates int) []recommend.Score {
	out := make([]recommend.Score, 0, len(best))
	for trackID, score := range best {
		out = append(out, recommend.Score{
			TrackID: trackID,
			Score:   score,
			Reasons: []recommend.Reason{reasons[trackID]},
		})
	}
	sortByScore(out)
	return truncate(out, maxCandidates)
}

var _ recommend.Strategy = (*ContentStrategy)(nil)
