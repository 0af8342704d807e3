// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package profile maintains per-user preference aggregates and the
// behavior event log. It backs the recommend.ProfileStore interface.
//
// Recording a behavior appends it to the log and folds it into the
// user's aggregates immediately, so profiles are always current
// without a batch job. RefreshProfile replays the log from scratch for
// a single user, which repairs any drift after aggregate logic changes.
package profile

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Aggregate update steps per behavior action. Positive actions pull
// preference scores and the feature EMA toward the track; skips push
// away.
const (
	playStep     = 0.10
	likeStep     = 0.20
	skipStep     = -0.08
	playlistStep = 0.15
	shareStep    = 0.20

	// featureAlpha is the EMA step for feature preferences.
	featureAlpha = 0.10

	// fullListenSeconds scales the play step by listen duration.
	fullListenSeconds = 30.0

	// maxTimeGenres caps the per-slot genre list.
	maxTimeGenres = 5
)

// Store is a thread-safe in-memory profile store.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*recommend.UserProfile
	log      []recommend.UserBehavior
	catalog  recommend.CatalogProvider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore creates a profile store. The catalog is used to resolve
// track genres, artists and features while folding behaviors.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(catalog recommend.CatalogProvider, logger zerolog.Logger) *Store {
	return &Store{
		profiles: make(map[string]*recommend.UserProfile),
		catalog:  catalog,
		logger:   logger.With().Str("component", "profile").Logger(),
		now:      time.Now,
	}
}

// Profile returns a copy of the user's profile, or nil if the user has
// no recorded history.
func (s *Store) Profile(_ context.Context, userID string) (*recommend.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

// RecordBehavior appends the event to the log and folds it into the
// user's aggregates.
func (s *Store) RecordBehavior(ctx context.Context, b recommend.UserBehavior) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = s.now()
	}

	track, err := s.catalog.Track(ctx, b.TrackID)
	if err != nil {
		return err
	}
	features, err := s.catalog.Features(ctx, b.TrackID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, b)
	p, ok := s.profiles[b.UserID]
	if !ok {
		p = &recommend.UserProfile{
			UserID:    b.UserID,
			TimePrefs: make(map[recommend.TimeOfDay]recommend.TimePreference),
		}
		s.profiles[b.UserID] = p
	}
	s.fold(p, &b, track, features)
	return nil
}

// RefreshProfile rebuilds the user's profile by replaying the log.
func (s *Store) RefreshProfile(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	s.mu.RLock()
	var events []recommend.UserBehavior
	for i := range s.log {
		if s.log[i].UserID == userID {
			events = append(events, s.log[i])
		}
	}
	s.mu.RUnlock()

	fresh := &recommend.UserProfile{
		UserID:    userID,
		TimePrefs: make(map[recommend.TimeOfDay]recommend.TimePreference),
	}
	for i := range events {
		b := &events[i]
		track, err := s.catalog.Track(ctx, b.TrackID)
		if err != nil {
			return nil, err
		}
		features, err := s.catalog.Features(ctx, b.TrackID)
		if err != nil {
			return nil, err
		}
		s.fold(fresh, b, track, features)
	}

	s.mu.Lock()
	if len(events) > 0 {
		s.profiles[userID] = fresh
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("user_id", userID).
		Int("events", len(events)).
		Msg("profile rebuilt")
	if len(events) == 0 {
		return nil, nil
	}
	return cloneProfile(fresh), nil
}

// Behaviors returns events recorded at or after since, oldest first.
func (s *Store) Behaviors(_ context.Context, since time.Time) ([]recommend.UserBehavior, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recommend.UserBehavior, 0, len(s.log))
	for i := range s.log {
		if !s.log[i].Timestamp.Before(since) {
			out = append(out, s.log[i])
		}
	}
	return out, nil
}

// fold applies one behavior to the profile aggregates. Caller holds
// s.mu when the profile is shared.
func (s *Store) fold(p *recommend.UserProfile, b *recommend.UserBehavior, track *recommend.Track, features *recommend.TrackFeatures) {
	step := actionStep(b)

	if track != nil {
		for _, genre := range track.Genres {
			foldGenre(p, genre, step, b.Timestamp)
		}
		foldArtist(p, track, step, b)
		foldTime(p, track, features, b.Timestamp)
	}
	if features != nil && step > 0 {
		foldFeatures(&p.FeaturePrefs, features)
	}

	p.Version++
	p.UpdatedAt = b.Timestamp
}

// actionStep maps a behavior to its aggregate step. Plays scale with
// listen duration so a three-second play barely registers.
func actionStep(b *recommend.UserBehavior) float64 {
	switch b.Action {
	case recommend.ActionPlay:
		frac := math.Min(1, float64(b.ListenDuration)/fullListenSeconds)
		return playStep * frac
	case recommend.ActionLike:
		return likeStep
	case recommend.ActionSkip:
		return skipStep
	case recommend.ActionAddToPlaylist:
		return playlistStep
	case recommend.ActionShare:
		return shareStep
	default:
		return 0
	}
}

func foldGenre(p *recommend.UserProfile, genre string, step float64, at time.Time) {
	for i := range p.FavoriteGenres {
		g := &p.FavoriteGenres[i]
		if g.Genre == genre {
			g.Score = clamp01(g.Score + step)
			g.PlayCount++
			g.LastActivity = at
			sortGenres(p)
			return
		}
	}
	p.FavoriteGenres = append(p.FavoriteGenres, recommend.GenrePreference{
		Genre:        genre,
		Score:        clamp01(step),
		PlayCount:    1,
		LastActivity: at,
	})
	sortGenres(p)
}

func foldArtist(p *recommend.UserProfile, track *recommend.Track, step float64, b *recommend.UserBehavior) {
	for i := range p.FavoriteArtists {
		a := &p.FavoriteArtists[i]
		if a.ArtistID == track.ArtistID {
			a.Score = clamp01(a.Score + step)
			a.PlayCount++
			if b.Action == recommend.ActionPlay {
				a.LastPlayed = b.Timestamp
			}
			sortArtists(p)
			return
		}
	}
	pref := recommend.ArtistPreference{
		ArtistID:  track.ArtistID,
		Name:      track.Artist,
		Score:     clamp01(step),
		PlayCount: 1,
	}
	if b.Action == recommend.ActionPlay {
		pref.LastPlayed = b.Timestamp
	}
	p.FavoriteArtists = append(p.FavoriteArtists, pref)
	sortArtists(p)
}

// foldFeatures moves the preference EMA toward the played track.
func foldFeatures(prefs *recommend.FeaturePreferences, f *recommend.TrackFeatures) {
	prefs.Danceability += featureAlpha * (f.Danceability - prefs.Danceability)
	prefs.Energy += featureAlpha * (f.Energy - prefs.Energy)
	prefs.Valence += featureAlpha * (f.Valence - prefs.Valence)
	prefs.Acousticness += featureAlpha * (f.Acousticness - prefs.Acousticness)
	prefs.Instrumentalness += featureAlpha * (f.Instrumentalness - prefs.Instrumentalness)
	prefs.Liveness += featureAlpha * (f.Liveness - prefs.Liveness)
	prefs.Speechiness += featureAlpha * (f.Speechiness - prefs.Speechiness)
}

// foldTime records what the user listens to in the event's time slot.
func foldTime(p *recommend.UserProfile, track *recommend.Track, features *recommend.TrackFeatures, at time.Time) {
	slot := recommend.TimeOfDayFromHour(at.Hour())
	pref := p.TimePrefs[slot]

	for _, genre := range track.Genres {
		if !containsString(pref.Genres, genre) {
			pref.Genres = append(pref.Genres, genre)
			if len(pref.Genres) > maxTimeGenres {
				pref.Genres = pref.Genres[1:]
			}
		}
	}
	if features != nil {
		if pref.Energy == 0 {
			pref.Energy = features.Energy
		} else {
			pref.Energy += featureAlpha * (features.Energy - pref.Energy)
		}
	}
	p.TimePrefs[slot] = pref
}

func sortGenres(p *recommend.UserProfile) {
	sort.SliceStable(p.FavoriteGenres, func(i, j int) bool {
		return p.FavoriteGenres[i].Score > p.FavoriteGenres[j].Score
	})
}

func sortArtists(p *recommend.UserProfile) {
	sort.SliceStable(p.FavoriteArtists, func(i, j int) bool {
		return p.FavoriteArtists[i].Score > p.FavoriteArtists[j].Score
	})
}

func cloneProfile(p *recommend.UserProfile) *recommend.UserProfile {
	cp := *p
	cp.FavoriteGenres = append([]recommend.GenrePreference(nil), p.FavoriteGenres...)
	cp.FavoriteArtists = append([]recommend.ArtistPreference(nil), p.FavoriteArtists...)
	if p.TimePrefs != nil {
		cp.TimePrefs = make(map[recommend.TimeOfDay]recommend.TimePreference, len(p.TimePrefs))
		for k, v := range p.TimePrefs {
			v.Genres = append([]string(nil), v.Genres...)
			cp.TimePrefs[k] = v
		}
	}
	return &cp
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
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

var _ recommend.ProfileStore = (*Store)(nil)
