// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package catalog holds the in-memory track catalog and audio feature
// store. It backs the recommend.CatalogProvider interface; a database
// implementation can replace it without touching the engine.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Store is a thread-safe in-memory catalog.
type Store struct {
	mu       sync.RWMutex
	tracks   map[string]recommend.Track
	order    []string
	byGenre  map[string][]string
	features map[string]recommend.TrackFeatures
	logger   zerolog.Logger
}

// NewStore creates an empty catalog store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		tracks:   make(map[string]recommend.Track),
		byGenre:  make(map[string][]string),
		features: make(map[string]recommend.TrackFeatures),
		logger:   logger.With().Str("component", "catalog").Logger(),
	}
}

// Add inserts or replaces a track and, optionally, its features.
// Genre index entries are keyed lowercase.
func (s *Store) Add(t recommend.Track, f *recommend.TrackFeatures) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tracks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	} else {
		s.removeFromGenreIndex(t.ID)
	}
	s.tracks[t.ID] = t
	for _, g := range t.Genres {
		key := strings.ToLower(g)
		s.byGenre[key] = append(s.byGenre[key], t.ID)
	}
	if f != nil {
		f.TrackID = t.ID
		s.features[t.ID] = *f
	}
}

// Load bulk-inserts tracks and features, replacing nothing that is
// already present under a different ID.
func (s *Store) Load(tracks []recommend.Track, features []recommend.TrackFeatures) {
	byID := make(map[string]*recommend.TrackFeatures, len(features))
	for i := range features {
		byID[features[i].TrackID] = &features[i]
	}
	for i := range tracks {
		s.Add(tracks[i], byID[tracks[i].ID])
	}
	s.logger.Info().
		Int("tracks", len(tracks)).
		Int("features", len(features)).
		Msg("catalog loaded")
}

// AllTracks returns the catalog in insertion order.
func (s *Store) AllTracks(_ context.Context) ([]recommend.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recommend.Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out, nil
}

// TracksByGenres returns tracks tagged with any of the genres, deduped,
// in deterministic ID order. Genre matching is case-insensitive.
func (s *Store) TracksByGenres(_ context.Context, genres []string) ([]recommend.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, g := range genres {
		for _, id := range s.byGenre[strings.ToLower(g)] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]recommend.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tracks[id])
	}
	return out, nil
}

// Track returns a single track, or nil if unknown.
func (s *Store) Track(_ context.Context, id string) (*recommend.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Features returns a track's feature vector, or nil if the track has
// not been analyzed.
func (s *Store) Features(_ context.Context, id string) (*recommend.TrackFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.features[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// AllFeatures returns every known feature vector in track ID order.
func (s *Store) AllFeatures(_ context.Context) ([]recommend.TrackFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.features))
	for id := range s.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]recommend.TrackFeatures, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.features[id])
	}
	return out, nil
}

// Count returns the number of tracks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// removeFromGenreIndex drops a track's genre index entries. Caller
// holds s.mu.
func (s *Store) removeFromGenreIndex(id string) {
	old, ok := s.tracks[id]
	if !ok {
		return
	}
	for _, g := range old.Genres {
		key := strings.ToLower(g)
		ids := s.byGenre[key]
		for i := range ids {
			if ids[i] == id {
				s.byGenre[key] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}

var _ recommend.CatalogProvider = (*Store)(nil)
