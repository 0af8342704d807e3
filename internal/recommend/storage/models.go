// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package storage provides model persistence for recommendation
// strategies. Trained state is gob-encoded, gzip-compressed, and
// written as versioned files so a restarted server can serve
// personalized results before its first training pass.
//
// Each file carries metadata with a SHA-256 checksum; a load with a
// checksum mismatch fails rather than serving a corrupted model.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ModelMetadata describes a stored model snapshot.
type ModelMetadata struct {
	// Name is the strategy name (e.g. "collaborative").
	Name string `json:"name"`

	// Version is the model version, monotonically increasing.
	Version int `json:"version"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// BehaviorCount is the number of behavior events used for training.
	BehaviorCount int `json:"behavior_count"`

	// UserCount is the number of users in the model.
	UserCount int `json:"user_count"`

	// Checksum is the SHA-256 checksum of the uncompressed model data.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed snapshot size.
	SizeBytes int64 `json:"size_bytes"`

	// TrainingDurationMS is how long the training pass took.
	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// modelFile is the on-disk format.
type modelFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// Store manages model snapshots under a base directory.
// Safe for concurrent use.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per strategy name
	versions map[string]int
}

// NewStore creates a model store at baseDir, creating the directory if
// needed and scanning it for existing snapshots.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}

	if err := s.scanModels(); err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}

	return s, nil
}

// scanModels records the latest version found for each strategy.
func (s *Store) scanModels() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name, ok := trimModelExt(entry.Name())
		if !ok {
			continue
		}

		strategy, version := parseModelFilename(name)
		if strategy == "" {
			continue
		}

		if current, ok := s.versions[strategy]; !ok || version > current {
			s.versions[strategy] = version
		}
	}

	return nil
}

// trimModelExt strips the snapshot file extension, reporting whether
// the filename is a model file at all.
func trimModelExt(name string) (string, bool) {
	if strings.HasSuffix(name, ".gob.gz") {
		return strings.TrimSuffix(name, ".gob.gz"), true
	}
	return "", false
}

// parseModelFilename splits "collaborative_v3" into name and version.
func parseModelFilename(name string) (strategy string, version int) {
	idx := strings.LastIndex(name, "_v")
	if idx < 0 {
		return "", 0
	}

	if _, err := fmt.Sscanf(name[idx+2:], "%d", &version); err != nil {
		return "", 0
	}
	return name[:idx], version
}

// Save writes a model snapshot under name and version.
//
//nolint:gocritic // meta passed by value is acceptable for a write path
func (s *Store) Save(_ context.Context, name string, version int, data interface{}, meta ModelMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()
	meta.Name = name
	meta.Version = version

	f, err := os.Create(s.modelPath(name, version)) //nolint:gosec // path derives from the trusted name parameter
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	mf := modelFile{
		Metadata:       meta,
		CompressedData: compressed.Bytes(),
	}
	if err := gob.NewEncoder(f).Encode(mf); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}

	if current, ok := s.versions[name]; !ok || version > current {
		s.versions[name] = version
	}

	return nil
}

// Load reads a model snapshot into target. Version 0 loads the latest.
func (s *Store) Load(_ context.Context, name string, version int, target interface{}) (*ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, fmt.Errorf("no model found for %s", name)
		}
	}

	f, err := os.Open(s.modelPath(name, version)) //nolint:gosec // path derives from the trusted name parameter
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var mf modelFile
	if err := gob.NewDecoder(f).Decode(&mf); err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(mf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != mf.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", mf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	return &mf.Metadata, nil
}

// GetLatestVersion returns the latest stored version for a strategy.
func (s *Store) GetLatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[name]
	return version, ok
}

// ListModels returns metadata for all stored models, latest version of
// each strategy only.
func (s *Store) ListModels(_ context.Context) ([]ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var models []ModelMetadata
	for name, version := range s.versions {
		f, err := os.Open(s.modelPath(name, version)) //nolint:gosec // path derives from tracked names
		if err != nil {
			continue
		}

		var mf modelFile
		err = gob.NewDecoder(f).Decode(&mf)
		_ = f.Close()
		if err != nil {
			continue
		}

		models = append(models, mf.Metadata)
	}

	return models, nil
}

// Delete removes a specific model version and rescans for the next
// latest if it was the newest.
func (s *Store) Delete(_ context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.modelPath(name, version)); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}

	if s.versions[name] != version {
		return nil
	}

	delete(s.versions, name)
	versions, err := s.versionsOf(name)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		s.versions[name] = versions[0]
	}
	return nil
}

// Prune removes old snapshots, keeping the newest keepVersions.
func (s *Store) Prune(_ context.Context, name string, keepVersions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepVersions < 1 {
		keepVersions = 1
	}

	versions, err := s.versionsOf(name)
	if err != nil {
		return err
	}

	for i := keepVersions; i < len(versions); i++ {
		_ = os.Remove(s.modelPath(name, versions[i])) //nolint:errcheck // best-effort cleanup
	}
	return nil
}

// versionsOf lists all on-disk versions of a strategy, newest first.
func (s *Store) versionsOf(name string) ([]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		trimmed, ok := trimModelExt(entry.Name())
		if !ok {
			continue
		}
		strategy, v := parseModelFilename(trimmed)
		if strategy == name {
			versions = append(versions, v)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	return versions, nil
}

// modelPath returns the snapshot path for a strategy version.
func (s *Store) modelPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}

// CollaborativeModelState is the serializable state of the
// collaborative strategy's interaction matrix.
type CollaborativeModelState struct {
	// Ratings is userID -> trackID -> rating in [-1, 1].
	Ratings map[string]map[string]float64

	// TrainedAt is when the matrix was built.
	TrainedAt time.Time
}

//nolint:gochecknoinits // gob.Register must run before any encode/decode
func init() {
	gob.Register(CollaborativeModelState{})
	gob.Register(ModelMetadata{})
	gob.Register(modelFile{})
}
