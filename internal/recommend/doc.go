// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package recommend implements the hybrid music recommendation engine.
//
// # Architecture
//
// The engine orchestrates several strategies to produce personalized
// track recommendations and the multi-section home feed:
//
//   - Collaborative Filtering: user-user similarity over the
//     interaction matrix, with item-based expansion
//   - Content-Based Filtering: genre, artist and audio-feature affinity
//   - Popularity: catalog-wide play statistics and trending velocity
//   - Contextual: time-of-day and mood matching
//   - Hybrid: a weighted blend of collaborative, content and popularity
//
// Users with insufficient history are routed to the cold-start handler
// instead, and A/B testing assigns per-section algorithm variants via
// consistent hashing.
//
// # Request Flow
//
// A request passes through cache lookup, profile load, cold-start
// check, algorithm resolution, strategy dispatch, diversity/freshness
// re-scoring and cache write. Any unexpected strategy failure
// downgrades to a popularity fallback rather than surfacing an error.
//
// # Design Principles
//
//   - Explicit dependency injection: the engine is constructed with its
//     catalog, profile, trending and cache collaborators
//   - Per-strategy scores in [0, 1]; blended totals are ordered, not
//     clamped
//   - Exclusions are a filter precondition honored by every strategy
//   - Derived caches (similarity rows, responses) are replace-on-write
//     and invalidated by generation, never mutated in place
package recommend
