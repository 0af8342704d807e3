// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package reranking implements post-processing over scored track lists.
// The engine applies a reranker to high-diversity requests after the
// strategies have produced a relevance ranking.
package reranking

import (
	"context"
	"strings"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// maxRerankSize bounds slice allocations; k is also bounded by the
// input length.
const maxRerankSize = 10000

// GenreFunc returns the genres of a track. Unknown tracks return nil.
type GenreFunc func(trackID string) []string

// MMR implements Maximal Marginal Relevance reranking, iteratively
// selecting tracks that are both relevant and dissimilar to tracks
// already selected:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected]
//
// lambda 1.0 is pure relevance, 0.0 pure diversity. Track similarity
// is genre Jaccard similarity.
//
// Reference: Carbonell & Goldstein, "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries", SIGIR 1998.
type MMR struct {
	lambda float64
	genres GenreFunc
}

// NewMMR creates an MMR reranker. lambda is clamped to [0, 1]; genres
// supplies per-track genre lists, typically backed by the catalog.
func NewMMR(lambda float64, genres GenreFunc) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda, genres: genres}
}

// Name returns the reranker identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Rerank selects at most k tracks by greedy MMR. The input is expected
// sorted by relevance; the output keeps selection order.
func (m *MMR) Rerank(_ context.Context, scores []recommend.Score, k int) []recommend.Score {
	if len(scores) == 0 || k <= 0 {
		return scores
	}

	if k > maxRerankSize {
		k = maxRerankSize
	}
	if k > len(scores) {
		k = len(scores)
	}

	// Pure relevance short-circuits the quadratic selection.
	if m.lambda >= 1.0 {
		return scores[:k]
	}

	similarities := m.buildSimilarityMatrix(scores)

	selected := make([]recommend.Score, 0, k)
	selectedIndices := make(map[int]struct{})

	for len(selected) < k {
		bestIdx := -1
		bestMMR := -1.0

		for i := range scores {
			if _, ok := selectedIndices[i]; ok {
				continue
			}

			relevance := scores[i].Score
			maxSim := 0.0
			for j := range selectedIndices {
				if sim := similarities[i][j]; sim > maxSim {
					maxSim = sim
				}
			}

			mmrScore := m.lambda*relevance - (1-m.lambda)*maxSim
			if mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		selected = append(selected, scores[bestIdx])
		selectedIndices[bestIdx] = struct{}{}
	}

	return selected
}

// buildSimilarityMatrix computes pairwise genre Jaccard similarity.
func (m *MMR) buildSimilarityMatrix(scores []recommend.Score) [][]float64 {
	n := len(scores)
	genres := make([][]string, n)
	for i := range scores {
		if m.genres != nil {
			genres[i] = m.genres(scores[i].TrackID)
		}
	}

	similarities := make([][]float64, n)
	for i := range similarities {
		similarities[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := genreJaccard(genres[i], genres[j])
			similarities[i][j] = sim
			similarities[j][i] = sim
		}
	}

	return similarities
}

// genreJaccard computes Jaccard similarity between genre lists,
// case-insensitively.
func genreJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, g := range a {
		setA[strings.ToLower(g)] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, g := range b {
		setB[strings.ToLower(g)] = struct{}{}
	}

	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

var _ recommend.Reranker = (*MMR)(nil)
