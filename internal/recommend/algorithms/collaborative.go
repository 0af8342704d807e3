// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
	"github.com/cadenza-audio/cadenza/internal/recommend/analysis"
)

// Behavior-to-rating conversion weights. A rating is the weighted
// average of per-action values, clamped to [-1, 1].
const (
	playWeight     = 1.0
	likeWeight     = 2.0
	skipWeight     = 0.5
	playlistWeight = 1.5
	shareWeight    = 2.0

	likeValue     = 1.0
	skipValue     = -0.5
	playlistValue = 1.0
	shareValue    = 1.0

	// fullListenSeconds is the play duration at which a play counts as
	// a full positive signal.
	fullListenSeconds = 30.0
)

// Collaborative freshness and diversity are fixed: neighbor-derived
// recommendations carry no release-date signal and are treated as
// moderately diverse.
const (
	collaborativeFreshness = 0.5
	collaborativeDiversity = 0.6
)

// neighbor is a similar user with their similarity score.
type neighbor struct {
	userID     string
	similarity float64
}

// simRow is a cached neighbor list tagged with the matrix generation it
// was computed from. Rows are replaced wholesale, never mutated.
type simRow struct {
	gen       uint64
	neighbors []neighbor
}

// CollaborativeStrategy scores tracks via user-user similarity over the
// interaction matrix. An item-based expansion backs up users whose
// neighborhoods produce no candidates.
type CollaborativeStrategy struct {
	BaseStrategy
	cfg      recommend.CollaborativeConfig
	analyzer *analysis.Analyzer
	logger   zerolog.Logger

	// ratings is userID -> trackID -> rating in [-1, 1].
	ratings map[string]map[string]float64

	// gens tracks per-user matrix generations for similarity cache
	// invalidation. Guarded by simMu together with simRows.
	simMu   sync.Mutex
	gens    map[string]uint64
	simRows map[string]simRow
}

// NewCollaborativeStrategy creates an untrained collaborative strategy.
// The analyzer backs the item-based expansion and may be nil, in which
// case the expansion is skipped.
func NewCollaborativeStrategy(cfg recommend.CollaborativeConfig, analyzer *analysis.Analyzer, logger zerolog.Logger) *CollaborativeStrategy {
	return &CollaborativeStrategy{
		BaseStrategy: NewBaseStrategy(recommend.AlgorithmCollaborative),
		cfg:          cfg,
		analyzer:     analyzer,
		logger:       logger.With().Str("strategy", "collaborative").Logger(),
		ratings:      make(map[string]map[string]float64),
		gens:         make(map[string]uint64),
		simRows:      make(map[string]simRow),
	}
}

// ConvertBehaviorsToRating folds behavior events for one user-track pair
// into a single rating. A lone like yields exactly 1.0 and a lone skip
// exactly -0.5.
func ConvertBehaviorsToRating(behaviors []recommend.UserBehavior) float64 {
	var weightSum, valueSum float64
	for i := range behaviors {
		b := &behaviors[i]
		switch b.Action {
		case recommend.ActionPlay:
			v := float64(b.ListenDuration) / fullListenSeconds
			if v > 1 {
				v = 1
			}
			weightSum += playWeight
			valueSum += playWeight * v
		case recommend.ActionLike:
			weightSum += likeWeight
			valueSum += likeWeight * likeValue
		case recommend.ActionSkip:
			weightSum += skipWeight
			valueSum += skipWeight * skipValue
		case recommend.ActionAddToPlaylist:
			weightSum += playlistWeight
			valueSum += playlistWeight * playlistValue
		case recommend.ActionShare:
			weightSum += shareWeight
			valueSum += shareWeight * shareValue
		}
	}
	if weightSum == 0 {
		return 0
	}
	rating := valueSum / weightSum
	if rating > 1 {
		return 1
	}
	if rating < -1 {
		return -1
	}
	return rating
}

// Train rebuilds the interaction matrix from the behavior log. Existing
// similarity rows are invalidated.
func (s *CollaborativeStrategy) Train(ctx context.Context, data recommend.TrainingData) error {
	// Group behaviors by user-track pair before conversion.
	grouped := make(map[string]map[string][]recommend.UserBehavior)
	for i, b := range data.Behaviors {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("collaborative training cancelled: %w", err)
			}
		}
		byTrack, ok := grouped[b.UserID]
		if !ok {
			byTrack = make(map[string][]recommend.UserBehavior)
			grouped[b.UserID] = byTrack
		}
		byTrack[b.TrackID] = append(byTrack[b.TrackID], b)
	}

	ratings := make(map[string]map[string]float64, len(grouped))
	for userID, byTrack := range grouped {
		row := make(map[string]float64, len(byTrack))
		for trackID, events := range byTrack {
			row[trackID] = ConvertBehaviorsToRating(events)
		}
		ratings[userID] = row
	}

	s.acquireTrainLock()
	s.ratings = ratings
	s.markTrained()
	s.releaseTrainLock()

	s.simMu.Lock()
	s.simRows = make(map[string]simRow)
	s.gens = make(map[string]uint64)
	s.simMu.Unlock()

	s.logger.Info().Int("users", len(ratings)).Msg("collaborative strategy trained")
	return nil
}

// UpdateUserItem upserts a single rating and invalidates the user's
// cached similarity row. The row is recomputed lazily on next read.
func (s *CollaborativeStrategy) UpdateUserItem(userID, trackID string, rating float64) {
	s.acquireTrainLock()
	row, ok := s.ratings[userID]
	if !ok {
		row = make(map[string]float64)
		s.ratings[userID] = row
	}
	row[trackID] = rating
	s.releaseTrainLock()

	s.simMu.Lock()
	s.gens[userID]++
	s.simMu.Unlock()
}

// Recommend scores candidates by accumulating neighbor ratings weighted
// by neighbor similarity. Tracks the user has already rated and tracks
// excluded by the request never enter the candidate set.
func (s *CollaborativeStrategy) Recommend(ctx context.Context, req *recommend.Request, profile *recommend.UserProfile, _ recommend.Context) ([]recommend.Score, error) {
	if !s.IsTrained() {
		return nil, fmt.Errorf("collaborative strategy not trained")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	neighbors := s.similarUsers(req.UserID)

	s.acquireScoreLock()
	userRatings := s.ratings[req.UserID]

	raw := make(map[string]float64)
	contributors := make(map[string]int)
	for _, n := range neighbors {
		for trackID, rating := range s.ratings[n.userID] {
			if _, rated := userRatings[trackID]; rated {
				continue
			}
			if req.Excluded(trackID) {
				continue
			}
			raw[trackID] += rating * n.similarity
			contributors[trackID]++
		}
	}
	s.releaseScoreLock()

	if len(raw) == 0 {
		return s.itemBased(req, userRatings)
	}

	normalized := normalizeScores(raw)
	scores := make([]recommend.Score, 0, len(normalized))
	for trackID, score := range normalized {
		scores = append(scores, recommend.Score{
			TrackID:   trackID,
			Score:     score,
			Algorithm: recommend.AlgorithmCollaborative.String(),
			Freshness: collaborativeFreshness,
			Diversity: collaborativeDiversity,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonSimilarUsers,
				Weight:      score,
				Explanation: fmt.Sprintf("Listeners with similar taste played this (%d of them)", contributors[trackID]),
			}},
		})
	}

	sortByScore(scores)
	return truncate(scores, req.Limit), nil
}

// similarUsers returns the top-N neighbors for a user, recomputing the
// cached row when the user's matrix generation has advanced.
func (s *CollaborativeStrategy) similarUsers(userID string) []neighbor {
	s.simMu.Lock()
	gen := s.gens[userID]
	row, ok := s.simRows[userID]
	s.simMu.Unlock()

	if ok && row.gen == gen {
		return row.neighbors
	}

	neighbors := s.computeNeighbors(userID)

	s.simMu.Lock()
	s.simRows[userID] = simRow{gen: gen, neighbors: neighbors}
	s.simMu.Unlock()
	return neighbors
}

// computeNeighbors ranks all other users by cosine similarity over
// shared rated tracks, shrunk toward zero for thin overlaps.
func (s *CollaborativeStrategy) computeNeighbors(userID string) []neighbor {
	s.acquireScoreLock()
	defer s.releaseScoreLock()

	userRatings := s.ratings[userID]
	if len(userRatings) == 0 {
		return nil
	}

	neighbors := make([]neighbor, 0, len(s.ratings))
	for otherID, otherRatings := range s.ratings {
		if otherID == userID {
			continue
		}
		sim, shared := sharedCosine(userRatings, otherRatings)
		if shared < s.cfg.MinSharedTracks || sim <= 0 {
			continue
		}
		if s.cfg.Shrinkage > 0 {
			sim *= float64(shared) / (float64(shared) + s.cfg.Shrinkage)
		}
		neighbors = append(neighbors, neighbor{userID: otherID, similarity: sim})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].similarity != neighbors[j].similarity {
			return neighbors[i].similarity > neighbors[j].similarity
		}
		return neighbors[i].userID < neighbors[j].userID
	})
	if len(neighbors) > s.cfg.NumNeighbors {
		neighbors = neighbors[:s.cfg.NumNeighbors]
	}
	return neighbors
}

// sharedCosine computes cosine similarity restricted to tracks both
// users rated, returning the similarity and the overlap size.
func sharedCosine(a, b map[string]float64) (float64, int) {
	var dot, normA, normB float64
	shared := 0
	for trackID, ra := range a {
		rb, ok := b[trackID]
		if !ok {
			continue
		}
		shared++
		dot += ra * rb
		normA += ra * ra
		normB += rb * rb
	}
	if shared == 0 || normA == 0 || normB == 0 {
		return 0, shared
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), shared
}

// itemBased expands the user's own highly rated tracks through the
// content analyzer's track similarity. Used when the neighborhood
// produces no candidates.
func (s *CollaborativeStrategy) itemBased(req *recommend.Request, userRatings map[string]float64) ([]recommend.Score, error) {
	if s.analyzer == nil || len(userRatings) == 0 {
		return []recommend.Score{}, nil
	}

	raw := make(map[string]float64)
	for trackID, rating := range userRatings {
		if rating < s.cfg.ItemRatingThreshold {
			continue
		}
		for _, sim := range s.analyzer.SimilarTracks(trackID, 20) {
			if _, rated := userRatings[sim.ID]; rated {
				continue
			}
			if req.Excluded(sim.ID) {
				continue
			}
			raw[sim.ID] += rating * sim.Score
		}
	}
	if len(raw) == 0 {
		return []recommend.Score{}, nil
	}

	normalized := normalizeScores(raw)
	scores := make([]recommend.Score, 0, len(normalized))
	for trackID, score := range normalized {
		scores = append(scores, recommend.Score{
			TrackID:   trackID,
			Score:     score,
			Algorithm: recommend.AlgorithmCollaborative.String(),
			Freshness: collaborativeFreshness,
			Diversity: collaborativeDiversity,
			Reasons: []recommend.Reason{{
				Type:        recommend.ReasonSimilarUsers,
				Weight:      score,
				Explanation: "Similar to tracks you rated highly",
			}},
		})
	}

	sortByScore(scores)
	return truncate(scores, req.Limit), nil
}

// ExportRatings returns a deep copy of the interaction matrix for
// persistence.
func (s *CollaborativeStrategy) ExportRatings() map[string]map[string]float64 {
	s.acquireScoreLock()
	defer s.releaseScoreLock()

	out := make(map[string]map[string]float64, len(s.ratings))
	for userID, row := range s.ratings {
		copied := make(map[string]float64, len(row))
		for trackID, rating := range row {
			copied[trackID] = rating
		}
		out[userID] = copied
	}
	return out
}

// ImportRatings replaces the interaction matrix with a persisted
// snapshot and marks the strategy trained. Cached similarity rows are
// discarded.
func (s *CollaborativeStrategy) ImportRatings(ratings map[string]map[string]float64) {
	if ratings == nil {
		ratings = make(map[string]map[string]float64)
	}

	s.acquireTrainLock()
	s.ratings = ratings
	s.markTrained()
	s.releaseTrainLock()

	s.simMu.Lock()
	s.simRows = make(map[string]simRow)
	s.gens = make(map[string]uint64)
	s.simMu.Unlock()

	s.logger.Info().Int("users", len(ratings)).Msg("collaborative matrix imported")
}

// RecordBehavior folds a single live event into the interaction matrix
// without waiting for the next full retrain. The event's rating is
// averaged with any existing rating so one skip cannot erase a history
// of plays.
func (s *CollaborativeStrategy) RecordBehavior(b recommend.UserBehavior) {
	if !s.IsTrained() {
		return
	}

	rating := ConvertBehaviorsToRating([]recommend.UserBehavior{b})
	if existing, ok := s.Rating(b.UserID, b.TrackID); ok {
		rating = (existing + rating) / 2
	}
	s.UpdateUserItem(b.UserID, b.TrackID, rating)
}

// Rating returns the user's rating for a track and whether one exists.
func (s *CollaborativeStrategy) Rating(userID, trackID string) (float64, bool) {
	s.acquireScoreLock()
	defer s.releaseScoreLock()
	r, ok := s.ratings[userID][trackID]
	return r, ok
}

var _ recommend.Strategy = (*CollaborativeStrategy)(nil)
