// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package algorithms

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func newCollab(t *testing.T) *CollaborativeStrategy {
	t.Helper()
	cfg := recommend.DefaultConfig().Collaborative
	cfg.MinSharedTracks = 1
	return NewCollaborativeStrategy(cfg, nil, zerolog.Nop())
}

func TestConvertBehaviorsToRating(t *testing.T) {
	tests := []struct {
		name      string
		behaviors []recommend.UserBehavior
		want      float64
	}{
		{
			"lone like",
			[]recommend.UserBehavior{{Action: recommend.ActionLike}},
			1.0,
		},
		{
			"lone skip",
			[]recommend.UserBehavior{{Action: recommend.ActionSkip}},
			-0.5,
		},
		{
			"full play",
			[]recommend.UserBehavior{{Action: recommend.ActionPlay, ListenDuration: 60}},
			1.0,
		},
		{
			"half play",
			[]recommend.UserBehavior{{Action: recommend.ActionPlay, ListenDuration: 15}},
			0.5,
		},
		{
			"no events",
			nil,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertBehaviorsToRating(tt.behaviors)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertBehaviorsToRating = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("like outweighs skip", func(t *testing.T) {
		got := ConvertBehaviorsToRating([]recommend.UserBehavior{
			{Action: recommend.ActionLike},
			{Action: recommend.ActionSkip},
		})
		if got <= 0 {
			t.Errorf("like plus skip = %v, want positive", got)
		}
	})

	t.Run("clamped to range", func(t *testing.T) {
		got := ConvertBehaviorsToRating([]recommend.UserBehavior{
			{Action: recommend.ActionLike},
			{Action: recommend.ActionShare},
			{Action: recommend.ActionAddToPlaylist},
		})
		if got < -1 || got > 1 {
			t.Errorf("rating %v out of [-1, 1]", got)
		}
	})
}

func trainingBehaviors() []recommend.UserBehavior {
	return []recommend.UserBehavior{
		// u1 and u2 agree on t1 and t2; u2 also likes t3.
		{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike},
		{UserID: "u1", TrackID: "t2", Action: recommend.ActionLike},
		{UserID: "u2", TrackID: "t1", Action: recommend.ActionLike},
		{UserID: "u2", TrackID: "t2", Action: recommend.ActionLike},
		{UserID: "u2", TrackID: "t3", Action: recommend.ActionLike},
		// u3 dislikes everything u1 likes.
		{UserID: "u3", TrackID: "t1", Action: recommend.ActionSkip},
		{UserID: "u3", TrackID: "t2", Action: recommend.ActionSkip},
		{UserID: "u3", TrackID: "t4", Action: recommend.ActionLike},
	}
}

func TestCollaborativeTrainAndRecommend(t *testing.T) {
	s := newCollab(t)
	err := s.Train(context.Background(), recommend.TrainingData{Behaviors: trainingBehaviors()})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !s.IsTrained() {
		t.Fatal("strategy should report trained")
	}

	req := &recommend.Request{UserID: "u1", Limit: 10}
	scores, err := s.Recommend(context.Background(), req, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(scores) == 0 {
		t.Fatal("expected recommendations for u1")
	}

	if scores[0].TrackID != "t3" {
		t.Errorf("top recommendation = %q, want t3 (liked by the agreeing neighbor)", scores[0].TrackID)
	}
	for _, sc := range scores {
		if sc.TrackID == "t1" || sc.TrackID == "t2" {
			t.Errorf("already-rated track %q was recommended", sc.TrackID)
		}
	}
}

func TestCollaborativeExclusions(t *testing.T) {
	s := newCollab(t)
	if err := s.Train(context.Background(), recommend.TrainingData{Behaviors: trainingBehaviors()}); err != nil {
		t.Fatalf("train: %v", err)
	}

	req := &recommend.Request{UserID: "u1", Limit: 10, ExcludeTrackIDs: []string{"t3"}}
	req.BuildExclusions()
	scores, err := s.Recommend(context.Background(), req, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, sc := range scores {
		if sc.TrackID == "t3" {
			t.Error("excluded track t3 was recommended")
		}
	}
}

func TestCollaborativeUntrained(t *testing.T) {
	s := newCollab(t)
	_, err := s.Recommend(context.Background(), &recommend.Request{UserID: "u1"}, nil, recommend.Context{})
	if err == nil {
		t.Fatal("untrained strategy should error")
	}
}

func TestUpdateUserItem(t *testing.T) {
	s := newCollab(t)
	if err := s.Train(context.Background(), recommend.TrainingData{Behaviors: trainingBehaviors()}); err != nil {
		t.Fatalf("train: %v", err)
	}

	s.UpdateUserItem("u1", "t9", 0.7)
	got, ok := s.Rating("u1", "t9")
	if !ok || got != 0.7 {
		t.Errorf("Rating(u1, t9) = %v, %v, want 0.7, true", got, ok)
	}

	if _, ok := s.Rating("u1", "missing"); ok {
		t.Error("unknown track should have no rating")
	}
}

func TestRecordBehavior(t *testing.T) {
	s := newCollab(t)

	t.Run("noop before training", func(t *testing.T) {
		s.RecordBehavior(recommend.UserBehavior{UserID: "u1", TrackID: "t1", Action: recommend.ActionLike})
		if _, ok := s.Rating("u1", "t1"); ok {
			t.Error("untrained strategy should ignore behavior events")
		}
	})

	if err := s.Train(context.Background(), recommend.TrainingData{Behaviors: trainingBehaviors()}); err != nil {
		t.Fatalf("train: %v", err)
	}

	t.Run("new pair takes event rating", func(t *testing.T) {
		s.RecordBehavior(recommend.UserBehavior{UserID: "u1", TrackID: "t7", Action: recommend.ActionLike})
		got, ok := s.Rating("u1", "t7")
		if !ok || got != 1.0 {
			t.Errorf("Rating(u1, t7) = %v, %v, want 1.0, true", got, ok)
		}
	})

	t.Run("existing pair averages", func(t *testing.T) {
		s.RecordBehavior(recommend.UserBehavior{UserID: "u1", TrackID: "t7", Action: recommend.ActionSkip})
		got, _ := s.Rating("u1", "t7")
		want := (1.0 + -0.5) / 2
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("averaged rating = %v, want %v", got, want)
		}
	})
}

func TestExportImportRatings(t *testing.T) {
	s := newCollab(t)
	if err := s.Train(context.Background(), recommend.TrainingData{Behaviors: trainingBehaviors()}); err != nil {
		t.Fatalf("train: %v", err)
	}

	exported := s.ExportRatings()
	if len(exported) != 3 {
		t.Fatalf("exported %d users, want 3", len(exported))
	}

	// The export is a deep copy.
	exported["u1"]["t1"] = -1
	if got, _ := s.Rating("u1", "t1"); got == -1 {
		t.Error("mutating the export changed the live matrix")
	}

	fresh := newCollab(t)
	fresh.ImportRatings(s.ExportRatings())
	if !fresh.IsTrained() {
		t.Fatal("import should mark the strategy trained")
	}
	got, ok := fresh.Rating("u2", "t3")
	if !ok || got != 1.0 {
		t.Errorf("imported Rating(u2, t3) = %v, %v, want 1.0, true", got, ok)
	}

	req := &recommend.Request{UserID: "u1", Limit: 10}
	scores, err := fresh.Recommend(context.Background(), req, nil, recommend.Context{})
	if err != nil {
		t.Fatalf("recommend after import: %v", err)
	}
	if len(scores) == 0 {
		t.Error("imported matrix should serve recommendations")
	}
}
