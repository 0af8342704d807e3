// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input string
		want  Algorithm
		ok    bool
	}{
		{"collaborative_filtering", AlgorithmCollaborative, true},
		{"content_based", AlgorithmContentBased, true},
		{"hybrid", AlgorithmHybrid, true},
		{"popularity_based", AlgorithmPopularity, true},
		{"time_contextual", AlgorithmTimeContextual, true},
		{"mood_based", AlgorithmMoodBased, true},
		{"", AlgorithmUnspecified, true},
		{"magic", AlgorithmUnspecified, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAlgorithm(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseAlgorithm(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAlgorithmJSON(t *testing.T) {
	data, err := json.Marshal(AlgorithmHybrid)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"hybrid"` {
		t.Errorf("marshal = %s, want \"hybrid\"", data)
	}

	var a Algorithm
	if err := json.Unmarshal([]byte(`"mood_based"`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a != AlgorithmMoodBased {
		t.Errorf("unmarshal = %v, want %v", a, AlgorithmMoodBased)
	}

	if err := json.Unmarshal([]byte(`"no_such_algorithm"`), &a); err == nil {
		t.Error("expected error for unknown algorithm name")
	}
}

func TestLevelWeight(t *testing.T) {
	tests := []struct {
		level Level
		want  float64
	}{
		{LevelLow, 0.1},
		{LevelMedium, 0.2},
		{LevelHigh, 0.4},
		{Level(""), 0.2},
		{Level("extreme"), 0.2},
	}

	for _, tt := range tests {
		if got := tt.level.Weight(); got != tt.want {
			t.Errorf("Level(%q).Weight() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestTimeOfDayFromHour(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{0, TimeNight},
		{4, TimeNight},
		{5, TimeMorning},
		{11, TimeMorning},
		{12, TimeAfternoon},
		{16, TimeAfternoon},
		{17, TimeEvening},
		{21, TimeEvening},
		{22, TimeNight},
		{23, TimeNight},
	}

	for _, tt := range tests {
		if got := TimeOfDayFromHour(tt.hour); got != tt.want {
			t.Errorf("TimeOfDayFromHour(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSeasonFromMonth(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, SeasonWinter},
		{time.March, SeasonSpring},
		{time.May, SeasonSpring},
		{time.July, SeasonSummer},
		{time.October, SeasonAutumn},
		{time.December, SeasonWinter},
	}

	for _, tt := range tests {
		if got := SeasonFromMonth(tt.month); got != tt.want {
			t.Errorf("SeasonFromMonth(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}
}

func TestFreshnessScore(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"this week", 3 * 24 * time.Hour, 1.0},
		{"this month", 20 * 24 * time.Hour, 0.8},
		{"this quarter", 60 * 24 * time.Hour, 0.6},
		{"this year", 200 * 24 * time.Hour, 0.4},
		{"catalog", 800 * 24 * time.Hour, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FreshnessScore(now.Add(-tt.age), now); got != tt.want {
				t.Errorf("FreshnessScore(age %v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestRequestExclusions(t *testing.T) {
	req := &Request{
		UserID:          "u1",
		ExcludeTrackIDs: []string{"t1", "t2"},
	}
	req.BuildExclusions()

	if !req.Excluded("t1") {
		t.Error("t1 should be excluded")
	}
	if !req.Excluded("t2") {
		t.Error("t2 should be excluded")
	}
	if req.Excluded("t3") {
		t.Error("t3 should not be excluded")
	}
}

func TestRequestFingerprint(t *testing.T) {
	a := &Request{UserID: "u1", Section: SectionDiscoverWeekly, Limit: 20}
	b := &Request{UserID: "u1", Section: SectionDiscoverWeekly, Limit: 20}
	c := &Request{UserID: "u2", Section: SectionDiscoverWeekly, Limit: 20}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical requests should share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different users should not share a fingerprint")
	}
}

func TestBehaviorActionValid(t *testing.T) {
	valid := []BehaviorAction{ActionPlay, ActionSkip, ActionLike, ActionShare, ActionAddToPlaylist}
	for _, a := range valid {
		if !a.Valid() {
			t.Errorf("action %q should be valid", a)
		}
	}
	if BehaviorAction("dance").Valid() {
		t.Error("unknown action should be invalid")
	}
}

func TestTotalInteractions(t *testing.T) {
	p := &UserProfile{
		FavoriteGenres: []GenrePreference{
			{Genre: "rock", PlayCount: 10},
			{Genre: "jazz", PlayCount: 5},
		},
	}
	if got := p.TotalInteractions(); got != 15 {
		t.Errorf("TotalInteractions() = %d, want 15", got)
	}

	empty := &UserProfile{}
	if got := empty.TotalInteractions(); got != 0 {
		t.Errorf("empty profile TotalInteractions() = %d, want 0", got)
	}
}

func TestContextFromTime(t *testing.T) {
	at := time.Date(2026, time.July, 10, 8, 30, 0, 0, time.UTC)
	ctx := ContextFromTime(at)

	if ctx.TimeOfDay != TimeMorning {
		t.Errorf("TimeOfDay = %v, want %v", ctx.TimeOfDay, TimeMorning)
	}
	if ctx.Season != SeasonSummer {
		t.Errorf("Season = %v, want %v", ctx.Season, SeasonSummer)
	}
}
