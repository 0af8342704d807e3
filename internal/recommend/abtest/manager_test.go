// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package abtest

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

func sampleTest() Test {
	return Test{
		Name:    "discover-algo",
		Section: recommend.SectionDiscoverWeekly,
		Variants: []Variant{
			{ID: "control", Algorithm: recommend.AlgorithmHybrid, TrafficPercent: 50},
			{ID: "treatment", Algorithm: recommend.AlgorithmCollaborative, TrafficPercent: 50},
		},
	}
}

func TestCreateTest(t *testing.T) {
	t.Run("valid test", func(t *testing.T) {
		m := NewManager(zerolog.Nop())
		if err := m.CreateTest(sampleTest()); err != nil {
			t.Fatalf("create: %v", err)
		}
		if len(m.Tests()) != 1 {
			t.Errorf("registered %d tests, want 1", len(m.Tests()))
		}
	})

	t.Run("rejects bad traffic sum", func(t *testing.T) {
		m := NewManager(zerolog.Nop())
		bad := sampleTest()
		bad.Variants[0].TrafficPercent = 60
		if err := m.CreateTest(bad); err == nil {
			t.Error("traffic sum 110 should be rejected")
		}
	})

	t.Run("rejects single variant", func(t *testing.T) {
		m := NewManager(zerolog.Nop())
		bad := sampleTest()
		bad.Variants = bad.Variants[:1]
		bad.Variants[0].TrafficPercent = 100
		if err := m.CreateTest(bad); err == nil {
			t.Error("single-variant test should be rejected")
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		m := NewManager(zerolog.Nop())
		if err := m.CreateTest(sampleTest()); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := m.CreateTest(sampleTest()); err == nil {
			t.Error("duplicate test name should be rejected")
		}
	})

	t.Run("rejects second test on a section", func(t *testing.T) {
		m := NewManager(zerolog.Nop())
		if err := m.CreateTest(sampleTest()); err != nil {
			t.Fatalf("create: %v", err)
		}
		second := sampleTest()
		second.Name = "discover-algo-2"
		if err := m.CreateTest(second); err == nil {
			t.Error("section already under test should be rejected")
		}
	})
}

func TestAssignmentSticky(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.CreateTest(sampleTest()); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := m.AlgorithmForSection("user-42", recommend.SectionDiscoverWeekly)
	if first.TestName != "discover-algo" || first.VariantID == "" {
		t.Fatalf("expected an assignment, got %+v", first)
	}
	for i := 0; i < 10; i++ {
		again := m.AlgorithmForSection("user-42", recommend.SectionDiscoverWeekly)
		if again.VariantID != first.VariantID {
			t.Fatalf("assignment changed from %q to %q", first.VariantID, again.VariantID)
		}
	}

	got, ok := m.VariantFor("discover-algo", "user-42")
	if !ok || got != first.VariantID {
		t.Errorf("VariantFor = %q, %v, want %q, true", got, ok, first.VariantID)
	}
}

func TestAssignmentDistribution(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.CreateTest(sampleTest()); err != nil {
		t.Fatalf("create: %v", err)
	}

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		a := m.AlgorithmForSection(fmt.Sprintf("user-%d", i), recommend.SectionDiscoverWeekly)
		counts[a.VariantID]++
	}
	// A 50/50 split over 1000 hashed users should land well inside 35-65%.
	for id, n := range counts {
		if n < 350 || n > 650 {
			t.Errorf("variant %q got %d of 1000 assignments", id, n)
		}
	}
}

func TestUncoveredSectionFallsBackToHybrid(t *testing.T) {
	m := NewManager(zerolog.Nop())
	a := m.AlgorithmForSection("user-1", recommend.SectionDailyMix)
	if a.Algorithm != recommend.AlgorithmHybrid {
		t.Errorf("algorithm = %v, want hybrid", a.Algorithm)
	}
	if a.TestName != "" || a.VariantID != "" {
		t.Errorf("no test should be attached, got %+v", a)
	}
}

func TestTrackEventAndMetrics(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.CreateTest(sampleTest()); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.TrackEvent("discover-algo", "control", EventView, 0)
	m.TrackEvent("discover-algo", "control", EventClick, 0)
	m.TrackEvent("discover-algo", "control", EventPlay, 0)
	m.TrackEvent("discover-algo", "control", EventPlayFull, 0)
	m.TrackEvent("discover-algo", "control", EventSessionEnd, 120)
	m.TrackEvent("discover-algo", "treatment", EventSkip, 0)

	// Dropped silently.
	m.TrackEvent("no-such-test", "control", EventView, 0)
	m.TrackEvent("discover-algo", "no-such-variant", EventView, 0)
	m.TrackEvent("discover-algo", "control", "no-such-event", 0)

	metrics, err := m.TestMetrics("discover-algo")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	control := metrics["control"]
	if control.Views != 1 || control.Clicks != 1 {
		t.Errorf("control views/clicks = %d/%d, want 1/1", control.Views, control.Clicks)
	}
	if control.Plays != 2 || control.PlayThroughs != 1 {
		t.Errorf("control plays/playthroughs = %d/%d, want 2/1", control.Plays, control.PlayThroughs)
	}
	if control.Sessions != 1 || control.SessionSec != 120 {
		t.Errorf("control sessions = %d (%vs), want 1 (120s)", control.Sessions, control.SessionSec)
	}
	if metrics["treatment"].Skips != 1 {
		t.Errorf("treatment skips = %d, want 1", metrics["treatment"].Skips)
	}

	if _, err := m.TestMetrics("no-such-test"); err == nil {
		t.Error("unknown test should error")
	}
}

func TestEndTest(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.CreateTest(sampleTest()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Treatment engages, control skips.
	for i := 0; i < 60; i++ {
		m.TrackEvent("discover-algo", "treatment", EventView, 0)
		m.TrackEvent("discover-algo", "treatment", EventClick, 0)
		m.TrackEvent("discover-algo", "treatment", EventPlayFull, 0)
		m.TrackEvent("discover-algo", "control", EventView, 0)
		m.TrackEvent("discover-algo", "control", EventPlay, 0)
		m.TrackEvent("discover-algo", "control", EventSkip, 0)
	}

	res, err := m.EndTest("discover-algo")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if res.Winner != "treatment" {
		t.Errorf("winner = %q, want treatment", res.Winner)
	}
	if res.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7 for 120 views", res.Confidence)
	}

	if _, err := m.EndTest("discover-algo"); err == nil {
		t.Error("ending a concluded test should error")
	}

	// The section is free again.
	a := m.AlgorithmForSection("user-1", recommend.SectionDiscoverWeekly)
	if a.TestName != "" {
		t.Errorf("concluded test still assigning: %+v", a)
	}
}

func TestConfidenceTier(t *testing.T) {
	tests := []struct {
		views int64
		want  float64
	}{
		{0, 0},
		{99, 0},
		{100, 0.7},
		{999, 0.7},
		{1000, 0.85},
		{9999, 0.85},
		{10000, 0.95},
	}
	for _, tt := range tests {
		if got := confidenceTier(tt.views); got != tt.want {
			t.Errorf("confidenceTier(%d) = %v, want %v", tt.views, got, tt.want)
		}
	}
}

func TestDefaultTests(t *testing.T) {
	m := NewManagerWithDefaults(zerolog.Nop())
	if len(m.Tests()) == 0 {
		t.Fatal("default manager should carry seed experiments")
	}
	for _, ts := range m.Tests() {
		total := 0
		for _, v := range ts.Variants {
			total += v.TrafficPercent
		}
		if total != 100 {
			t.Errorf("test %q traffic sums to %d", ts.Name, total)
		}
	}
}
