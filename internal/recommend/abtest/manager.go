// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

// Package abtest assigns users to algorithm variants and scores
// experiments on engagement. Assignment is a deterministic hash walk
// over variant traffic shares, so a user always lands on the same
// variant for a given test.
package abtest

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-audio/cadenza/internal/recommend"
)

// Event types accepted by TrackEvent.
const (
	EventView       = "view"
	EventClick      = "click"
	EventPlay       = "play"
	EventPlayFull   = "play_through"
	EventSkip       = "skip"
	EventLike       = "like"
	EventSessionEnd = "session_end"
)

// Engagement score weights, applied per variant when a test ends.
const (
	clickWeight       = 0.25
	playThroughWeight = 0.30
	likeWeight        = 0.20
	sessionWeight     = 0.15
	skipPenalty       = 0.10

	// sessionCeilingSec normalizes mean session length into [0,1].
	sessionCeilingSec = 3600.0
)

// Variant is one arm of an experiment.
type Variant struct {
	// ID identifies the variant within its test.
	ID string `json:"id"`

	// Algorithm is the strategy this variant serves.
	Algorithm recommend.Algorithm `json:"algorithm"`

	// Parameters are tuning values merged into the request.
	Parameters map[string]float64 `json:"parameters,omitempty"`

	// TrafficPercent is the share of users assigned here (0-100).
	TrafficPercent int `json:"traffic_percent"`
}

// VariantMetrics accumulates engagement counters for one variant.
type VariantMetrics struct {
	Views        int64   `json:"views"`
	Clicks       int64   `json:"clicks"`
	Plays        int64   `json:"plays"`
	PlayThroughs int64   `json:"play_throughs"`
	Skips        int64   `json:"skips"`
	Likes        int64   `json:"likes"`
	SessionSec   float64 `json:"session_seconds"`
	Sessions     int64   `json:"sessions"`
}

// Test is an experiment over one home-feed section.
type Test struct {
	// Name identifies the test.
	Name string `json:"name"`

	// Description explains what the test compares.
	Description string `json:"description,omitempty"`

	// Section is the home-feed section the test covers.
	Section recommend.SectionType `json:"section"`

	// Active indicates the test is currently assigning users.
	Active bool `json:"active"`

	// StartedAt is when the test began.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the test was concluded, if it has been.
	EndedAt time.Time `json:"ended_at"`

	// Variants are the experiment arms. Traffic percents sum to 100.
	Variants []Variant `json:"variants"`

	metrics map[string]*VariantMetrics
}

// VariantResult is the scored outcome of one variant.
type VariantResult struct {
	VariantID string         `json:"variant_id"`
	Metrics   VariantMetrics `json:"metrics"`
	Score     float64        `json:"score"`
}

// Result is the outcome of a concluded test.
type Result struct {
	TestName string          `json:"test_name"`
	Winner   string          `json:"winner"`
	Variants []VariantResult `json:"variants"`

	// Confidence is a coarse sample-size tier, not a significance test.
	Confidence float64 `json:"confidence"`

	EndedAt time.Time `json:"ended_at"`
}

// Manager owns the experiment registry and implements
// recommend.VariantResolver. Safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	tests  map[string]*Test
	bySect map[recommend.SectionType]string

	// assignments records sticky per-test user assignments. Assignment
	// is hash-deterministic; the map exists so admins can inspect it.
	assignments map[string]map[string]string

	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates an experiment manager with no tests registered.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		tests:       make(map[string]*Test),
		bySect:      make(map[recommend.SectionType]string),
		assignments: make(map[string]map[string]string),
		logger:      logger.With().Str("component", "abtest").Logger(),
		now:         time.Now,
	}
}

// NewManagerWithDefaults creates a manager preloaded with the standard
// home-feed experiments.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManagerWithDefaults(logger zerolog.Logger) *Manager {
	m := NewManager(logger)
	for _, t := range defaultTests() {
		if err := m.CreateTest(t); err != nil {
			m.logger.Error().Err(err).Str("test", t.Name).Msg("default test rejected")
		}
	}
	return m
}

// defaultTests returns the experiments running on the personalized
// home-feed sections.
func defaultTests() []Test {
	return []Test{
		{
			Name:        "made-for-you-blend",
			Description: "Hybrid blend versus pure collaborative for the Made For You shelf",
			Section:     recommend.SectionMadeForYou,
			Variants: []Variant{
				{ID: "control", Algorithm: recommend.AlgorithmHybrid, TrafficPercent: 50},
				{ID: "collab-only", Algorithm: recommend.AlgorithmCollaborative, TrafficPercent: 50},
			},
		},
		{
			Name:        "discover-weekly-source",
			Description: "Content-based discovery versus hybrid for Discover Weekly",
			Section:     recommend.SectionDiscoverWeekly,
			Variants: []Variant{
				{ID: "control", Algorithm: recommend.AlgorithmContentBased, TrafficPercent: 50},
				{ID: "hybrid", Algorithm: recommend.AlgorithmHybrid, TrafficPercent: 50},
			},
		},
		{
			Name:        "daily-mix-weights",
			Description: "Collaborative-heavy hybrid weights for Daily Mix",
			Section:     recommend.SectionDailyMix,
			Variants: []Variant{
				{ID: "control", Algorithm: recommend.AlgorithmHybrid, TrafficPercent: 50},
				{
					ID:        "collab-heavy",
					Algorithm: recommend.AlgorithmHybrid,
					Parameters: map[string]float64{
						"collaborative_weight": 0.5,
						"content_weight":       0.3,
						"popularity_weight":    0.2,
					},
					TrafficPercent: 50,
				},
			},
		},
	}
}

// CreateTest registers and activates a test. Traffic percents must sum
// to 100 and the section must not already have an active test.
func (m *Manager) CreateTest(t Test) error {
	if t.Name == "" {
		return fmt.Errorf("test name required")
	}
	if len(t.Variants) < 2 {
		return fmt.Errorf("test %s needs at least two variants", t.Name)
	}
	total := 0
	for i := range t.Variants {
		if t.Variants[i].ID == "" {
			return fmt.Errorf("test %s has a variant without an ID", t.Name)
		}
		total += t.Variants[i].TrafficPercent
	}
	if total != 100 {
		return fmt.Errorf("test %s traffic sums to %d, want 100", t.Name, total)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tests[t.Name]; exists {
		return fmt.Errorf("test %s already exists", t.Name)
	}
	if active, ok := m.bySect[t.Section]; ok {
		return fmt.Errorf("section %s already covered by test %s", t.Section, active)
	}

	t.Active = true
	t.StartedAt = m.now()
	t.metrics = make(map[string]*VariantMetrics, len(t.Variants))
	for i := range t.Variants {
		t.metrics[t.Variants[i].ID] = &VariantMetrics{}
	}
	m.tests[t.Name] = &t
	m.bySect[t.Section] = t.Name
	m.assignments[t.Name] = make(map[string]string)

	m.logger.Info().
		Str("test", t.Name).
		Str("section", string(t.Section)).
		Int("variants", len(t.Variants)).
		Msg("test created")
	return nil
}

// AlgorithmForSection resolves the variant assignment for a user and
// section. Sections without an active test resolve to hybrid with no
// parameters.
func (m *Manager) AlgorithmForSection(userID string, section recommend.SectionType) recommend.VariantAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.bySect[section]
	if !ok {
		return recommend.VariantAssignment{Algorithm: recommend.AlgorithmHybrid}
	}
	t := m.tests[name]
	if t == nil || !t.Active {
		return recommend.VariantAssignment{Algorithm: recommend.AlgorithmHybrid}
	}

	v := assignVariant(t, userID)
	m.assignments[name][userID] = v.ID
	return recommend.VariantAssignment{
		Algorithm:  v.Algorithm,
		Parameters: v.Parameters,
		TestName:   t.Name,
		VariantID:  v.ID,
	}
}

// assignVariant walks the variant traffic shares with the user's hash
// bucket. Deterministic for a given user and test.
func assignVariant(t *Test, userID string) *Variant {
	bucket := int(hashBucket(userID))
	acc := 0
	for i := range t.Variants {
		acc += t.Variants[i].TrafficPercent
		if bucket < acc {
			return &t.Variants[i]
		}
	}
	return &t.Variants[len(t.Variants)-1]
}

// hashBucket maps a user ID onto [0, 100).
func hashBucket(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % 100
}

// VariantFor returns the recorded assignment, if the user has one.
func (m *Manager) VariantFor(testName, userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byUser, ok := m.assignments[testName]
	if !ok {
		return "", false
	}
	v, ok := byUser[userID]
	return v, ok
}

// TrackEvent records an engagement event against a variant. Unknown
// tests, variants and event types are dropped with a warning.
// sessionSec is only meaningful for session_end events.
func (m *Manager) TrackEvent(testName, variantID, event string, sessionSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tests[testName]
	if !ok || !t.Active {
		m.logger.Warn().Str("test", testName).Msg("event for unknown or inactive test")
		return
	}
	vm, ok := t.metrics[variantID]
	if !ok {
		m.logger.Warn().Str("test", testName).Str("variant", variantID).Msg("event for unknown variant")
		return
	}

	switch event {
	case EventView:
		vm.Views++
	case EventClick:
		vm.Clicks++
	case EventPlay:
		vm.Plays++
	case EventPlayFull:
		vm.Plays++
		vm.PlayThroughs++
	case EventSkip:
		vm.Skips++
	case EventLike:
		vm.Likes++
	case EventSessionEnd:
		vm.Sessions++
		vm.SessionSec += sessionSec
	default:
		m.logger.Warn().Str("event", event).Msg("unknown event type")
	}
}

// EndTest concludes a test, scores each variant on engagement and
// returns the result with the winning variant.
func (m *Manager) EndTest(testName string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tests[testName]
	if !ok {
		return nil, fmt.Errorf("test %s not found", testName)
	}
	if !t.Active {
		return nil, fmt.Errorf("test %s already concluded", testName)
	}

	res := &Result{
		TestName: testName,
		EndedAt:  m.now(),
	}
	var totalViews int64
	for i := range t.Variants {
		id := t.Variants[i].ID
		vm := t.metrics[id]
		totalViews += vm.Views
		res.Variants = append(res.Variants, VariantResult{
			VariantID: id,
			Metrics:   *vm,
			Score:     engagementScore(vm),
		})
	}
	sort.Slice(res.Variants, func(i, j int) bool {
		if res.Variants[i].Score != res.Variants[j].Score {
			return res.Variants[i].Score > res.Variants[j].Score
		}
		return res.Variants[i].VariantID < res.Variants[j].VariantID
	})
	res.Winner = res.Variants[0].VariantID
	res.Confidence = confidenceTier(totalViews)

	t.Active = false
	t.EndedAt = res.EndedAt
	delete(m.bySect, t.Section)

	m.logger.Info().
		Str("test", testName).
		Str("winner", res.Winner).
		Float64("confidence", res.Confidence).
		Msg("test concluded")
	return res, nil
}

// engagementScore combines per-variant rates into one ranking value.
func engagementScore(vm *VariantMetrics) float64 {
	ctr := rate(vm.Clicks, vm.Views)
	playThrough := rate(vm.PlayThroughs, vm.Plays)
	like := rate(vm.Likes, vm.Plays)
	skip := rate(vm.Skips, vm.Plays)

	session := 0.0
	if vm.Sessions > 0 {
		session = vm.SessionSec / float64(vm.Sessions) / sessionCeilingSec
		if session > 1 {
			session = 1
		}
	}

	return ctr*clickWeight +
		playThrough*playThroughWeight +
		like*likeWeight +
		session*sessionWeight -
		skip*skipPenalty
}

func rate(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// confidenceTier maps total sample size to a coarse confidence value.
func confidenceTier(views int64) float64 {
	switch {
	case views < 100:
		return 0
	case views < 1000:
		return 0.7
	case views < 10000:
		return 0.85
	default:
		return 0.95
	}
}

// Tests returns a snapshot of all registered tests, sorted by name.
func (m *Manager) Tests() []Test {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Test, 0, len(m.tests))
	for _, t := range m.tests {
		cp := *t
		cp.metrics = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TestMetrics returns the live counters for a test's variants.
func (m *Manager) TestMetrics(testName string) (map[string]VariantMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tests[testName]
	if !ok {
		return nil, fmt.Errorf("test %s not found", testName)
	}
	out := make(map[string]VariantMetrics, len(t.metrics))
	for id, vm := range t.metrics {
		out[id] = *vm
	}
	return out, nil
}

var _ recommend.VariantResolver = (*Manager)(nil)
