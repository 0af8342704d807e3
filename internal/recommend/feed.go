// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import "time"

// SectionType names a home-feed section.
type SectionType string

const (
	SectionMadeForYou     SectionType = "made_for_you"
	SectionDiscoverWeekly SectionType = "discover_weekly"
	SectionDailyMix       SectionType = "daily_mix"
	SectionTrendingNow    SectionType = "trending_now"
	SectionNewReleases    SectionType = "new_releases"
	SectionPopularNow     SectionType = "popular_now"
	SectionGenreExplorer  SectionType = "genre_explorer"
	SectionMorningBoost   SectionType = "morning_boost"
	SectionEveningChill   SectionType = "evening_chill"
)

// SectionConfig describes how one home-feed section is built.
type SectionConfig struct {
	// Type is the section identifier.
	Type SectionType `json:"type"`

	// Title is the display title.
	Title string `json:"title"`

	// Priority orders sections in the feed, lowest first.
	Priority int `json:"priority"`

	// Limit is the number of tracks per section.
	Limit int `json:"limit"`

	// Personalized indicates the section uses the user's profile.
	Personalized bool `json:"personalized"`

	// RefreshInterval is how long the section stays valid.
	RefreshInterval time.Duration `json:"-"`

	// DiversityLevel is the section's diversity re-scoring tier.
	DiversityLevel Level `json:"-"`

	// FreshnessLevel is the section's freshness re-scoring tier.
	FreshnessLevel Level `json:"-"`
}

// FeedSection is one populated slice of the home feed.
type FeedSection struct {
	// Type is the section identifier.
	Type SectionType `json:"type"`

	// Title is the display title.
	Title string `json:"title"`

	// Priority orders sections in the feed, lowest first.
	Priority int `json:"priority"`

	// Personalized indicates the section used the user's profile.
	Personalized bool `json:"personalized"`

	// Tracks is the ordered recommendation list.
	Tracks []Score `json:"tracks"`

	// Algorithm is the strategy that populated the section.
	Algorithm string `json:"algorithm"`

	// RefreshAt is when the section should be regenerated.
	RefreshAt time.Time `json:"refresh_at"`
}

// HomeFeed is the assembled, prioritized section list for one user.
type HomeFeed struct {
	// UserID is the feed owner.
	UserID string `json:"user_id"`

	// Sections is ordered by ascending priority. Sections that failed
	// to generate are omitted.
	Sections []FeedSection `json:"sections"`

	// GeneratedAt is when the feed was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Diversity is the mean diversity across all section tracks.
	Diversity float64 `json:"diversity"`

	// Freshness is the mean freshness across all section tracks.
	Freshness float64 `json:"freshness"`

	// AverageConfidence is the mean score across all section tracks.
	AverageConfidence float64 `json:"average_confidence"`
}

// defaultSectionLimit is used when a section config omits a limit.
const defaultSectionLimit = 20

// returningUserSections is the feed layout for users past cold start.
func returningUserSections() []SectionConfig {
	return []SectionConfig{
		{Type: SectionMadeForYou, Title: "Made For You", Priority: 1, Limit: defaultSectionLimit, Personalized: true, RefreshInterval: time.Hour, DiversityLevel: LevelMedium, FreshnessLevel: LevelMedium},
		{Type: SectionDailyMix, Title: "Daily Mix", Priority: 2, Limit: defaultSectionLimit, Personalized: true, RefreshInterval: 4 * time.Hour, DiversityLevel: LevelLow, FreshnessLevel: LevelLow},
		{Type: SectionDiscoverWeekly, Title: "Discover Weekly", Priority: 3, Limit: defaultSectionLimit, Personalized: true, RefreshInterval: 24 * time.Hour, DiversityLevel: LevelHigh, FreshnessLevel: LevelMedium},
		{Type: SectionTrendingNow, Title: "Trending Now", Priority: 4, Limit: defaultSectionLimit, Personalized: false, RefreshInterval: 30 * time.Minute, DiversityLevel: LevelLow, FreshnessLevel: LevelHigh},
		{Type: SectionNewReleases, Title: "New Releases", Priority: 5, Limit: defaultSectionLimit, Personalized: false, RefreshInterval: 6 * time.Hour, DiversityLevel: LevelMedium, FreshnessLevel: LevelHigh},
	}
}

// newUserSections is the feed layout for users still in cold start.
func newUserSections() []SectionConfig {
	return []SectionConfig{
		{Type: SectionPopularNow, Title: "Popular Right Now", Priority: 1, Limit: defaultSectionLimit, Personalized: false, RefreshInterval: 30 * time.Minute, DiversityLevel: LevelMedium, FreshnessLevel: LevelMedium},
		{Type: SectionTrendingNow, Title: "Trending Now", Priority: 2, Limit: defaultSectionLimit, Personalized: false, RefreshInterval: 30 * time.Minute, DiversityLevel: LevelLow, FreshnessLevel: LevelHigh},
		{Type: SectionGenreExplorer, Title: "Explore Genres", Priority: 3, Limit: defaultSectionLimit, Personalized: false, RefreshInterval: time.Hour, DiversityLevel: LevelHigh, FreshnessLevel: LevelMedium},
	}
}

// sectionConfigFor finds the layout config for a section across all
// known feed layouts, including the time-of-day extras.
func sectionConfigFor(t SectionType) (SectionConfig, bool) {
	for _, sc := range returningUserSections() {
		if sc.Type == t {
			return sc, true
		}
	}
	for _, sc := range newUserSections() {
		if sc.Type == t {
			return sc, true
		}
	}
	for _, tod := range []TimeOfDay{TimeMorning, TimeEvening} {
		if sc := timeOfDaySection(tod); sc != nil && sc.Type == t {
			return *sc, true
		}
	}
	return SectionConfig{}, false
}

// timeOfDaySection returns an extra section for morning and evening
// feeds, or nil for other times of day.
func timeOfDaySection(tod TimeOfDay) *SectionConfig {
	switch tod {
	case TimeMorning:
		return &SectionConfig{Type: SectionMorningBoost, Title: "Morning Boost", Priority: 0, Limit: defaultSectionLimit, Personalized: true, RefreshInterval: time.Hour, DiversityLevel: LevelLow, FreshnessLevel: LevelLow}
	case TimeEvening:
		return &SectionConfig{Type: SectionEveningChill, Title: "Evening Chill", Priority: 0, Limit: defaultSectionLimit, Personalized: true, RefreshInterval: time.Hour, DiversityLevel: LevelLow, FreshnessLevel: LevelLow}
	default:
		return nil
	}
}
