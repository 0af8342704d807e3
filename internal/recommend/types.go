// Cadenza - Music Streaming Recommendation Service
// Copyright 2026 Cadenza Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-audio/cadenza

package recommend

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// BehaviorAction classifies a user-track interaction event.
type BehaviorAction string

const (
	// ActionPlay indicates the track was played.
	ActionPlay BehaviorAction = "play"
	// ActionSkip indicates the track was skipped.
	ActionSkip BehaviorAction = "skip"
	// ActionLike indicates the track was liked.
	ActionLike BehaviorAction = "like"
	// ActionShare indicates the track was shared.
	ActionShare BehaviorAction = "share"
	// ActionAddToPlaylist indicates the track was added to a playlist.
	ActionAddToPlaylist BehaviorAction = "add_to_playlist"
)

// Valid reports whether the action is a known behavior type.
func (a BehaviorAction) Valid() bool {
	switch a {
	case ActionPlay, ActionSkip, ActionLike, ActionShare, ActionAddToPlaylist:
		return true
	default:
		return false
	}
}

// UserBehavior represents a single user-track interaction event.
// Behaviors form an append-only log feeding profile updates and
// collaborative-filter ratings.
type UserBehavior struct {
	// UserID is the user who performed the action.
	UserID string `json:"user_id"`

	// TrackID is the track acted on.
	TrackID string `json:"track_id"`

	// Action is the interaction type.
	Action BehaviorAction `json:"action"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`

	// ListenDuration is seconds of playback before the event.
	// Only meaningful for play actions.
	ListenDuration int `json:"listen_duration,omitempty"`

	// SessionID groups interactions within a listening session.
	SessionID string `json:"session_id,omitempty"`

	// Device is the playback device type (mobile, desktop, speaker).
	Device string `json:"device,omitempty"`
}

// Track represents a catalog entity. Tracks are immutable once loaded.
type Track struct {
	// ID is the unique track identifier.
	ID string `json:"id"`

	// Title is the track title.
	Title string `json:"title"`

	// Artist is the primary artist display name.
	Artist string `json:"artist"`

	// ArtistID is the primary artist identifier.
	ArtistID string `json:"artist_id"`

	// Album is the album title.
	Album string `json:"album,omitempty"`

	// DurationSeconds is the track length in seconds.
	DurationSeconds int `json:"duration_seconds"`

	// Genres is the slice of genre names.
	Genres []string `json:"genres"`

	// ReleaseDate is when the track was released.
	ReleaseDate time.Time `json:"release_date"`

	// Popularity is a pre-computed catalog popularity metric (0-100).
	Popularity float64 `json:"popularity,omitempty"`
}

// TrackFeatures is the per-track audio analysis vector. One per track,
// computed or seeded once and read-only thereafter.
type TrackFeatures struct {
	// TrackID is the track this vector describes.
	TrackID string `json:"track_id"`

	// Danceability describes rhythmic suitability for dancing (0-1).
	Danceability float64 `json:"danceability"`

	// Energy is perceived intensity and activity (0-1).
	Energy float64 `json:"energy"`

	// Valence is musical positiveness (0-1).
	Valence float64 `json:"valence"`

	// Acousticness is confidence the track is acoustic (0-1).
	Acousticness float64 `json:"acousticness"`

	// Instrumentalness predicts absence of vocals (0-1).
	Instrumentalness float64 `json:"instrumentalness"`

	// Liveness detects audience presence (0-1).
	Liveness float64 `json:"liveness"`

	// Speechiness detects spoken words (0-1).
	Speechiness float64 `json:"speechiness"`

	// Tempo is the estimated tempo in BPM.
	Tempo float64 `json:"tempo"`

	// Loudness is overall loudness in dB.
	Loudness float64 `json:"loudness"`

	// Mode is the modality (0 = minor, 1 = major).
	Mode int `json:"mode"`

	// Key is the estimated key (pitch class 0-11).
	Key int `json:"key"`

	// Genres mirrors the catalog genres for similarity scoring.
	Genres []string `json:"genres,omitempty"`

	// MoodTags are derived mood labels (happy, melancholic, energetic).
	MoodTags []string `json:"mood_tags,omitempty"`

	// ContextTags are derived usage labels (workout, focus, sleep).
	ContextTags []string `json:"context_tags,omitempty"`
}

// Vector returns the seven audio features used for cosine similarity.
func (f *TrackFeatures) Vector() [7]float64 {
	return [7]float64{
		f.Danceability, f.Energy, f.Valence, f.Acousticness,
		f.Instrumentalness, f.Liveness, f.Speechiness,
	}
}

// GenrePreference is a per-genre affinity aggregate within a user profile.
type GenrePreference struct {
	// Genre is the genre name.
	Genre string `json:"genre"`

	// Score is the preference strength (0-1).
	Score float64 `json:"score"`

	// PlayCount is the number of plays attributed to this genre.
	PlayCount int `json:"play_count"`

	// LastActivity is the most recent interaction with this genre.
	LastActivity time.Time `json:"last_activity"`
}

// ArtistPreference is a per-artist affinity aggregate within a user profile.
type ArtistPreference struct {
	// ArtistID is the artist identifier.
	ArtistID string `json:"artist_id"`

	// Name is the artist display name.
	Name string `json:"name"`

	// Score is the preference strength (0-1).
	Score float64 `json:"score"`

	// PlayCount is the number of plays for this artist.
	PlayCount int `json:"play_count"`

	// Followed indicates the user follows the artist.
	Followed bool `json:"followed"`

	// LastPlayed is the most recent play for this artist.
	LastPlayed time.Time `json:"last_played"`
}

// FeaturePreferences holds a user's preferred audio feature values,
// maintained as exponential moving averages over played tracks.
type FeaturePreferences struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Speechiness      float64 `json:"speechiness"`
}

// TimePreference captures what a user listens to at a given time of day.
type TimePreference struct {
	// Genres are the preferred genres for this time slot.
	Genres []string `json:"genres"`

	// Energy is the preferred energy level (0-1).
	Energy float64 `json:"energy"`
}

// UserProfile is the per-user preference aggregate. It is mutated by
// behavior-tracking events and read by every recommendation strategy.
type UserProfile struct {
	// UserID is the profile owner.
	UserID string `json:"user_id"`

	// FavoriteGenres is ordered by descending score.
	FavoriteGenres []GenrePreference `json:"favorite_genres"`

	// FavoriteArtists is ordered by descending score.
	FavoriteArtists []ArtistPreference `json:"favorite_artists"`

	// FeaturePrefs is the preferred audio feature vector.
	FeaturePrefs FeaturePreferences `json:"feature_prefs"`

	// TimePrefs maps time of day to listening preferences.
	TimePrefs map[TimeOfDay]TimePreference `json:"time_prefs,omitempty"`

	// Version increments on each profile update.
	Version int `json:"version"`

	// UpdatedAt is the last profile mutation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalInteractions sums play counts across favorite genres. It is the
// signal used to gate cold-start routing.
func (p *UserProfile) TotalInteractions() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, g := range p.FavoriteGenres {
		total += g.PlayCount
	}
	return total
}

// TimeOfDay partitions the day into listening slots.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// TimeOfDayFromHour maps an hour (0-23) to a listening slot.
func TimeOfDayFromHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 17:
		return TimeAfternoon
	case hour >= 17 && hour < 22:
		return TimeEvening
	default:
		return TimeNight
	}
}

// Season is the meteorological season, used for seasonal context.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// SeasonFromMonth maps a month to its meteorological season.
func SeasonFromMonth(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

// Context carries the situational signals a request is scored against.
// It is derived from wall-clock time when the caller does not supply one
// and is never persisted.
type Context struct {
	// TimeOfDay is the listening slot.
	TimeOfDay TimeOfDay `json:"time_of_day,omitempty"`

	// DayOfWeek is the day (0=Sunday, 6=Saturday).
	DayOfWeek int `json:"day_of_week"`

	// Season is the meteorological season.
	Season Season `json:"season,omitempty"`

	// Mood is an optional caller-supplied mood hint.
	Mood string `json:"mood,omitempty"`

	// Activity is an optional activity hint (workout, focus, commute).
	Activity string `json:"activity,omitempty"`

	// Location is an optional coarse location hint.
	Location string `json:"location,omitempty"`

	// Device is the requesting device type.
	Device string `json:"device,omitempty"`
}

// ContextFromTime derives a Context from a wall-clock instant.
func ContextFromTime(t time.Time) Context {
	return Context{
		TimeOfDay: TimeOfDayFromHour(t.Hour()),
		DayOfWeek: int(t.Weekday()),
		Season:    SeasonFromMonth(t.Month()),
	}
}

// Algorithm identifies a recommendation strategy. It is a closed enum;
// the engine dispatches through a lookup table keyed by this type.
type Algorithm int

const (
	// AlgorithmUnspecified means no explicit override was requested.
	AlgorithmUnspecified Algorithm = iota
	// AlgorithmCollaborative scores via user-user similarity.
	AlgorithmCollaborative
	// AlgorithmContentBased scores via genre/artist/feature affinity.
	AlgorithmContentBased
	// AlgorithmHybrid blends collaborative, content and popularity.
	AlgorithmHybrid
	// AlgorithmPopularity ranks by catalog-wide play statistics.
	AlgorithmPopularity
	// AlgorithmTimeContextual matches the user's time-of-day preferences.
	AlgorithmTimeContextual
	// AlgorithmMoodBased matches audio features to a requested mood.
	AlgorithmMoodBased
)

// String returns the wire name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmCollaborative:
		return "collaborative_filtering"
	case AlgorithmContentBased:
		return "content_based"
	case AlgorithmHybrid:
		return "hybrid"
	case AlgorithmPopularity:
		return "popularity_based"
	case AlgorithmTimeContextual:
		return "time_contextual"
	case AlgorithmMoodBased:
		return "mood_based"
	default:
		return "unspecified"
	}
}

// ParseAlgorithm resolves a wire name to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch s {
	case "collaborative_filtering":
		return AlgorithmCollaborative, true
	case "content_based":
		return AlgorithmContentBased, true
	case "hybrid":
		return AlgorithmHybrid, true
	case "popularity_based":
		return AlgorithmPopularity, true
	case "time_contextual":
		return AlgorithmTimeContextual, true
	case "mood_based":
		return AlgorithmMoodBased, true
	case "", "unspecified":
		return AlgorithmUnspecified, true
	default:
		return AlgorithmUnspecified, false
	}
}

// MarshalJSON renders the algorithm as its wire name.
func (a Algorithm) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses the wire name.
func (a *Algorithm) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, ok := ParseAlgorithm(s)
	if !ok {
		return fmt.Errorf("unknown algorithm %q", s)
	}
	*a = parsed
	return nil
}

// Level selects a diversity or freshness boost tier.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Weight returns the re-scoring weight for the level. Unknown and empty
// levels fall back to the medium weight.
func (l Level) Weight() float64 {
	switch l {
	case LevelLow:
		return 0.1
	case LevelHigh:
		return 0.4
	default:
		return 0.2
	}
}

// ReasonType classifies why a track was recommended.
type ReasonType string

const (
	ReasonGenreMatch    ReasonType = "genre_match"
	ReasonArtistMatch   ReasonType = "artist_match"
	ReasonSimilarUsers  ReasonType = "similar_users"
	ReasonAudioFeatures ReasonType = "audio_features"
	ReasonPopularity    ReasonType = "popularity"
	ReasonTrending      ReasonType = "trending"
	ReasonTimeContext   ReasonType = "time_context"
	ReasonMoodMatch     ReasonType = "mood_match"
	ReasonExploration   ReasonType = "exploration"
	ReasonOnboarding    ReasonType = "onboarding"
)

// Reason provides an interpretable explanation for a recommendation.
type Reason struct {
	// Type classifies the signal.
	Type ReasonType `json:"type"`

	// Weight is the signal's contribution strength.
	Weight float64 `json:"weight"`

	// Explanation is the human-readable form.
	Explanation string `json:"explanation"`

	// Metadata carries signal-specific detail (genre name, artist name).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Score is the output unit of every strategy: one candidate track with
// its score, provenance and re-scoring inputs. Per-strategy scores are
// clamped to [0,1]; blended totals may exceed 1 since ordering, not an
// absolute scale, is the contract.
type Score struct {
	// TrackID is the recommended track.
	TrackID string `json:"track_id"`

	// Score is the ranking value.
	Score float64 `json:"score"`

	// Reasons explains the contributing signals.
	Reasons []Reason `json:"reasons,omitempty"`

	// Algorithm is the wire name of the producing strategy.
	Algorithm string `json:"algorithm"`

	// Freshness is the release-recency score (0-1).
	Freshness float64 `json:"freshness"`

	// Diversity measures deviation from established preferences (0-1).
	Diversity float64 `json:"diversity"`
}

// Request represents a recommendation request.
type Request struct {
	// UserID is the user to recommend for.
	UserID string `json:"user_id"`

	// Section is the home-feed section being populated.
	Section SectionType `json:"section_type,omitempty"`

	// Limit is the maximum number of tracks to return.
	// Defaults to Config.Limits.DefaultLimit if zero.
	Limit int `json:"limit,omitempty"`

	// Algorithm is an explicit strategy override. When unspecified the
	// engine resolves the strategy via A/B assignment for the section.
	Algorithm Algorithm `json:"algorithm,omitempty"`

	// ExcludeTrackIDs lists tracks that must never appear in the response.
	ExcludeTrackIDs []string `json:"exclude_track_ids,omitempty"`

	// Exclude is the set form of ExcludeTrackIDs, built by the engine.
	Exclude map[string]struct{} `json:"-"`

	// DiversityLevel selects the diversity re-scoring tier.
	DiversityLevel Level `json:"diversity_level,omitempty"`

	// FreshnessLevel selects the freshness re-scoring tier.
	FreshnessLevel Level `json:"freshness_level,omitempty"`

	// Context is the situational context; derived from the clock if nil.
	Context *Context `json:"context,omitempty"`

	// Params carries A/B variant parameters merged in by the engine.
	Params map[string]float64 `json:"-"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	// Refresh bypasses the response cache when set.
	Refresh bool `json:"-"`
}

// Excluded reports whether a track is filtered out by the request.
func (r *Request) Excluded(trackID string) bool {
	if r.Exclude == nil {
		return false
	}
	_, ok := r.Exclude[trackID]
	return ok
}

// BuildExclusions materializes Exclude from ExcludeTrackIDs.
func (r *Request) BuildExclusions() {
	if len(r.ExcludeTrackIDs) == 0 {
		return
	}
	r.Exclude = make(map[string]struct{}, len(r.ExcludeTrackIDs))
	for _, id := range r.ExcludeTrackIDs {
		r.Exclude[id] = struct{}{}
	}
}

// Fingerprint returns a stable cache key for the request. Context, params
// and tracing fields are deliberately omitted so equivalent requests
// within a cache window share entries.
func (r *Request) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s|", r.UserID, r.Section, r.Limit,
		r.Algorithm, r.DiversityLevel, r.FreshnessLevel)
	if len(r.ExcludeTrackIDs) > 0 {
		ids := make([]string, len(r.ExcludeTrackIDs))
		copy(ids, r.ExcludeTrackIDs)
		sort.Strings(ids)
		for _, id := range ids {
			h.Write([]byte(id))
			h.Write([]byte{0})
		}
	}
	return fmt.Sprintf("rec:%s:%016x", r.UserID, h.Sum64())
}

// Response represents a recommendation response.
type Response struct {
	// Tracks is the ordered list of scored tracks.
	Tracks []Score `json:"tracks"`

	// TotalAvailable is the number of candidates considered.
	TotalAvailable int `json:"total_available"`

	// Algorithm is the wire name of the resolved strategy.
	Algorithm string `json:"algorithm"`

	// GeneratedAt is when the response was computed.
	GeneratedAt time.Time `json:"generated_at"`

	// ValidUntil bounds the cache validity window.
	ValidUntil time.Time `json:"valid_until"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// ProcessingTimeMS is the computation latency in milliseconds.
	ProcessingTimeMS int64 `json:"processing_time_ms"`

	// CacheHit indicates the response was served from cache.
	CacheHit bool `json:"cache_hit"`

	// UserProfileVersion is the profile version scored against.
	UserProfileVersion int `json:"user_profile_version"`

	// ABTestVariant is the assigned variant, if any.
	ABTestVariant string `json:"ab_test_variant,omitempty"`

	// ColdStart indicates the cold-start path produced this response.
	ColdStart bool `json:"cold_start,omitempty"`

	// Strategy is the cold-start strategy used, if any.
	Strategy string `json:"strategy,omitempty"`

	// Fallback indicates the popularity fallback path was taken.
	Fallback bool `json:"fallback,omitempty"`
}

// FreshnessScore decays a release date over fixed day buckets.
func FreshnessScore(releaseDate, now time.Time) float64 {
	age := now.Sub(releaseDate)
	switch {
	case age < 7*24*time.Hour:
		return 1.0
	case age < 30*24*time.Hour:
		return 0.8
	case age < 90*24*time.Hour:
		return 0.6
	case age < 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// TrainingData is the snapshot a strategy trains on.
type TrainingData struct {
	// Behaviors is the interaction log, oldest first.
	Behaviors []UserBehavior

	// Tracks is the full catalog.
	Tracks []Track

	// Features is the audio feature vector per track.
	Features []TrackFeatures
}

// Strategy defines the interface all recommendation strategies implement.
type Strategy interface {
	// Algorithm returns the strategy identifier.
	Algorithm() Algorithm

	// Train fits the strategy on the given snapshot.
	Train(ctx context.Context, data TrainingData) error

	// Recommend scores candidate tracks for the request. Per-strategy
	// scores are in [0,1]. Exclusions from the request must be honored
	// as a filter precondition, not a post-filter.
	Recommend(ctx context.Context, req *Request, profile *UserProfile, rctx Context) ([]Score, error)

	// IsTrained reports whether the strategy is ready to score.
	IsTrained() bool
}

// ColdStartHandler routes users with insufficient history.
type ColdStartHandler interface {
	// InColdStart reports whether the profile requires cold-start
	// handling. A nil profile is always in cold start.
	InColdStart(profile *UserProfile) bool

	// Recommend produces a full response via the cold-start strategies.
	Recommend(ctx context.Context, req *Request, profile *UserProfile, rctx Context) (*Response, error)
}

// VariantAssignment is the resolved A/B choice for a request.
type VariantAssignment struct {
	// Algorithm is the variant's strategy.
	Algorithm Algorithm `json:"algorithm"`

	// Parameters are variant-specific tuning values.
	Parameters map[string]float64 `json:"parameters,omitempty"`

	// TestName is the experiment the assignment belongs to.
	TestName string `json:"test_name,omitempty"`

	// VariantID identifies the assigned variant.
	VariantID string `json:"variant_id,omitempty"`
}

// VariantResolver assigns users to algorithm variants per section.
type VariantResolver interface {
	// AlgorithmForSection resolves the sticky variant assignment for a
	// user and section. Unmapped sections resolve to hybrid with no
	// parameters.
	AlgorithmForSection(userID string, section SectionType) VariantAssignment
}

// TrainingStatus represents the current training state of the engine.
type TrainingStatus struct {
	// IsTraining indicates training is currently in progress.
	IsTraining bool `json:"is_training"`

	// CurrentStrategy is the strategy currently being trained.
	CurrentStrategy string `json:"current_strategy,omitempty"`

	// LastTrainedAt is when training last completed.
	LastTrainedAt time.Time `json:"last_trained_at"`

	// LastTrainingDurationMS is how long the last training took.
	LastTrainingDurationMS int64 `json:"last_training_duration_ms"`

	// LastError contains the last training error, if any.
	LastError string `json:"last_error,omitempty"`

	// BehaviorCount is the number of behaviors in the training set.
	BehaviorCount int `json:"behavior_count"`

	// TrackCount is the number of catalog tracks.
	TrackCount int `json:"track_count"`

	// ModelVersion increments on each completed training run.
	ModelVersion int `json:"model_version"`
}
