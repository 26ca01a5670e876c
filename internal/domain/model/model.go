// Package model contains domain models passed between layers.
package model

import "time"

// EventType enumerates the fine-grained activity events the engine accepts.
type EventType string

// Known event types.
const (
	EventKeystroke EventType = "keystroke"
	EventBlur      EventType = "blur"
	EventTabSwitch EventType = "tab_switch"
	EventTimerTick EventType = "timer_tick"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventKeystroke, EventBlur, EventTabSwitch, EventTimerTick:
		return true
	}
	return false
}

// SessionType enumerates the kinds of completed work sessions.
type SessionType string

// Known session types.
const (
	SessionCode       SessionType = "code"
	SessionWhiteboard SessionType = "whiteboard"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	return t == SessionCode || t == SessionWhiteboard
}

// Event is a single normalized activity event. Immutable once normalized.
// EventTime drives window assignment and may be out of order relative to
// ArrivalSeq, which totally orders ingestion for tie-breaking and replay
// detection.
type Event struct {
	UserID     string    `json:"user_id"`
	Type       EventType `json:"event_type"`
	Value      float64   `json:"value"`
	EventTime  time.Time `json:"event_time"`
	ArrivalSeq uint64    `json:"arrival_seq"`
}

// SessionRecord is one completed work session, appended to the user's history.
type SessionRecord struct {
	UserID          string      `json:"user_id"`
	Type            SessionType `json:"session_type"`
	StartTime       time.Time   `json:"start_time"`
	DurationSeconds int         `json:"duration_seconds"`
	FocusScore      float64     `json:"focus_score"`
	QualityScore    float64     `json:"quality_score"`
	Distractions    int         `json:"distractions"`
	Language        string      `json:"language"`
	LinesOfCode     int         `json:"lines_of_code"`
	CreativityScore int         `json:"creativity_score"`
}

// FeatureVector is the per-user merge of the current window buckets across the
// core metric streams, plus the composite flow score. Derived on every update,
// never stored durably.
type FeatureVector struct {
	UserID           string    `json:"user_id"`
	KeystrokeCount   int       `json:"keystroke_count"`
	DistractionCount int       `json:"distraction_count"`
	SessionSeconds   int       `json:"session_seconds"`
	TypingScore      float64   `json:"typing_score"`
	DurationScore    float64   `json:"duration_score"`
	FocusScore       float64   `json:"focus_score"`
	FlowScore        float64   `json:"flow_score"`
	ComputedAt       time.Time `json:"computed_at"`
}

// AlertKind identifies a rule in the intervention rule table.
type AlertKind string

// Rule kinds. Window-scoped kinds dedup per owning bucket; session-scoped
// kinds are evaluated on each history append.
const (
	KindDeepFlow              AlertKind = "deep_flow"
	KindDistractionSpike      AlertKind = "distraction_spike"
	KindBurnoutRisk           AlertKind = "burnout_risk"
	KindContextSwitch         AlertKind = "context_switch"
	KindHighVelocity          AlertKind = "high_velocity"
	KindReturnFromBreak       AlertKind = "return_from_break"
	KindSessionBurnoutWarning AlertKind = "session_burnout_warning"
	KindDecliningFocus        AlertKind = "declining_focus"
	KindLongSessionPraise     AlertKind = "long_session_praise"
	KindStreakCelebration     AlertKind = "streak_celebration"
)

// Severity grades an alert. The rule table assigns one severity per kind.
type Severity string

// Severities, ordered roughly by urgency.
const (
	SeverityInfo    Severity = "info"
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityWarning Severity = "warning"
	SeverityHigh    Severity = "high"
)

// Alert is one rule firing. Appended to the owning user's bounded alert log
// and offered to the export sink.
type Alert struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Kind        AlertKind      `json:"kind"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	TriggeredAt time.Time      `json:"triggered_at"`
}

// ProductivityLevel classifies a user's overall productivity.
type ProductivityLevel string

// Productivity levels.
const (
	LevelExcellent        ProductivityLevel = "excellent"
	LevelGood             ProductivityLevel = "good"
	LevelModerate         ProductivityLevel = "moderate"
	LevelNeedsImprovement ProductivityLevel = "needs_improvement"
)

// Consistency describes focus score spread.
type Consistency string

// Consistency labels.
const (
	ConsistencyConsistent Consistency = "consistent"
	ConsistencyVariable   Consistency = "variable"
)

// BurnoutRisk grades burnout exposure.
type BurnoutRisk string

// Burnout risk levels.
const (
	BurnoutLow    BurnoutRisk = "low"
	BurnoutMedium BurnoutRisk = "medium"
	BurnoutHigh   BurnoutRisk = "high"
)

// PatternType labels the user's working pattern.
type PatternType string

// Pattern types.
const (
	PatternPeakPerformer PatternType = "peak_performer"
	PatternImproving     PatternType = "improving"
	PatternStruggling    PatternType = "struggling"
	PatternInconsistent  PatternType = "inconsistent"
)

// Classification is the full categorical output recomputed wholesale from a
// user's cumulative session statistics.
type Classification struct {
	UserID             string            `json:"user_id"`
	TotalSessions      int               `json:"total_sessions"`
	AvgFocusScore      float64           `json:"avg_focus_score"`
	AvgQualityScore    float64           `json:"avg_quality_score"`
	TotalDuration      int               `json:"total_duration"`
	TotalDistractions  int               `json:"total_distractions"`
	AvgSessionDuration float64           `json:"avg_session_duration"`
	DistractionRate    float64           `json:"distraction_rate"`
	ProductivityLevel  ProductivityLevel `json:"productivity_level"`
	FocusConsistency   Consistency       `json:"focus_consistency"`
	BurnoutRisk        BurnoutRisk       `json:"burnout_risk"`
	PatternType        PatternType       `json:"pattern_type"`
	Recommendation     string            `json:"recommendation"`
}

// Confidence grades a heuristic prediction.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Momentum describes the short-term focus trend.
type Momentum string

// Momentum labels.
const (
	MomentumIncreasing Momentum = "increasing"
	MomentumDecreasing Momentum = "decreasing"
	MomentumStable     Momentum = "stable"
	MomentumNeutral    Momentum = "neutral"
)

// BestHour is the predicted most productive hour of day.
type BestHour struct {
	Hour          int        `json:"hour"`
	ExpectedFocus float64    `json:"expected_focus"`
	Confidence    Confidence `json:"confidence"`
}

// HourlyPattern is one entry of the per-hour focus breakdown.
type HourlyPattern struct {
	Hour     int     `json:"hour"`
	AvgFocus float64 `json:"avg_focus"`
}

// Predictions is the heuristic predictor output over a user's session history.
type Predictions struct {
	UserID                 string          `json:"user_id"`
	Streak                 int             `json:"streak"`
	BestHour               BestHour        `json:"best_hour"`
	Momentum               Momentum        `json:"momentum"`
	OptimalDurationMinutes int             `json:"optimal_duration_minutes"`
	ProductivityScore      float64         `json:"productivity_score"`
	PredictedFocus         float64         `json:"predicted_focus"`
	BurnoutRisk            BurnoutRisk     `json:"burnout_risk"`
	BreakMinutes           int             `json:"break_minutes"`
	Patterns               []HourlyPattern `json:"patterns,omitempty"`
	ComputedAt             time.Time       `json:"computed_at"`
}
