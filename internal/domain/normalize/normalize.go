// Package normalize validates raw ingest records and canonicalizes them into
// domain models. Validation failures reject the record with no side effect;
// bad timestamps degrade to ingestion time and never fail the record.
package normalize

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/pkg/metrics"
)

// Documented defaults for optional fields.
const (
	defaultValue    = 1.0
	defaultLanguage = "unknown"
)

// RawEvent is the wire shape of an activity event before normalization.
type RawEvent struct {
	EventID   string   `json:"event_id,omitempty"`
	UserID    string   `json:"user_id"`
	EventType string   `json:"event_type"`
	Value     *float64 `json:"value,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// RawSession is the wire shape of a completed session record.
type RawSession struct {
	SessionID       string `json:"session_id,omitempty"`
	UserID          string `json:"user_id"`
	SessionType     string `json:"session_type"`
	StartTime       string `json:"start_time,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	FocusScore      int    `json:"focus_score"`
	QualityScore    int    `json:"quality_score"`
	Distractions    int    `json:"distractions"`
	Language        string `json:"language,omitempty"`
	LinesOfCode     int    `json:"lines_of_code,omitempty"`
	CreativityScore int    `json:"creativity_score,omitempty"`
}

// timestampLayouts are the accepted ISO-8601 forms, with and without zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithClock overrides the ingestion-time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalizer canonicalizes raw records and stamps events with a monotonic
// arrival sequence. Safe for concurrent use.
type Normalizer struct {
	seq atomic.Uint64
	now func() time.Time
}

// New constructs a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Event validates and canonicalizes a raw activity event.
func (n *Normalizer) Event(raw RawEvent) (model.Event, error) {
	if strings.TrimSpace(raw.UserID) == "" {
		return model.Event{}, &ValidationError{Field: "user_id"}
	}
	typ := model.EventType(strings.TrimSpace(raw.EventType))
	if raw.EventType == "" {
		return model.Event{}, &ValidationError{Field: "event_type"}
	}
	if !typ.Valid() {
		return model.Event{}, &ValidationError{Field: "event_type", Reason: "unknown value " + raw.EventType}
	}

	value := defaultValue
	if raw.Value != nil {
		value = *raw.Value
	}

	return model.Event{
		UserID:     raw.UserID,
		Type:       typ,
		Value:      value,
		EventTime:  n.parseTimestamp(raw.Timestamp),
		ArrivalSeq: n.seq.Add(1),
	}, nil
}

// Session validates and canonicalizes a raw session record.
func (n *Normalizer) Session(raw RawSession) (model.SessionRecord, error) {
	if strings.TrimSpace(raw.UserID) == "" {
		return model.SessionRecord{}, &ValidationError{Field: "user_id"}
	}
	typ := model.SessionType(strings.TrimSpace(raw.SessionType))
	if raw.SessionType == "" {
		return model.SessionRecord{}, &ValidationError{Field: "session_type"}
	}
	if !typ.Valid() {
		return model.SessionRecord{}, &ValidationError{Field: "session_type", Reason: "unknown value " + raw.SessionType}
	}

	language := raw.Language
	if language == "" {
		language = defaultLanguage
	}

	return model.SessionRecord{
		UserID:          raw.UserID,
		Type:            typ,
		StartTime:       n.parseTimestamp(raw.StartTime),
		DurationSeconds: raw.DurationSeconds,
		FocusScore:      float64(raw.FocusScore),
		QualityScore:    float64(raw.QualityScore),
		Distractions:    raw.Distractions,
		Language:        language,
		LinesOfCode:     raw.LinesOfCode,
		CreativityScore: raw.CreativityScore,
	}, nil
}

// parseTimestamp accepts ISO-8601 with or without a zone suffix. A missing or
// unparseable timestamp falls back to ingestion time so a bad record degrades
// instead of failing the batch.
func (n *Normalizer) parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return n.now()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	metrics.RecordParseWarning()
	return n.now()
}
