// Package history keeps the per-user session log used by the heuristic
// predictors, plus running cumulative statistics used by the classifier.
// A Log belongs to one user and is serialized by its owner.
package history

import "github.com/flowstate/pulse/internal/domain/model"

// DefaultLimit caps the per-user session list; oldest entries evict first.
const DefaultLimit = 100

// CumulativeStats accumulates over every appended session, including ones
// evicted from the capped list.
type CumulativeStats struct {
	TotalSessions     int
	FocusSum          float64
	QualitySum        float64
	TotalDuration     int
	TotalDistractions int
	MaxFocus          float64
	MinFocus          float64
}

// AvgFocus returns the running mean focus score.
func (s CumulativeStats) AvgFocus() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return s.FocusSum / float64(s.TotalSessions)
}

// AvgQuality returns the running mean quality score.
func (s CumulativeStats) AvgQuality() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return s.QualitySum / float64(s.TotalSessions)
}

// Log is one user's bounded session history.
type Log struct {
	limit    int
	sessions []model.SessionRecord
	stats    CumulativeStats
}

// NewLog constructs a Log with the given cap; limit <= 0 uses DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// Restore seeds cumulative stats from a persisted aggregate. The session list
// itself restarts empty; only the aggregate survives.
func (l *Log) Restore(stats CumulativeStats) {
	l.stats = stats
}

// Append adds a session, evicting the oldest beyond the cap, and folds it
// into the cumulative stats.
func (l *Log) Append(rec model.SessionRecord) {
	l.sessions = append(l.sessions, rec)
	if len(l.sessions) > l.limit {
		l.sessions = l.sessions[len(l.sessions)-l.limit:]
	}

	if l.stats.TotalSessions == 0 || rec.FocusScore > l.stats.MaxFocus {
		l.stats.MaxFocus = rec.FocusScore
	}
	if l.stats.TotalSessions == 0 || rec.FocusScore < l.stats.MinFocus {
		l.stats.MinFocus = rec.FocusScore
	}
	l.stats.TotalSessions++
	l.stats.FocusSum += rec.FocusScore
	l.stats.QualitySum += rec.QualityScore
	l.stats.TotalDuration += rec.DurationSeconds
	l.stats.TotalDistractions += rec.Distractions
}

// Len returns the number of retained sessions.
func (l *Log) Len() int {
	return len(l.sessions)
}

// Sessions returns a copy of the retained sessions, oldest first.
func (l *Log) Sessions() []model.SessionRecord {
	out := make([]model.SessionRecord, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// Stats returns the cumulative statistics.
func (l *Log) Stats() CumulativeStats {
	return l.stats
}
