// Package rules evaluates the intervention rule table against the latest
// window aggregates, feature vector, and session history, with per-bucket
// alert deduplication and a bounded per-user alert log.
//
// An Engine belongs to one user and is serialized by its owner; snapshots for
// readers are published by the repository layer.
package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowstate/pulse/internal/domain/model"
)

// Literal rule thresholds.
const (
	deepFlowScore        = 80.0
	distractionSpikeMax  = 5
	burnoutFlowScore     = 40.0
	burnoutMinSeconds    = 30
	contextSwitchMax     = 10
	highVelocityMax      = 200
	dailySessionMax      = 8
	decliningFocusWindow = 3
	longSessionSeconds   = 7200
	streakMilestone      = 7

	trailingDay = 24 * time.Hour
)

// DefaultAlertLogLimit bounds the per-user alert log.
const DefaultAlertLogLimit = 200

// WindowInput bundles the state a window-rule evaluation reads. Bucket
// indices identify the owning window for dedup; counts are the current
// bucket's reducer values.
type WindowInput struct {
	Vector         model.FeatureVector
	FlowIndex      int64
	TabSwitchCount int
	TabSwitchIndex int64
	VelocityCount  int
	VelocityIndex  int64
	BlurObserved   bool
}

// SessionInput bundles the state a session-rule evaluation reads.
type SessionInput struct {
	Latest   model.SessionRecord
	Sessions []model.SessionRecord
	Streak   int
	Now      time.Time
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAlertLogLimit caps the per-user alert log.
func WithAlertLogLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.logLimit = limit
		}
	}
}

// Engine holds one user's rule state: last-fired bucket per window rule and
// the bounded alert log.
type Engine struct {
	userID   string
	logLimit int
	fired    map[model.AlertKind]int64
	log      []model.Alert
}

// New constructs an Engine for a user.
func New(userID string, opts ...Option) *Engine {
	e := &Engine{
		userID:   userID,
		logLimit: DefaultAlertLogLimit,
		fired:    make(map[model.AlertKind]int64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateWindow runs the window-scoped rules. Each rule re-arms once its
// owning bucket closes; within a bucket it fires at most once. The
// return_from_break rule is the deliberate exception: it fires on every
// observed blur with no window dedup.
func (e *Engine) EvaluateWindow(in WindowInput, now time.Time) []model.Alert {
	var out []model.Alert

	if in.Vector.FlowScore > deepFlowScore {
		if a, ok := e.fireBucketed(model.KindDeepFlow, model.SeverityInfo,
			"Deep flow detected. Protect this time.",
			map[string]any{"flow_score": in.Vector.FlowScore}, in.FlowIndex, now); ok {
			out = append(out, a)
		}
	}

	if in.Vector.DistractionCount > distractionSpikeMax {
		if a, ok := e.fireBucketed(model.KindDistractionSpike, model.SeverityWarning,
			"Distractions are spiking. Consider closing noisy apps.",
			map[string]any{"distraction_count": in.Vector.DistractionCount}, in.FlowIndex, now); ok {
			out = append(out, a)
		}
	}

	if in.Vector.FlowScore < burnoutFlowScore && in.Vector.SessionSeconds > burnoutMinSeconds {
		if a, ok := e.fireBucketed(model.KindBurnoutRisk, model.SeverityHigh,
			"Low flow with a long active stretch. Take a short break.",
			map[string]any{"flow_score": in.Vector.FlowScore, "session_seconds": in.Vector.SessionSeconds},
			in.FlowIndex, now); ok {
			out = append(out, a)
		}
	}

	if in.TabSwitchCount > contextSwitchMax {
		if a, ok := e.fireBucketed(model.KindContextSwitch, model.SeverityMedium,
			"You've switched contexts 10+ times. Try focusing on one task.",
			map[string]any{"switch_count": in.TabSwitchCount}, in.TabSwitchIndex, now); ok {
			out = append(out, a)
		}
	}

	if in.VelocityCount > highVelocityMax {
		if a, ok := e.fireBucketed(model.KindHighVelocity, model.SeverityHigh,
			"You're typing very fast. Take a breath and slow down.",
			map[string]any{"kpm": in.VelocityCount}, in.VelocityIndex, now); ok {
			out = append(out, a)
		}
	}

	if in.BlurObserved {
		out = append(out, e.emit(model.KindReturnFromBreak, model.SeverityLow,
			"Welcome back! Ready to resume your flow?", nil, now))
	}

	return out
}

// EvaluateSession runs the session-scoped rules on a history append.
func (e *Engine) EvaluateSession(in SessionInput) []model.Alert {
	var out []model.Alert

	if n := countWithin(in.Sessions, in.Now, trailingDay); n > dailySessionMax {
		day := in.Now.Unix() / int64(trailingDay.Seconds())
		if a, ok := e.fireBucketed(model.KindSessionBurnoutWarning, model.SeverityHigh,
			"High session count today. Consider taking breaks.",
			map[string]any{"sessions_today": n}, day, in.Now); ok {
			out = append(out, a)
		}
	}

	if focusStrictlyDeclining(in.Sessions) {
		out = append(out, e.emit(model.KindDecliningFocus, model.SeverityMedium,
			"Focus declining. Time for a break?", nil, in.Now))
	}

	if in.Latest.DurationSeconds > longSessionSeconds {
		out = append(out, e.emit(model.KindLongSessionPraise, model.SeverityLow,
			"Long session detected. Great focus!",
			map[string]any{"duration_seconds": in.Latest.DurationSeconds}, in.Now))
	}

	if in.Streak >= streakMilestone {
		out = append(out, e.emit(model.KindStreakCelebration, model.SeverityLow,
			fmt.Sprintf("Amazing! %d-day streak!", in.Streak),
			map[string]any{"streak": in.Streak}, in.Now))
	}

	return out
}

// Alerts returns up to limit log entries, newest first.
func (e *Engine) Alerts(limit int) []model.Alert {
	n := len(e.log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Alert, 0, n)
	for i := len(e.log) - 1; i >= len(e.log)-n; i-- {
		out = append(out, e.log[i])
	}
	return out
}

// Snapshot returns a copy of the full alert log, oldest first.
func (e *Engine) Snapshot() []model.Alert {
	out := make([]model.Alert, len(e.log))
	copy(out, e.log)
	return out
}

// fireBucketed emits unless the rule already fired for this bucket index.
func (e *Engine) fireBucketed(kind model.AlertKind, sev model.Severity, msg string, data map[string]any, bucket int64, now time.Time) (model.Alert, bool) {
	if last, ok := e.fired[kind]; ok && last == bucket {
		return model.Alert{}, false
	}
	e.fired[kind] = bucket
	return e.emit(kind, sev, msg, data, now), true
}

func (e *Engine) emit(kind model.AlertKind, sev model.Severity, msg string, data map[string]any, now time.Time) model.Alert {
	a := model.Alert{
		ID:          uuid.NewString(),
		UserID:      e.userID,
		Kind:        kind,
		Severity:    sev,
		Message:     msg,
		Data:        data,
		TriggeredAt: now,
	}
	e.log = append(e.log, a)
	if len(e.log) > e.logLimit {
		e.log = e.log[len(e.log)-e.logLimit:]
	}
	return a
}

func countWithin(sessions []model.SessionRecord, now time.Time, d time.Duration) int {
	n := 0
	cutoff := now.Add(-d)
	for _, s := range sessions {
		if s.StartTime.After(cutoff) {
			n++
		}
	}
	return n
}

// focusStrictlyDeclining reports whether the last three sessions' focus
// scores are strictly monotonically decreasing.
func focusStrictlyDeclining(sessions []model.SessionRecord) bool {
	if len(sessions) < decliningFocusWindow {
		return false
	}
	last := sessions[len(sessions)-decliningFocusWindow:]
	for i := 0; i < len(last)-1; i++ {
		if last[i].FocusScore <= last[i+1].FocusScore {
			return false
		}
	}
	return true
}
