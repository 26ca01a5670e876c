// Package feature composes per-stream window aggregates into a user feature
// vector and the composite flow score.
package feature

import (
	"math"
	"time"

	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/window"
)

// Composite score weights and caps. The formula is intentionally unclamped at
// the top: three capped components plus a flat base, so flow scores above 100
// are reachable. Callers must not assume an upper bound.
const (
	typingWeight   = 35.0
	durationWeight = 25.0
	focusWeight    = 20.0
	baseScore      = 20.0

	keystrokeNorm   = 100.0
	durationNorm    = 60.0
	distractionNorm = 10.0
	componentCap    = 100.0
)

// Compose outer-joins the current buckets of the three core streams, treating
// an absent stream as zero, and computes the flow score.
func Compose(userID string, agg *window.Aggregator, now time.Time) model.FeatureVector {
	keystrokes := currentCount(agg, window.StreamKeystroke)
	distractions := currentCount(agg, window.StreamDistraction)
	sessionSeconds := currentCount(agg, window.StreamSessionDuration)

	typing := math.Min(componentCap, float64(keystrokes)/keystrokeNorm*typingWeight)
	duration := math.Min(componentCap, float64(sessionSeconds)/durationNorm*durationWeight)
	focus := math.Max(0, (1-float64(distractions)/distractionNorm)*focusWeight)

	return model.FeatureVector{
		UserID:           userID,
		KeystrokeCount:   keystrokes,
		DistractionCount: distractions,
		SessionSeconds:   sessionSeconds,
		TypingScore:      typing,
		DurationScore:    duration,
		FocusScore:       focus,
		FlowScore:        round2(typing + duration + focus + baseScore),
		ComputedAt:       now,
	}
}

func currentCount(agg *window.Aggregator, stream window.Stream) int {
	b, ok := agg.Current(stream)
	if !ok {
		return 0
	}
	return b.Count
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
