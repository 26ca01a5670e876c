// Package classify maps cumulative user statistics to categorical labels.
// Classify is a pure function: all outputs are recomputed wholesale on every
// call, no incremental state.
package classify

import "github.com/flowstate/pulse/internal/domain/model"

// Stats are the cumulative inputs, aggregated over all of a user's sessions.
type Stats struct {
	TotalSessions   int
	AvgFocusScore   float64
	AvgQualityScore float64
	TotalDuration   int
	Distractions    int
	MaxFocus        float64
	MinFocus        float64
}

// Literal classification thresholds.
const (
	excellentFocus       = 85.0
	excellentDistraction = 3.0
	goodFocus            = 70.0
	goodDistraction      = 5.0
	moderateFocus        = 55.0

	consistentSpread = 20.0

	burnoutHighSessions  = 15
	burnoutHighFocus     = 50.0
	burnoutHighDuration  = 36000
	burnoutMedSessions   = 10
	burnoutMedFocus      = 60.0
)

// recommendations is a fixed lookup keyed by productivity level.
var recommendations = map[model.ProductivityLevel]string{
	model.LevelExcellent:        "Keep up the great work! Consider mentoring others.",
	model.LevelGood:             "You're doing well. Try to maintain consistency.",
	model.LevelModerate:         "Focus on reducing distractions and taking regular breaks.",
	model.LevelNeedsImprovement: "Consider adjusting your work environment and schedule.",
}

// Classify derives productivity level, focus consistency, burnout risk,
// pattern type, and the recommendation text from cumulative stats.
func Classify(userID string, s Stats) model.Classification {
	level := productivityLevel(s)
	consistency := model.ConsistencyVariable
	if s.MaxFocus-s.MinFocus < consistentSpread {
		consistency = model.ConsistencyConsistent
	}

	c := model.Classification{
		UserID:            userID,
		TotalSessions:     s.TotalSessions,
		AvgFocusScore:     s.AvgFocusScore,
		AvgQualityScore:   s.AvgQualityScore,
		TotalDuration:     s.TotalDuration,
		TotalDistractions: s.Distractions,
		ProductivityLevel: level,
		FocusConsistency:  consistency,
		BurnoutRisk:       burnoutRisk(s),
		PatternType:       patternType(level, consistency),
		Recommendation:    recommendations[level],
	}
	if s.TotalSessions > 0 {
		c.AvgSessionDuration = float64(s.TotalDuration) / float64(s.TotalSessions)
		c.DistractionRate = float64(s.Distractions) / float64(s.TotalSessions)
	}
	return c
}

func productivityLevel(s Stats) model.ProductivityLevel {
	rate := float64(s.Distractions)
	if s.TotalSessions > 0 {
		rate = float64(s.Distractions) / float64(s.TotalSessions)
	}
	switch {
	case s.AvgFocusScore >= excellentFocus && rate < excellentDistraction:
		return model.LevelExcellent
	case s.AvgFocusScore >= goodFocus && rate < goodDistraction:
		return model.LevelGood
	case s.AvgFocusScore >= moderateFocus:
		return model.LevelModerate
	default:
		return model.LevelNeedsImprovement
	}
}

func burnoutRisk(s Stats) model.BurnoutRisk {
	switch {
	case s.TotalSessions > burnoutHighSessions && s.AvgFocusScore < burnoutHighFocus && s.TotalDuration > burnoutHighDuration:
		return model.BurnoutHigh
	case s.TotalSessions > burnoutMedSessions && s.AvgFocusScore < burnoutMedFocus:
		return model.BurnoutMedium
	default:
		return model.BurnoutLow
	}
}

func patternType(level model.ProductivityLevel, consistency model.Consistency) model.PatternType {
	switch {
	case level == model.LevelExcellent && consistency == model.ConsistencyConsistent:
		return model.PatternPeakPerformer
	case level == model.LevelGood || level == model.LevelExcellent:
		return model.PatternImproving
	case level == model.LevelNeedsImprovement:
		return model.PatternStruggling
	default:
		return model.PatternInconsistent
	}
}
