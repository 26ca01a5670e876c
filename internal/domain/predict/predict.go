// Package predict derives heuristic forecasts from a user's session history.
// All functions are pure over the capped session list and a reference time,
// independent of the windowed event path.
package predict

import (
	"math"
	"sort"
	"time"

	"github.com/flowstate/pulse/internal/domain/model"
)

// Heuristic thresholds and defaults.
const (
	minSessionsForBestHour = 5
	minSessionsForPatterns = 3
	bestHourDefault        = 9
	bestHourHighSamples    = 3

	momentumWindow = 4
	momentumDelta  = 5.0

	optimalDefaultMinutes = 45
	optimalMinSamples     = 2

	trailingWeek        = 168 * time.Hour
	burnoutHighSessions = 35
	burnoutMedSessions  = 21
	burnoutFocusDrop    = 10.0
	burnoutMinSamples   = 5

	trailingBreakWindow = 4 * time.Hour
	longWorkSeconds     = 7200
	moderateWorkSeconds = 3600

	productivityFocusWeight = 0.5
	productivityCountWeight = 0.3
	productivityTimeWeight  = 0.2
	productivityCountStep   = 10.0
	productivityTimeScale   = 20.0

	forecastDefaultFocus = 70.0
	forecastWindow       = 5
)

// Predict runs every heuristic and assembles the predictor output.
func Predict(userID string, sessions []model.SessionRecord, now time.Time) model.Predictions {
	return model.Predictions{
		UserID:                 userID,
		Streak:                 Streak(sessions),
		BestHour:               BestHour(sessions),
		Momentum:               Momentum(sessions),
		OptimalDurationMinutes: OptimalDuration(sessions),
		ProductivityScore:      ProductivityScore(sessions),
		PredictedFocus:         PredictedFocus(sessions),
		BurnoutRisk:            WeeklyBurnoutRisk(sessions, now),
		BreakMinutes:           BreakMinutes(sessions, now),
		Patterns:               Patterns(sessions),
		ComputedAt:             now,
	}
}

// Streak counts the consecutive-day run of distinct session dates starting
// from the most recent date. A gap of more than one day stops the run.
func Streak(sessions []model.SessionRecord) int {
	seen := make(map[string]time.Time)
	for _, s := range sessions {
		day := s.StartTime.Truncate(24 * time.Hour)
		seen[day.Format("2006-01-02")] = day
	}
	if len(seen) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	for i := 0; i < len(days)-1; i++ {
		if days[i].Sub(days[i+1]) == 24*time.Hour {
			streak++
		} else {
			break
		}
	}
	return streak
}

// BestHour picks the hour of day with the highest average focus. Fewer than
// five sessions yields the 9am default with low confidence; the winning hour
// gets high confidence only with three or more samples.
func BestHour(sessions []model.SessionRecord) model.BestHour {
	if len(sessions) < minSessionsForBestHour {
		return model.BestHour{Hour: bestHourDefault, Confidence: model.ConfidenceLow}
	}

	var sums [24]float64
	var counts [24]int
	for _, s := range sessions {
		h := s.StartTime.Hour()
		sums[h] += s.FocusScore
		counts[h]++
	}

	bestHour := bestHourDefault
	bestAvg := 0.0
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		avg := sums[h] / float64(counts[h])
		if avg > bestAvg {
			bestAvg = avg
			bestHour = h
		}
	}

	confidence := model.ConfidenceMedium
	if counts[bestHour] >= bestHourHighSamples {
		confidence = model.ConfidenceHigh
	}
	return model.BestHour{
		Hour:          bestHour,
		ExpectedFocus: round1(bestAvg),
		Confidence:    confidence,
	}
}

// Momentum compares average focus of the two session pairs inside the last
// four sessions. Fewer than four sessions is neutral.
func Momentum(sessions []model.SessionRecord) model.Momentum {
	if len(sessions) < momentumWindow {
		return model.MomentumNeutral
	}
	recent := sessions[len(sessions)-momentumWindow:]
	diff := avgFocus(recent[2:]) - avgFocus(recent[:2])
	switch {
	case diff > momentumDelta:
		return model.MomentumIncreasing
	case diff < -momentumDelta:
		return model.MomentumDecreasing
	default:
		return model.MomentumStable
	}
}

// durationBucket maps a session length in minutes onto the canonical
// 25/45/60/90 minute buckets.
func durationBucket(minutes int) int {
	switch {
	case minutes < 30:
		return 25
	case minutes < 50:
		return 45
	case minutes < 70:
		return 60
	default:
		return 90
	}
}

// OptimalDuration picks the duration bucket with the highest average focus
// among buckets with at least two samples. Defaults to 45 minutes.
func OptimalDuration(sessions []model.SessionRecord) int {
	if len(sessions) < minSessionsForBestHour {
		return optimalDefaultMinutes
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, s := range sessions {
		b := durationBucket(s.DurationSeconds / 60)
		sums[b] += s.FocusScore
		counts[b]++
	}

	best := optimalDefaultMinutes
	bestAvg := 0.0
	for _, b := range []int{25, 45, 60, 90} {
		if counts[b] < optimalMinSamples {
			continue
		}
		avg := sums[b] / float64(counts[b])
		if avg > bestAvg {
			bestAvg = avg
			best = b
		}
	}
	return best
}

// ProductivityScore blends average focus, session count, and total time into
// a weighted 0-100 score. The count term saturates at ten sessions and the
// time term at five hours.
func ProductivityScore(sessions []model.SessionRecord) float64 {
	if len(sessions) == 0 {
		return 0
	}
	total := 0
	for _, s := range sessions {
		total += s.DurationSeconds
	}
	countScore := math.Min(float64(len(sessions))*productivityCountStep, 100)
	timeScore := math.Min(float64(total)/3600*productivityTimeScale, 100)
	return avgFocus(sessions)*productivityFocusWeight +
		countScore*productivityCountWeight +
		timeScore*productivityTimeWeight
}

// PredictedFocus forecasts the next session's focus score as the average over
// the last five sessions. Histories under three sessions get the 70-point
// default.
func PredictedFocus(sessions []model.SessionRecord) float64 {
	if len(sessions) < minSessionsForPatterns {
		return forecastDefaultFocus
	}
	recent := sessions
	if len(recent) > forecastWindow {
		recent = recent[len(recent)-forecastWindow:]
	}
	return round1(avgFocus(recent))
}

// WeeklyBurnoutRisk grades the trailing 168 hours: high above 35 sessions,
// medium above 21 or when the second half's average focus trails the first
// half by more than 10 points (with at least 5 samples).
func WeeklyBurnoutRisk(sessions []model.SessionRecord, now time.Time) model.BurnoutRisk {
	recent := within(sessions, now, trailingWeek)
	if len(recent) == 0 {
		return model.BurnoutLow
	}
	if len(recent) > burnoutHighSessions {
		return model.BurnoutHigh
	}
	if len(recent) > burnoutMedSessions {
		return model.BurnoutMedium
	}
	if len(recent) >= burnoutMinSamples {
		half := len(recent) / 2
		if avgFocus(recent[half:]) < avgFocus(recent[:half])-burnoutFocusDrop {
			return model.BurnoutMedium
		}
	}
	return model.BurnoutLow
}

// BreakMinutes recommends a break length from the trailing four hours of
// session time: 15 minutes past two hours, 10 past one, otherwise 5.
func BreakMinutes(sessions []model.SessionRecord, now time.Time) int {
	total := 0
	for _, s := range within(sessions, now, trailingBreakWindow) {
		total += s.DurationSeconds
	}
	switch {
	case total > longWorkSeconds:
		return 15
	case total > moderateWorkSeconds:
		return 10
	default:
		return 5
	}
}

// Patterns returns the top three hours by average focus, considering only
// hours with at least two samples. Empty for histories under three sessions.
func Patterns(sessions []model.SessionRecord) []model.HourlyPattern {
	if len(sessions) < minSessionsForPatterns {
		return nil
	}

	var sums [24]float64
	var counts [24]int
	for _, s := range sessions {
		h := s.StartTime.Hour()
		sums[h] += s.FocusScore
		counts[h]++
	}

	out := make([]model.HourlyPattern, 0, 24)
	for h := 0; h < 24; h++ {
		if counts[h] < optimalMinSamples {
			continue
		}
		out = append(out, model.HourlyPattern{Hour: h, AvgFocus: round1(sums[h] / float64(counts[h]))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgFocus > out[j].AvgFocus })
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func within(sessions []model.SessionRecord, now time.Time, d time.Duration) []model.SessionRecord {
	var out []model.SessionRecord
	cutoff := now.Add(-d)
	for _, s := range sessions {
		if s.StartTime.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func avgFocus(sessions []model.SessionRecord) float64 {
	if len(sessions) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sessions {
		sum += s.FocusScore
	}
	return sum / float64(len(sessions))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
