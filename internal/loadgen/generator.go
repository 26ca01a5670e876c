package loadgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/flowstate/pulse/internal/domain/normalize"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileDivisor     = 4
)

// User behavior profiles. Each simulated user draws one profile that shapes
// its event mix and session scores.
const (
	profileDeepWorker = 0
	profileScattered  = 1
	profileSteady     = 2
	profileBurst      = 3
)

var eventTypes = []string{"keystroke", "keystroke", "keystroke", "timer_tick", "tab_switch", "blur"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

type user struct {
	id      string
	profile int64
}

func generateUsers(n int) []user {
	users := make([]user, n)
	for i := range users {
		users[i] = user{
			id:      "user-" + uuid.New().String()[:8],
			profile: randomInt(profileDivisor),
		}
	}
	return users
}

// generateEvents produces the raw event payloads for one user, spread over
// the trailing hour so several windows get exercised.
func generateEvents(u user, count int) []normalize.RawEvent {
	events := make([]normalize.RawEvent, count)
	base := time.Now().UTC().Add(-time.Hour)

	for i := range events {
		typ := pickEventType(u.profile)
		ts := base.Add(time.Duration(i) * time.Hour / time.Duration(count))
		events[i] = normalize.RawEvent{
			EventID:   fmt.Sprintf("%s-ev-%d", u.id, i),
			UserID:    u.id,
			EventType: typ,
			Timestamp: ts.Format(time.RFC3339),
		}
	}
	return events
}

func pickEventType(profile int64) string {
	switch profile {
	case profileScattered:
		// Scattered users context switch far more often.
		if getRandomFloat() < 0.4 {
			return "tab_switch"
		}
	case profileBurst:
		// Burst users type in dense runs.
		if getRandomFloat() < 0.8 {
			return "keystroke"
		}
	}
	return eventTypes[randomInt(int64(len(eventTypes)))]
}

// generateSessions produces completed session payloads for one user, one per
// day counting backwards so streaks form.
func generateSessions(u user, count int) []normalize.RawSession {
	sessions := make([]normalize.RawSession, count)
	now := time.Now().UTC()

	for i := range sessions {
		focus, quality := sessionScores(u.profile)
		start := now.AddDate(0, 0, -i).Add(-2 * time.Hour)
		sessions[i] = normalize.RawSession{
			SessionID:       fmt.Sprintf("%s-sess-%d", u.id, i),
			UserID:          u.id,
			SessionType:     "code",
			StartTime:       start.Format(time.RFC3339),
			DurationSeconds: int(1800 + randomInt(5400)),
			FocusScore:      focus,
			QualityScore:    quality,
			Distractions:    int(randomInt(8)),
			Language:        "go",
			LinesOfCode:     int(randomInt(400)),
		}
	}
	return sessions
}

func sessionScores(profile int64) (focus, quality int) {
	switch profile {
	case profileDeepWorker:
		return int(80 + randomInt(20)), int(75 + randomInt(25))
	case profileScattered:
		return int(30 + randomInt(35)), int(35 + randomInt(30))
	case profileBurst:
		return int(50 + randomInt(45)), int(50 + randomInt(40))
	default:
		return int(60 + randomInt(25)), int(60 + randomInt(25))
	}
}
