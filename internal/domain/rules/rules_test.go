package rules_test

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/rules"
)

func kinds(alerts []model.Alert) []model.AlertKind {
	out := make([]model.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

func TestEngine_EvaluateWindow(t *testing.T) {
	convey.Convey("Given a rule engine for one user", t, func() {
		e := rules.New("alice")
		now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

		convey.Convey("When the flow score crosses the deep flow threshold", func() {
			alerts := e.EvaluateWindow(rules.WindowInput{
				Vector:    model.FeatureVector{UserID: "alice", FlowScore: 85},
				FlowIndex: 100,
			}, now)

			convey.Convey("Then a deep_flow alert should fire once", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindDeepFlow})
				convey.So(alerts[0].Severity, convey.ShouldEqual, model.SeverityInfo)
				convey.So(alerts[0].UserID, convey.ShouldEqual, "alice")
				convey.So(alerts[0].ID, convey.ShouldNotBeEmpty)
			})

			convey.Convey("And a re-evaluation in the same bucket should stay quiet", func() {
				again := e.EvaluateWindow(rules.WindowInput{
					Vector:    model.FeatureVector{UserID: "alice", FlowScore: 90},
					FlowIndex: 100,
				}, now)
				convey.So(again, convey.ShouldBeEmpty)
			})

			convey.Convey("And the rule should re-arm once the bucket closes", func() {
				next := e.EvaluateWindow(rules.WindowInput{
					Vector:    model.FeatureVector{UserID: "alice", FlowScore: 90},
					FlowIndex: 101,
				}, now.Add(5*time.Minute))
				convey.So(kinds(next), convey.ShouldResemble, []model.AlertKind{model.KindDeepFlow})
			})
		})

		convey.Convey("When distractions spike past five in the window", func() {
			alerts := e.EvaluateWindow(rules.WindowInput{
				Vector:    model.FeatureVector{UserID: "alice", FlowScore: 50, DistractionCount: 6},
				FlowIndex: 100,
			}, now)

			convey.Convey("Then a distraction_spike warning should fire", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindDistractionSpike})
				convey.So(alerts[0].Severity, convey.ShouldEqual, model.SeverityWarning)
			})
		})

		convey.Convey("When flow is low during a long active stretch", func() {
			alerts := e.EvaluateWindow(rules.WindowInput{
				Vector:    model.FeatureVector{UserID: "alice", FlowScore: 35, SessionSeconds: 120},
				FlowIndex: 100,
			}, now)

			convey.Convey("Then a burnout_risk alert should fire", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindBurnoutRisk})
				convey.So(alerts[0].Severity, convey.ShouldEqual, model.SeverityHigh)
			})
		})

		convey.Convey("When tab switches reach eleven within one detection window", func() {
			quiet := e.EvaluateWindow(rules.WindowInput{
				Vector:         model.FeatureVector{UserID: "alice", FlowScore: 50},
				TabSwitchCount: 10,
				TabSwitchIndex: 500,
			}, now)
			fired := e.EvaluateWindow(rules.WindowInput{
				Vector:         model.FeatureVector{UserID: "alice", FlowScore: 50},
				TabSwitchCount: 11,
				TabSwitchIndex: 500,
			}, now)
			repeat := e.EvaluateWindow(rules.WindowInput{
				Vector:         model.FeatureVector{UserID: "alice", FlowScore: 50},
				TabSwitchCount: 12,
				TabSwitchIndex: 500,
			}, now)

			convey.Convey("Then context_switch should fire exactly once at the eleventh", func() {
				convey.So(quiet, convey.ShouldBeEmpty)
				convey.So(kinds(fired), convey.ShouldResemble, []model.AlertKind{model.KindContextSwitch})
				convey.So(repeat, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When keystrokes per minute exceed two hundred", func() {
			alerts := e.EvaluateWindow(rules.WindowInput{
				Vector:        model.FeatureVector{UserID: "alice", FlowScore: 50},
				VelocityCount: 201,
				VelocityIndex: 900,
			}, now)

			convey.Convey("Then a high_velocity alert should fire", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindHighVelocity})
			})
		})

		convey.Convey("When a blur event is observed", func() {
			first := e.EvaluateWindow(rules.WindowInput{
				Vector:       model.FeatureVector{UserID: "alice", FlowScore: 50},
				FlowIndex:    100,
				BlurObserved: true,
			}, now)
			second := e.EvaluateWindow(rules.WindowInput{
				Vector:       model.FeatureVector{UserID: "alice", FlowScore: 50},
				FlowIndex:    100,
				BlurObserved: true,
			}, now)

			convey.Convey("Then return_from_break should fire on every blur", func() {
				convey.So(kinds(first), convey.ShouldResemble, []model.AlertKind{model.KindReturnFromBreak})
				convey.So(kinds(second), convey.ShouldResemble, []model.AlertKind{model.KindReturnFromBreak})
			})
		})
	})
}

func TestEngine_EvaluateSession(t *testing.T) {
	convey.Convey("Given a rule engine for one user", t, func() {
		e := rules.New("alice")
		now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)

		convey.Convey("When more than eight sessions land in the trailing day", func() {
			var sessions []model.SessionRecord
			for i := 0; i < 9; i++ {
				sessions = append(sessions, model.SessionRecord{
					UserID:    "alice",
					StartTime: now.Add(-time.Duration(i+1) * time.Hour),
				})
			}

			alerts := e.EvaluateSession(rules.SessionInput{
				Latest:   sessions[len(sessions)-1],
				Sessions: sessions,
				Now:      now,
			})

			convey.Convey("Then a session_burnout_warning should fire once per day", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindSessionBurnoutWarning})

				again := e.EvaluateSession(rules.SessionInput{
					Latest:   sessions[len(sessions)-1],
					Sessions: sessions,
					Now:      now.Add(time.Minute),
				})
				convey.So(again, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the last three focus scores strictly decline", func() {
			sessions := []model.SessionRecord{
				{UserID: "alice", StartTime: now.Add(-40 * time.Hour), FocusScore: 80},
				{UserID: "alice", StartTime: now.Add(-39 * time.Hour), FocusScore: 70},
				{UserID: "alice", StartTime: now.Add(-38 * time.Hour), FocusScore: 60},
			}

			alerts := e.EvaluateSession(rules.SessionInput{
				Latest:   sessions[2],
				Sessions: sessions,
				Now:      now,
			})

			convey.Convey("Then a declining_focus alert should fire", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindDecliningFocus})
			})
		})

		convey.Convey("When focus plateaus inside the last three sessions", func() {
			sessions := []model.SessionRecord{
				{UserID: "alice", StartTime: now.Add(-40 * time.Hour), FocusScore: 80},
				{UserID: "alice", StartTime: now.Add(-39 * time.Hour), FocusScore: 70},
				{UserID: "alice", StartTime: now.Add(-38 * time.Hour), FocusScore: 70},
			}

			alerts := e.EvaluateSession(rules.SessionInput{
				Latest:   sessions[2],
				Sessions: sessions,
				Now:      now,
			})

			convey.Convey("Then no declining_focus alert should fire", func() {
				convey.So(alerts, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a session runs past two hours", func() {
			latest := model.SessionRecord{
				UserID:          "alice",
				StartTime:       now.Add(-40 * time.Hour),
				DurationSeconds: 7300,
			}

			alerts := e.EvaluateSession(rules.SessionInput{
				Latest:   latest,
				Sessions: []model.SessionRecord{latest},
				Now:      now,
			})

			convey.Convey("Then a long_session_praise alert should fire", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindLongSessionPraise})
				convey.So(alerts[0].Severity, convey.ShouldEqual, model.SeverityLow)
			})
		})

		convey.Convey("When the streak reaches the seven day milestone", func() {
			latest := model.SessionRecord{UserID: "alice", StartTime: now.Add(-40 * time.Hour)}

			alerts := e.EvaluateSession(rules.SessionInput{
				Latest:   latest,
				Sessions: []model.SessionRecord{latest},
				Streak:   7,
				Now:      now,
			})

			convey.Convey("Then a streak_celebration alert should fire with the count", func() {
				convey.So(kinds(alerts), convey.ShouldResemble, []model.AlertKind{model.KindStreakCelebration})
				convey.So(alerts[0].Message, convey.ShouldContainSubstring, "7-day streak")
			})
		})
	})
}

func TestEngine_AlertLog(t *testing.T) {
	convey.Convey("Given a rule engine with a small alert log cap", t, func() {
		e := rules.New("alice", rules.WithAlertLogLimit(3))
		now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

		convey.Convey("When more alerts fire than the cap allows", func() {
			for i := 0; i < 5; i++ {
				e.EvaluateWindow(rules.WindowInput{
					Vector:       model.FeatureVector{UserID: "alice", FlowScore: 50},
					BlurObserved: true,
				}, now.Add(time.Duration(i)*time.Minute))
			}

			convey.Convey("Then the log should retain only the newest entries", func() {
				log := e.Snapshot()
				convey.So(len(log), convey.ShouldEqual, 3)
				convey.So(log[0].TriggeredAt.Equal(now.Add(2*time.Minute)), convey.ShouldBeTrue)
			})

			convey.Convey("And Alerts should return newest first with a limit", func() {
				alerts := e.Alerts(2)
				convey.So(len(alerts), convey.ShouldEqual, 2)
				convey.So(alerts[0].TriggeredAt.Equal(now.Add(4*time.Minute)), convey.ShouldBeTrue)
				convey.So(alerts[1].TriggeredAt.Equal(now.Add(3*time.Minute)), convey.ShouldBeTrue)
			})
		})
	})
}
