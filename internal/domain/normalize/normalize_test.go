package normalize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/normalize"
)

func TestNormalizer_Event(t *testing.T) {
	convey.Convey("Given a normalizer with a fixed clock", t, func() {
		ingestTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		n := normalize.New(normalize.WithClock(func() time.Time { return ingestTime }))

		convey.Convey("When normalizing a fully specified event", func() {
			value := 2.5
			ev, err := n.Event(normalize.RawEvent{
				UserID:    "alice",
				EventType: "keystroke",
				Value:     &value,
				Timestamp: "2026-08-30T11:59:30Z",
			})

			convey.Convey("Then all fields should be canonicalized", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.UserID, convey.ShouldEqual, "alice")
				convey.So(ev.Type, convey.ShouldEqual, model.EventKeystroke)
				convey.So(ev.Value, convey.ShouldEqual, 2.5)
				convey.So(ev.EventTime.Equal(time.Date(2026, 8, 30, 11, 59, 30, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(ev.ArrivalSeq, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the value is omitted", func() {
			ev, err := n.Event(normalize.RawEvent{UserID: "alice", EventType: "blur"})

			convey.Convey("Then it should default to 1.0", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.Value, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When the user id is missing", func() {
			_, err := n.Event(normalize.RawEvent{EventType: "keystroke"})

			convey.Convey("Then it should return a validation error", func() {
				var verr *normalize.ValidationError
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Field, convey.ShouldEqual, "user_id")
			})
		})

		convey.Convey("When the event type is unknown", func() {
			_, err := n.Event(normalize.RawEvent{UserID: "alice", EventType: "mouse_wiggle"})

			convey.Convey("Then it should return a validation error", func() {
				var verr *normalize.ValidationError
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Field, convey.ShouldEqual, "event_type")
			})
		})

		convey.Convey("When the timestamp has no zone suffix", func() {
			ev, err := n.Event(normalize.RawEvent{
				UserID:    "alice",
				EventType: "keystroke",
				Timestamp: "2026-08-30T11:30:00",
			})

			convey.Convey("Then it should still parse", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.EventTime.Hour(), convey.ShouldEqual, 11)
				convey.So(ev.EventTime.Minute(), convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When the timestamp is unparseable", func() {
			ev, err := n.Event(normalize.RawEvent{
				UserID:    "alice",
				EventType: "keystroke",
				Timestamp: "yesterday-ish",
			})

			convey.Convey("Then it should degrade to ingestion time without failing", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ev.EventTime.Equal(ingestTime), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When normalizing several events", func() {
			first, err1 := n.Event(normalize.RawEvent{UserID: "alice", EventType: "keystroke"})
			second, err2 := n.Event(normalize.RawEvent{UserID: "bob", EventType: "keystroke"})

			convey.Convey("Then arrival sequences should strictly increase", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(second.ArrivalSeq, convey.ShouldBeGreaterThan, first.ArrivalSeq)
			})
		})
	})
}

func TestNormalizer_Session(t *testing.T) {
	convey.Convey("Given a normalizer with a fixed clock", t, func() {
		ingestTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		n := normalize.New(normalize.WithClock(func() time.Time { return ingestTime }))

		convey.Convey("When normalizing a complete session", func() {
			rec, err := n.Session(normalize.RawSession{
				UserID:          "alice",
				SessionType:     "code",
				StartTime:       "2026-08-30T09:00:00Z",
				DurationSeconds: 3600,
				FocusScore:      85,
				QualityScore:    90,
				Distractions:    2,
				Language:        "go",
				LinesOfCode:     120,
			})

			convey.Convey("Then all fields should carry over", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Type, convey.ShouldEqual, model.SessionCode)
				convey.So(rec.FocusScore, convey.ShouldEqual, 85.0)
				convey.So(rec.QualityScore, convey.ShouldEqual, 90.0)
				convey.So(rec.DurationSeconds, convey.ShouldEqual, 3600)
				convey.So(rec.Language, convey.ShouldEqual, "go")
			})
		})

		convey.Convey("When the language is omitted", func() {
			rec, err := n.Session(normalize.RawSession{UserID: "alice", SessionType: "whiteboard"})

			convey.Convey("Then it should default to unknown", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Language, convey.ShouldEqual, "unknown")
			})
		})

		convey.Convey("When the session type is unknown", func() {
			_, err := n.Session(normalize.RawSession{UserID: "alice", SessionType: "nap"})

			convey.Convey("Then it should return a validation error", func() {
				var verr *normalize.ValidationError
				convey.So(errors.As(err, &verr), convey.ShouldBeTrue)
				convey.So(verr.Field, convey.ShouldEqual, "session_type")
			})
		})

		convey.Convey("When the start time is missing", func() {
			rec, err := n.Session(normalize.RawSession{UserID: "alice", SessionType: "code"})

			convey.Convey("Then it should fall back to ingestion time", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.StartTime.Equal(ingestTime), convey.ShouldBeTrue)
			})
		})
	})
}
