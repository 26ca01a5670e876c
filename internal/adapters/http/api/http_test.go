package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/flowstate/pulse/internal/adapters/http/api"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/normalize"
)

// stubDeps is a controllable Dependencies implementation.
type stubDeps struct {
	seen        map[string]bool
	unrecorded  []string
	accept      bool
	events      []normalize.RawEvent
	sessions    []normalize.RawSession
	vector      *model.FeatureVector
	insights    *model.Classification
	predictions *model.Predictions
	alerts      []model.Alert
}

func newStubDeps() *stubDeps {
	return &stubDeps{seen: make(map[string]bool), accept: true}
}

func (s *stubDeps) SeenAndRecord(_ context.Context, id string) bool {
	if s.seen[id] {
		return true
	}
	s.seen[id] = true
	return false
}

func (s *stubDeps) Unrecord(_ context.Context, id string) {
	delete(s.seen, id)
	s.unrecorded = append(s.unrecorded, id)
}

func (s *stubDeps) Size() int64 { return int64(len(s.seen)) }

func (s *stubDeps) SubmitEvent(_ context.Context, raw normalize.RawEvent) bool {
	if !s.accept {
		return false
	}
	s.events = append(s.events, raw)
	return true
}

func (s *stubDeps) SubmitSession(_ context.Context, raw normalize.RawSession) bool {
	if !s.accept {
		return false
	}
	s.sessions = append(s.sessions, raw)
	return true
}

func (s *stubDeps) FlowVector(_ context.Context, userID string) (model.FeatureVector, bool) {
	if s.vector == nil || s.vector.UserID != userID {
		return model.FeatureVector{}, false
	}
	return *s.vector, true
}

func (s *stubDeps) UserInsights(_ context.Context, userID string) (model.Classification, bool) {
	if s.insights == nil || s.insights.UserID != userID {
		return model.Classification{}, false
	}
	return *s.insights, true
}

func (s *stubDeps) UserPredictions(_ context.Context, userID string) (model.Predictions, bool) {
	if s.predictions == nil || s.predictions.UserID != userID {
		return model.Predictions{}, false
	}
	return *s.predictions, true
}

func (s *stubDeps) UserAlerts(_ context.Context, userID string, limit int) []model.Alert {
	var out []model.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *stubDeps) RecentAlerts(_ context.Context, limit int) []model.Alert {
	out := s.alerts
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *stubDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps *stubDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandlePostEvent(t *testing.T) {
	convey.Convey("Given the HTTP API", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When posting a valid event", func() {
			resp := postJSON(t, srv.URL+"/events", `{"event_id":"ev-1","user_id":"alice","event_type":"keystroke"}`)

			convey.Convey("Then it should be accepted", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				decodeBody(t, resp, &ack)
				convey.So(ack.Status, convey.ShouldEqual, "accepted")
				convey.So(ack.Duplicate, convey.ShouldBeFalse)
				convey.So(len(deps.events), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When replaying the same event id", func() {
			resp1 := postJSON(t, srv.URL+"/events", `{"event_id":"ev-1","user_id":"alice","event_type":"keystroke"}`)
			_ = resp1.Body.Close()
			resp2 := postJSON(t, srv.URL+"/events", `{"event_id":"ev-1","user_id":"alice","event_type":"keystroke"}`)

			convey.Convey("Then the replay should acknowledge as duplicate without resubmitting", func() {
				convey.So(resp2.StatusCode, convey.ShouldEqual, http.StatusOK)
				var ack struct {
					Duplicate bool `json:"duplicate"`
				}
				decodeBody(t, resp2, &ack)
				convey.So(ack.Duplicate, convey.ShouldBeTrue)
				convey.So(len(deps.events), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When posting an event without a user id", func() {
			resp := postJSON(t, srv.URL+"/events", `{"event_type":"keystroke"}`)

			convey.Convey("Then it should be rejected", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When posting an unknown event type", func() {
			resp := postJSON(t, srv.URL+"/events", `{"user_id":"alice","event_type":"telepathy"}`)

			convey.Convey("Then it should be rejected", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When posting malformed JSON", func() {
			resp := postJSON(t, srv.URL+"/events", `{"user_id": `)

			convey.Convey("Then it should be rejected", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When the engine is backpressured", func() {
			deps.accept = false
			resp := postJSON(t, srv.URL+"/events", `{"event_id":"ev-9","user_id":"alice","event_type":"keystroke"}`)

			convey.Convey("Then the client should get 429 and the seen mark rolls back", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusTooManyRequests)
				convey.So(deps.unrecorded, convey.ShouldContain, "ev-9")
				convey.So(deps.seen["ev-9"], convey.ShouldBeFalse)
			})
		})

		convey.Convey("When using a non-POST method", func() {
			resp, err := http.Get(srv.URL + "/events")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then it should not be found", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandlePostSession(t *testing.T) {
	convey.Convey("Given the HTTP API", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When posting a valid session", func() {
			resp := postJSON(t, srv.URL+"/sessions",
				`{"session_id":"s-1","user_id":"alice","session_type":"code","duration_seconds":3600,"focus_score":85}`)

			convey.Convey("Then it should be accepted", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(len(deps.sessions), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When replaying the same session id", func() {
			resp1 := postJSON(t, srv.URL+"/sessions", `{"session_id":"s-1","user_id":"alice","session_type":"code"}`)
			_ = resp1.Body.Close()
			resp2 := postJSON(t, srv.URL+"/sessions", `{"session_id":"s-1","user_id":"alice","session_type":"code"}`)

			convey.Convey("Then the replay should be a duplicate", func() {
				defer func() { _ = resp2.Body.Close() }()
				convey.So(resp2.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(len(deps.sessions), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When posting a negative duration", func() {
			resp := postJSON(t, srv.URL+"/sessions", `{"user_id":"alice","session_type":"code","duration_seconds":-5}`)

			convey.Convey("Then it should be rejected", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When posting an unknown session type", func() {
			resp := postJSON(t, srv.URL+"/sessions", `{"user_id":"alice","session_type":"nap"}`)

			convey.Convey("Then it should be rejected", func() {
				defer func() { _ = resp.Body.Close() }()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHandleReads(t *testing.T) {
	convey.Convey("Given the HTTP API with populated snapshots", t, func() {
		deps := newStubDeps()
		deps.vector = &model.FeatureVector{UserID: "alice", FlowScore: 88.5, KeystrokeCount: 120}
		deps.insights = &model.Classification{UserID: "alice", ProductivityLevel: model.LevelGood, TotalSessions: 12}
		deps.predictions = &model.Predictions{UserID: "alice", Streak: 4, OptimalDurationMinutes: 45}
		srv := newTestServer(deps)
		defer srv.Close()

		convey.Convey("When fetching a known user's flow", func() {
			resp, err := http.Get(srv.URL + "/flow/alice")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the vector should come back", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var vec model.FeatureVector
				decodeBody(t, resp, &vec)
				convey.So(vec.FlowScore, convey.ShouldEqual, 88.5)
				convey.So(vec.KeystrokeCount, convey.ShouldEqual, 120)
			})
		})

		convey.Convey("When fetching an unknown user's flow", func() {
			resp, err := http.Get(srv.URL + "/flow/ghost")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then it should be not found", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When fetching a nested flow path", func() {
			resp, err := http.Get(srv.URL + "/flow/alice/extra")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then it should be rejected", func() {
				convey.So(resp.StatusCode, convey.ShouldNotEqual, http.StatusOK)
			})
		})

		convey.Convey("When fetching insights and predictions", func() {
			insResp, err := http.Get(srv.URL + "/insights/alice")
			convey.So(err, convey.ShouldBeNil)
			predResp, err := http.Get(srv.URL + "/predictions/alice")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then both snapshots should come back", func() {
				convey.So(insResp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var cls model.Classification
				decodeBody(t, insResp, &cls)
				convey.So(cls.ProductivityLevel, convey.ShouldEqual, model.LevelGood)

				convey.So(predResp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var preds model.Predictions
				decodeBody(t, predResp, &preds)
				convey.So(preds.Streak, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When checking health and stats", func() {
			healthResp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = healthResp.Body.Close() }()
			statsResp, err := http.Get(srv.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = statsResp.Body.Close() }()

			convey.Convey("Then both should answer OK", func() {
				convey.So(healthResp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(statsResp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestHandleGetAlerts(t *testing.T) {
	convey.Convey("Given the HTTP API with fired alerts", t, func() {
		deps := newStubDeps()
		now := time.Now()
		deps.alerts = []model.Alert{
			{ID: "a-1", UserID: "alice", Kind: model.KindDeepFlow, TriggeredAt: now},
			{ID: "a-2", UserID: "bob", Kind: model.KindContextSwitch, TriggeredAt: now},
			{ID: "a-3", UserID: "alice", Kind: model.KindReturnFromBreak, TriggeredAt: now},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		type alertsResponse struct {
			Alerts []model.Alert `json:"alerts"`
			Count  int           `json:"count"`
		}

		convey.Convey("When listing alerts without filters", func() {
			resp, err := http.Get(srv.URL + "/alerts")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then all alerts should come back", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var body alertsResponse
				decodeBody(t, resp, &body)
				convey.So(body.Count, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When filtering by user", func() {
			resp, err := http.Get(srv.URL + "/alerts?user_id=alice")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then only that user's alerts should come back", func() {
				var body alertsResponse
				decodeBody(t, resp, &body)
				convey.So(body.Count, convey.ShouldEqual, 2)
				for _, a := range body.Alerts {
					convey.So(a.UserID, convey.ShouldEqual, "alice")
				}
			})
		})

		convey.Convey("When limiting the listing", func() {
			resp, err := http.Get(srv.URL + "/alerts?limit=1")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the limit should apply", func() {
				var body alertsResponse
				decodeBody(t, resp, &body)
				convey.So(body.Count, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When passing an invalid limit", func() {
			resp, err := http.Get(srv.URL + "/alerts?limit=zero")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then it should be rejected", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When a user has no alerts", func() {
			resp, err := http.Get(srv.URL + "/alerts?user_id=ghost")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the listing should be an empty array", func() {
				var body alertsResponse
				decodeBody(t, resp, &body)
				convey.So(body.Count, convey.ShouldEqual, 0)
				convey.So(body.Alerts, convey.ShouldNotBeNil)
			})
		})
	})
}
