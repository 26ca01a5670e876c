// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowstate/pulse/internal/domain/dedupe"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/normalize"
)

// Alert listing bounds.
const (
	defaultAlertsLimit = 50
	maxAlertsLimit     = 500
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// SubmitEvent normalizes an event and dispatches it to its shard.
	// Returns false on backpressure.
	SubmitEvent(ctx context.Context, raw normalize.RawEvent) bool

	// SubmitSession normalizes a session record and dispatches it to its
	// shard. Returns false on backpressure.
	SubmitSession(ctx context.Context, raw normalize.RawSession) bool

	// Read operations expose per-user engine snapshots.
	FlowVector(ctx context.Context, userID string) (model.FeatureVector, bool)
	UserInsights(ctx context.Context, userID string) (model.Classification, bool)
	UserPredictions(ctx context.Context, userID string) (model.Predictions, bool)
	UserAlerts(ctx context.Context, userID string, limit int) []model.Alert
	RecentAlerts(ctx context.Context, limit int) []model.Alert
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	sessionsHandler    *SessionsHandler
	flowHandler        *FlowHandler
	insightsHandler    *InsightsHandler
	predictionsHandler *PredictionsHandler
	alertsHandler      *AlertsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		flowHandler:        NewFlowHandler(deps),
		insightsHandler:    NewInsightsHandler(deps),
		predictionsHandler: NewPredictionsHandler(deps),
		alertsHandler:      NewAlertsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandlePostSession, "sessions"))
	mux.HandleFunc("/flow/", MetricsMiddleware(s.flowHandler.HandleGetFlow, "flow"))
	mux.HandleFunc("/insights/", MetricsMiddleware(s.insightsHandler.HandleGetInsights, "insights"))
	mux.HandleFunc("/predictions/", MetricsMiddleware(s.predictionsHandler.HandleGetPredictions, "predictions"))
	mux.HandleFunc("/alerts", MetricsMiddleware(s.alertsHandler.HandleGetAlerts, "alerts"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// pathParam extracts the path segment after prefix, rejecting nested paths.
func pathParam(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest == path || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// limitParam parses the limit query parameter, clamped to the listing bounds.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultAlertsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrBadRequest
	}
	if n > maxAlertsLimit {
		n = maxAlertsLimit
	}
	return n, nil
}
