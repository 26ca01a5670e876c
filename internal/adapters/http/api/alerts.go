// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/flowstate/pulse/internal/domain/model"
)

// AlertDependencies defines the interface for alert queries.
type AlertDependencies interface {
	UserAlerts(ctx context.Context, userID string, limit int) []model.Alert
	RecentAlerts(ctx context.Context, limit int) []model.Alert
}

// AlertsHandler handles alert listing queries.
type AlertsHandler struct {
	deps AlertDependencies
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertDependencies) *AlertsHandler {
	return &AlertsHandler{deps: deps}
}

type alertsResponse struct {
	Alerts []model.Alert `json:"alerts"`
	Count  int           `json:"count"`
}

// HandleGetAlerts handles GET /alerts requests.
// Optional query parameters: user_id narrows to one user, limit caps the
// result size.
func (h *AlertsHandler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_alerts"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var alerts []model.Alert
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		alerts = h.deps.UserAlerts(r.Context(), userID, limit)
	} else {
		alerts = h.deps.RecentAlerts(r.Context(), limit)
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: alerts, Count: len(alerts)})
}
