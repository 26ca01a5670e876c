// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/flowstate/pulse/internal/domain/model"
)

// PredictionDependencies defines the interface for prediction queries.
type PredictionDependencies interface {
	UserPredictions(ctx context.Context, userID string) (model.Predictions, bool)
}

// PredictionsHandler handles heuristic prediction queries.
type PredictionsHandler struct {
	deps PredictionDependencies
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps PredictionDependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps}
}

// HandleGetPredictions handles GET /predictions/{user_id} requests.
func (h *PredictionsHandler) HandleGetPredictions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_predictions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := pathParam(r.URL.Path, "/predictions/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	preds, found := h.deps.UserPredictions(r.Context(), userID)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, preds)
}
