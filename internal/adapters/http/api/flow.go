// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/flowstate/pulse/internal/domain/model"
)

// FlowDependencies defines the interface for flow queries.
type FlowDependencies interface {
	FlowVector(ctx context.Context, userID string) (model.FeatureVector, bool)
}

// FlowHandler handles flow score queries.
type FlowHandler struct {
	deps FlowDependencies
}

// NewFlowHandler creates a new flow handler.
func NewFlowHandler(deps FlowDependencies) *FlowHandler {
	return &FlowHandler{deps: deps}
}

// HandleGetFlow handles GET /flow/{user_id} requests.
func (h *FlowHandler) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_flow"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := pathParam(r.URL.Path, "/flow/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	vec, found := h.deps.FlowVector(r.Context(), userID)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, vec)
}
