// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/flowstate/pulse/internal/domain/dedupe"
	"github.com/flowstate/pulse/internal/domain/model"
	"github.com/flowstate/pulse/internal/domain/normalize"
)

// SessionDependencies defines the interface for session ingestion dependencies.
type SessionDependencies interface {
	dedupe.Deduper
	SubmitSession(ctx context.Context, raw normalize.RawSession) bool
}

// SessionsHandler handles completed session submissions.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

func validateSession(raw normalize.RawSession) error {
	switch {
	case strings.TrimSpace(raw.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(raw.SessionType) == "":
		return errors.New("missing session_type")
	case !model.SessionType(strings.TrimSpace(raw.SessionType)).Valid():
		return errors.New("unknown session_type " + raw.SessionType)
	case raw.DurationSeconds < 0:
		return errors.New("negative duration_seconds")
	}
	return nil
}

// HandlePostSession handles POST /sessions requests.
func (h *SessionsHandler) HandlePostSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var raw normalize.RawSession
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateSession(raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if raw.SessionID != "" && h.deps.SeenAndRecord(r.Context(), raw.SessionID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.SubmitSession(r.Context(), raw); !ok {
		if raw.SessionID != "" {
			h.deps.Unrecord(r.Context(), raw.SessionID)
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
