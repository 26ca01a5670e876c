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

// EventDependencies defines the interface for event ingestion dependencies.
type EventDependencies interface {
	dedupe.Deduper
	SubmitEvent(ctx context.Context, raw normalize.RawEvent) bool
}

// EventsHandler handles activity event submissions.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

func validateEvent(raw normalize.RawEvent) error {
	switch {
	case strings.TrimSpace(raw.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(raw.EventType) == "":
		return errors.New("missing event_type")
	case !model.EventType(strings.TrimSpace(raw.EventType)).Valid():
		return errors.New("unknown event_type " + raw.EventType)
	}
	return nil
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var raw normalize.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateEvent(raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check on the client-supplied ID, when present.
	if raw.EventID != "" && h.deps.SeenAndRecord(r.Context(), raw.EventID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.SubmitEvent(r.Context(), raw); !ok {
		// Roll back the seen mark so the client can retry.
		if raw.EventID != "" {
			h.deps.Unrecord(r.Context(), raw.EventID)
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
