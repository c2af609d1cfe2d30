package api

import (
	"context"
	"net/http"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/domain/model"
)

// EventDependencies defines the interface for event processing dependencies
type EventDependencies interface {
	Ingest(ctx context.Context, events []model.Event) (ingest.Counts, error)
}

// EventsHandler handles event requests
type EventsHandler struct {
	deps    EventDependencies
	maxBody int64
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps EventDependencies, maxBody int64) *EventsHandler {
	return &EventsHandler{deps: deps, maxBody: maxBody}
}

// HandlePostEvents handles POST /api/v1/events. The body is a JSON array or
// newline-delimited events. Accepted batches answer 202 with per-event counts;
// a batch the queue rejected entirely answers 429.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_events"
	events, err := ingest.Decode(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(events) == 0 {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}

	counts, err := h.deps.Ingest(r.Context(), events)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if counts.Rejected > 0 && counts.Enqueued == 0 {
		writeFailure(w, NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, counts)
}
