package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// EventHandler replays journal mutations from the durable event stream.
// Clients that drop their WebSocket connection use it to catch up before
// resubscribing.
type EventHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler reading from the given bus.
func NewEventHandler(bus domain.SignalBus, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		bus:    bus,
		logger: logger,
	}
}

// streamEvent pairs a stream entry ID with its decoded journal payload. The
// ID is what clients pass back as "after" on their next request.
type streamEvent struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// ListEvents returns journal events appended after the given stream ID.
// GET /api/events?after=0&limit=100
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	after := q.Get("after")
	if after == "" {
		after = "0"
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}

	msgs, err := h.bus.StreamRead(r.Context(), service.EventStream, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: event stream read failed",
			slog.String("after", after),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	events := make([]streamEvent, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, streamEvent{ID: m.ID, Event: json.RawMessage(m.Payload)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
