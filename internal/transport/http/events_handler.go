package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// EventStream attaches websocket observers to the lifecycle event feed.
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, admin string) error
}

// EventsHandler upgrades admin requests to the live event stream.
type EventsHandler struct {
	stream   EventStream
	upgrader *websocket.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(stream EventStream, upgrader *websocket.Upgrader, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		stream:   stream,
		upgrader: upgrader,
		logger:   logger.With(slog.String("handler", "events")),
	}
}

// ServeHTTP handles GET /api/v1/admin/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	admin, _ := license.AdminFromContext(r.Context())

	// On error the upgrader has already replied.
	if err := h.stream.ServeWS(w, r, h.upgrader, admin); err != nil {
		h.logger.DebugContext(r.Context(), "event stream not opened",
			slog.String("actor", admin),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.InfoContext(r.Context(), "event stream opened", slog.String("actor", admin))
}
