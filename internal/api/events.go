package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	syncpkg "github.com/ashureev/reviewpilot/internal/sync"
	"github.com/coder/websocket"
)

// EventsHandler streams sync cycle completion events over a websocket, so an
// external presentation layer can refresh without polling.
type EventsHandler struct {
	poller *syncpkg.Poller
}

// NewEventsHandler creates the events websocket handler.
func NewEventsHandler(poller *syncpkg.Poller) *EventsHandler {
	return &EventsHandler{poller: poller}
}

// ServeHTTP upgrades to a websocket and forwards cycle events until the
// client disconnects.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local control surface, no origin allowlist
	})
	if err != nil {
		slog.Warn("events websocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("events websocket close", "error", closeErr)
		}
	}()

	events, cancel := h.poller.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case event := <-events:
			if err := writeEvent(ctx, ws, event); err != nil {
				slog.Debug("events websocket write failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, event syncpkg.CycleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
