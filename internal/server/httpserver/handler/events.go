package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = (eventPongWait * 9) / 10
)

// handleEvents handles GET /api/v1/events. The connection first receives
// the current snapshot, then one frame per applied presenter update.
// A client that reads too slowly loses events; it can resynchronise by
// reconnecting.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L(r.Context()).Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID := logger.RequestIDFromContext(r.Context())
	if subID == "" {
		subID, _ = domain.GenerateID("sub-")
	}
	events, cancel := h.fleet.Subscribe(subID, h.eventBuf)
	defer cancel()

	log := logger.L(r.Context()).With("subscriber", subID)
	log.Debug("event stream opened")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	if err := conn.WriteJSON(StreamMessage{Type: "snapshot", Snapshot: h.fleet.Snapshot()}); err != nil {
		return
	}

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(eventWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(StreamMessage{Type: "event", Event: &ev}); err != nil {
				log.Debug("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debug("event stream closed by client")
			return
		case <-r.Context().Done():
			return
		}
	}
}
