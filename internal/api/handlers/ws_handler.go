package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agisfl/agisfl-server/internal/core/services"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler bridges the event hub onto a websocket connection. Each
// connection gets its own hub subscription that is torn down when the peer
// disconnects.
type WebSocketHandler struct {
	hub *services.EventHub
}

func NewWebSocketHandler(hub *services.EventHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) StreamEvents(c *gin.Context) {
	log := logger.WithComponent("ws_handler")

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, events := h.hub.Subscribe()
	log = log.With().Str("subscriber_id", id).Logger()
	log.Info().Msg("Event stream connected")

	defer func() {
		h.hub.Unsubscribe(id)
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close connection")
		}
		log.Info().Msg("Event stream disconnected")
	}()

	// Read pump: we never expect client messages, but reading is required
	// to notice a peer-initiated close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"), deadline)
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Debug().Err(err).Msg("Failed to write event")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
