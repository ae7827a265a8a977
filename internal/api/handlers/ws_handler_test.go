package handlers_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agisfl/agisfl-server/internal/api/handlers"
	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/services"
)

func TestWebSocketStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := services.NewEventHub()
	defer hub.Close()

	router := gin.New()
	router.GET("/ws", handlers.NewWebSocketHandler(hub).StreamEvents)

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// The subscription is registered shortly after the upgrade completes,
	// so keep emitting until an event comes back.
	var received models.Event
	require.Eventually(t, func() bool {
		hub.Emit(models.NewEvent(models.EventRoundCompleted, map[string]interface{}{"round": 1}))

		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return false
		}
		var event models.Event
		if err := conn.ReadJSON(&event); err != nil {
			return false
		}
		received = event
		return true
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, models.EventRoundCompleted, received.Kind)
	assert.False(t, received.Timestamp.IsZero())
}
