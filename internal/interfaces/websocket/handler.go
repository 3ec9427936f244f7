package websocket

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/interfaces/middleware"
)

// WebSocketHandler upgrades requests and registers the resulting transport
// with the hub. Clients never send application data on this socket; the read
// loop exists only to notice closes and errors.
type WebSocketHandler struct {
	hub      *hub.Hub
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hubInstance *hub.Hub, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades the connection and registers it under the caller's
// identity.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("failed to upgrade connection: %v", err)
		return
	}

	connID := fmt.Sprintf("ws-%s", uuid.NewString())
	transport := hub.NewWebSocketTransport(wsConn, h.logger)
	conn := hub.NewConn(connID, userID, orgID, transport)
	h.hub.AddConnection(conn)

	h.logger.WithFields(logger.Fields{
		"connection_id": connID,
		"user_id":       userID,
		"org_id":        orgID,
	}).Info("websocket stream opened")

	h.readLoop(wsConn, connID)
}

func (h *WebSocketHandler) readLoop(wsConn *websocket.Conn, connID string) {
	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				h.logger.Warnf("websocket %s read error: %v", connID, err)
			}
			break
		}
		// Inbound frames are ignored; this is a push-only stream.
	}

	h.hub.RemoveConnection(connID)
	h.logger.Infof("websocket stream %s closed", connID)
}
