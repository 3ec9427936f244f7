package sse

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/interfaces/middleware"
)

type StreamHandler struct {
	hub    *hub.Hub
	logger logger.Logger
}

func NewStreamHandler(hubInstance *hub.Hub, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "sse"),
	}
}

// Connect registers the authenticated caller as a subscriber and holds the
// response stream open until the client goes away. The hub pushes the initial
// connection event; everything after that arrives through fanout.
func (h *StreamHandler) Connect(c *gin.Context) {
	userID, orgID, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	transport, err := hub.NewSSETransport(c.Writer)
	if err != nil {
		h.logger.Errorf("cannot stream to this client: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	connID := fmt.Sprintf("conn-%s", uuid.NewString())
	conn := hub.NewConn(connID, userID, orgID, transport)
	h.hub.AddConnection(conn)

	h.logger.WithFields(logger.Fields{
		"connection_id": connID,
		"user_id":       userID,
		"org_id":        orgID,
	}).Info("sse stream opened")

	<-c.Request.Context().Done()
	h.hub.RemoveConnection(connID)
	h.logger.Infof("sse stream %s closed", connID)
}

// Headers sets the response headers a streaming endpoint needs before any
// body bytes go out.
func Headers() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Next()
	}
}
