package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

// EventHandler is the publish surface for co-located business logic. Delivery
// is best-effort by design: a 202 means the event was fanned out to whoever
// was connected, not that anyone received it.
type EventHandler struct {
	hub    *hub.Hub
	logger logger.Logger
}

func NewEventHandler(hubInstance *hub.Hub, log logger.Logger) *EventHandler {
	return &EventHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "events"),
	}
}

type publishUserRequest struct {
	UserID string          `json:"userId" binding:"required"`
	OrgID  string          `json:"organizationId" binding:"required"`
	Type   string          `json:"type" binding:"required"`
	Data   json.RawMessage `json:"data" binding:"required"`
}

type publishOrgRequest struct {
	OrgID string          `json:"organizationId" binding:"required"`
	Type  string          `json:"type" binding:"required"`
	Data  json.RawMessage `json:"data" binding:"required"`
}

// SendToUser fans an event out to every connection of one user in one
// organization.
func (h *EventHandler) SendToUser(c *gin.Context) {
	var req publishUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if !hub.EventType(req.Type).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	h.hub.SendToUser(req.UserID, req.OrgID, hub.Event{
		Type: hub.EventType(req.Type),
		Data: req.Data,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// SendToOrg fans an event out to every connection in an organization.
func (h *EventHandler) SendToOrg(c *gin.Context) {
	var req publishOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if !hub.EventType(req.Type).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	h.hub.SendToOrg(req.OrgID, hub.Event{
		Type: hub.EventType(req.Type),
		Data: req.Data,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Stats reports the current connection census.
func (h *EventHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}
