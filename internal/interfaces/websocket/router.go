package websocket

import (
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

// InitWebSocketRouter mounts the WebSocket subscriber endpoint.
func InitWebSocketRouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	handler := NewWebSocketHandler(hubInstance, log)

	wsGroup := rg.Group("/ws")
	wsGroup.GET("", handler.Connect)
}
