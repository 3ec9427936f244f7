package sse

import (
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

// InitSSERouter mounts the subscriber stream endpoint. Auth runs at the
// parent group level.
func InitSSERouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	handler := NewStreamHandler(hubInstance, log)

	sseGroup := rg.Group("/sse")
	sseGroup.GET("", Headers(), handler.Connect)
}
