package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"go-event-hub/internal/infrastructure/config"
	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/interfaces/middleware"
	"go-event-hub/internal/interfaces/rest/v1/handler"
	"go-event-hub/internal/interfaces/sse"
	"go-event-hub/internal/interfaces/websocket"
)

func InitRouter(cfg *config.Config, hubInstance *hub.Hub, log logger.Logger) http.Handler {
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Env == "local" {
		router.Use(gin.Logger())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin", "Accept", "Cache-Control"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	auth := middleware.Auth(cfg.Auth.JWTSecret, log)

	// Subscriber streams register under the caller's authenticated identity.
	streamGroup := router.Group("")
	streamGroup.Use(auth)
	sse.InitSSERouter(log, hubInstance, streamGroup)
	websocket.InitWebSocketRouter(log, hubInstance, streamGroup)

	eventHandler := handler.NewEventHandler(hubInstance, log)
	apiGroup := router.Group("/api/v1")
	apiGroup.Use(auth)
	{
		apiGroup.POST("/events/user", eventHandler.SendToUser)
		apiGroup.POST("/events/org", eventHandler.SendToOrg)
		apiGroup.GET("/stats", eventHandler.Stats)
	}

	return router
}
