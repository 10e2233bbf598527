// Package router wires the admin API routes.
package router

import (
	"time"

	"player-watch/internal/handler"
	"player-watch/internal/middleware"
	"player-watch/internal/types"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all middleware and routes registered.
func NewRouter(serverHandler *handler.Server, configManager types.ConfigManager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Register global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger(configManager.GetLogConfig()))
	startTime := time.Now()
	router.Use(func(c *gin.Context) {
		c.Set("serverStartTime", startTime)
		c.Next()
	})

	registerSystemRoutes(router, serverHandler)
	registerAPIRoutes(router, serverHandler, configManager)

	return router
}

// registerSystemRoutes registers system-level routes
func registerSystemRoutes(router *gin.Engine, serverHandler *handler.Server) {
	router.GET("/health", serverHandler.Health)
}

// registerAPIRoutes registers API routes
func registerAPIRoutes(router *gin.Engine, serverHandler *handler.Server, configManager types.ConfigManager) {
	api := router.Group("/api")
	api.Use(middleware.Auth(configManager.GetAuthConfig()))

	api.GET("/runs", serverHandler.ListRuns)
	api.GET("/devices/status", serverHandler.ListDeviceStatuses)
	api.GET("/devices/version-mismatches", serverHandler.ListVersionMismatches)
	api.POST("/checks/:name/run", serverHandler.TriggerCheck)
}
