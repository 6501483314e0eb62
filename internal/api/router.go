package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tyburd/mangabot/internal/registry"
)

// RouterDeps are the services behind the HTTP API
type RouterDeps struct {
	Tracker  Tracker
	Poller   Poller
	Registry *registry.Registry
	// Auth may be nil, in which case only the health check is served
	Auth   AuthService
	Logger *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Online"})
	})

	if deps.Auth == nil {
		logger.Warn("admin_api_disabled", "reason", "JWT_SECRET or ADMIN_KEY_HASH not set")
		return router
	}

	NewAuthHandler(deps.Auth).RegisterRoutes(router.Group("/auth"))

	api := router.Group("/api")
	api.Use(AuthMiddleware(deps.Auth))
	NewClientHandler(deps.Registry).RegisterRoutes(api)
	NewSubscriptionHandler(deps.Tracker).RegisterRoutes(api)
	NewPollHandler(deps.Poller).RegisterRoutes(api)

	return router
}
