package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/access"
	"github.com/lalith-99/mehfil/internal/middleware"
	"github.com/lalith-99/mehfil/internal/repository"
	"go.uber.org/zap"
)

// RouterDeps is everything the HTTP surface is built from.
type RouterDeps struct {
	Logger   *zap.Logger
	Verifier middleware.TokenVerifier
	Boundary *access.Boundary
	Users    repository.UserRepository

	// Webhook is nil when no signing secret is configured; the route is
	// then not mounted at all.
	Webhook *WebhookHandler

	// Health reports dependency health for /health. Optional.
	Health func(ctx context.Context) error
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(deps.Logger), gin.Recovery())
	r.Use(middleware.Authenticate(deps.Verifier, deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				deps.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")

	if deps.Webhook != nil {
		apiGroup.POST("/webhooks/identity", deps.Webhook.Identity)
	}

	authed := apiGroup.Group("")
	authed.Use(middleware.RequireIdentity())

	chatHandler := NewChatHandler(deps.Boundary, deps.Logger)
	chatRoutes := authed.Group("/chat")
	chatRoutes.GET("/token", chatHandler.Token)
	chatRoutes.POST("/sync-public-channels", chatHandler.SyncPublicChannels)
	chatRoutes.POST("/delete-channel", chatHandler.DeleteChannel)
	chatRoutes.POST("/channels", chatHandler.CreateChannel)
	chatRoutes.GET("/channels/active", chatHandler.ActiveChannel)
	chatRoutes.POST("/channels/:id/invite", chatHandler.Invite)
	chatRoutes.POST("/channels/:id/join", chatHandler.Join)

	userHandler := NewUserHandler(deps.Users, deps.Logger)
	authed.GET("/users/me", userHandler.GetMe)

	return r
}
