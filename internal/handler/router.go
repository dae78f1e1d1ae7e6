package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inviterank/tracker/internal/config"
	"inviterank/tracker/internal/handler/middleware"
	jwtpkg "inviterank/tracker/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	eventHandler *EventHandler,
	groupHandler *GroupHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORS))
	}

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtManager))

	// Event ingestion from the chat transport
	events := api.Group("/events")
	events.Use(middleware.RequireRole(jwtpkg.RoleIngest))
	{
		events.POST("/join", eventHandler.Join)
		events.POST("/message", eventHandler.Message)
		events.PUT("/admins", eventHandler.Admins)
	}

	// Read models
	groups := api.Group("/groups/:group_id")
	groups.Use(middleware.RequireRole(jwtpkg.RoleReader, jwtpkg.RoleIngest))
	{
		groups.GET("/leaderboard", groupHandler.Leaderboard)
		groups.GET("/stats", groupHandler.Stats)
		groups.GET("/members/:user_id", groupHandler.Member)
	}

	// Admin routes
	if adminHandler != nil {
		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(jwtpkg.RoleAdmin))
		{
			admin.GET("/groups", adminHandler.ListGroups)
			admin.PUT("/groups/:group_id", adminHandler.RegisterGroup)
			admin.PUT("/groups/:group_id/threshold", adminHandler.SetThreshold)
			admin.POST("/reconcile", adminHandler.Reconcile)
		}
	}

	return r
}
