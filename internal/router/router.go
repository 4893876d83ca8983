package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/handler"
	"github.com/stemsi/proctor-backend/internal/middleware"
	"github.com/stemsi/proctor-backend/internal/response"
	"github.com/stemsi/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	WS        *handler.WSHandler
	QuizAdmin *handler.QuizAdminHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweeper.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; allow all in dev.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Participant WebSocket Stream ────────────────────────────────
	startLimiter := middleware.NewRateLimiter(ctx, cfg.SessionStartRate, time.Minute)
	wsGroup := router.Group("/ws/v1/quiz")
	wsGroup.Use(startLimiter.Middleware(), middleware.RequireParticipantWSAuth(authService))
	{
		wsGroup.GET("/stream", handlers.WS.QuizStream)
	}

	// ─── 2. Admin Group ────────────────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(service.RoleAdmin),
		middleware.NoStore(),
	)
	{
		quiz := admin.Group("/quiz")
		quiz.GET("/sessions", handlers.QuizAdmin.ListSessions)
		quiz.GET("/sessions/:id/live", handlers.QuizAdmin.LiveSession)
		quiz.GET("/overview", handlers.QuizAdmin.Overview)
		quiz.GET("/monitor", handlers.Monitor.MonitorSSE)

		admin.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
