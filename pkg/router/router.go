package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"nexus-chat/internal/api"
	"nexus-chat/pkg/config"
	"nexus-chat/pkg/di"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
	"nexus-chat/pkg/middleware"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the functions host
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container. Background work
// started here stops when ctx is done.
func New(ctx context.Context, container *di.Container) *Router {
	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.ContextPropagation())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	if container.Metrics != nil {
		engine.Use(container.Metrics.Middleware())
	}

	if cfg.Security.MaxBodySize > 0 {
		engine.Use(bodyLimit(cfg.Security.MaxBodySize))
	}

	rateLimiter := middleware.NewRateLimiter(ctx, container.Logger, middleware.RateLimiterOptions{
		Limit:          rateLimit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
	})
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	health := &api.Handler{Env: r.Config.Server.Env, StartedAt: startTime}
	health.RegisterHealthRoutes(r.Engine)

	if r.Container.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(r.Container.Metrics.Handler))
	}

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")
	v1.Use(corsMiddleware(r.Config.Security.AllowedOrigins))
	{
		v1.GET("/health", r.Container.Health.Handler())
	}

	// Platform functions answer their own CORS preflight
	resetHandler := api.NewPasswordResetHandler(r.Container.PasswordReset, r.Logger)
	resetHandler.RegisterRoutes(r.Engine)
}

// corsMiddleware allows the configured origins; "*" allows any.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	anyOrigin := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && set[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Cache-Control, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
