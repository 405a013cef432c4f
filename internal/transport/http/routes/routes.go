package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/infra/config"
	redisinfra "github.com/khepriforge/auth-service/internal/infra/redis"
	"github.com/khepriforge/auth-service/internal/infra/security"
	"github.com/khepriforge/auth-service/internal/infra/telemetry"
	"github.com/khepriforge/auth-service/internal/transport/http/handlers"
	"github.com/khepriforge/auth-service/internal/transport/http/middleware"
	"github.com/khepriforge/auth-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Passwords *usecase.PasswordService
	TwoFactor *usecase.TwoFactorService
	Audit     *usecase.AuditRecorder
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Sessions    *security.SessionIssuer
	Telemetry   *telemetry.Provider
	HTTPMetrics *middleware.HTTPMetrics
	Database    *pgxpool.Pool
	Cache       *redisinfra.Client
	Services    ServiceSet
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	sessionMiddleware := middleware.RequireSession(deps.Sessions)

	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Cache)
	r.GET("/healthz", healthHandler.Status)

	r.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Sessions, deps.Telemetry)
		authHandler.RegisterRoutes(authGroup, buildLoginMiddlewares(deps)...)

		userGroup := api.Group("/user")
		userGroup.Use(sessionMiddleware)
		userHandler := handlers.NewUserHandler(deps.Services.Passwords, deps.Services.TwoFactor)
		userHandler.RegisterRoutes(userGroup)

		auditGroup := api.Group("")
		auditGroup.Use(sessionMiddleware)
		auditHandler := handlers.NewAuditHandler(deps.Services.Audit)
		auditHandler.RegisterRoutes(auditGroup)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
