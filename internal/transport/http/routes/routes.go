package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/infra/config"
	"github.com/arklim/portal-identity/internal/transport/http/handlers"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
)

var untrackedPaths = []string{"/healthz", "/readyz", "/metrics"}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         handlers.AuthFlows
	Verification handlers.VerificationFlows
	Passwords    handlers.PasswordFlows
	Accounts     handlers.AccountManager
	Access       handlers.AccessManager
	Contacts     handlers.ContactInbox
	Analytics    handlers.AnalyticsReporter
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	AuthMetrics handlers.AuthRecorder
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	production := deps.Config.App.IsProduction()
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(middleware.ErrorDetail(!production))
	r.Use(deps.HTTPMetrics.Handler())
	if deps.Services.Analytics != nil {
		r.Use(middleware.TrackRequests(deps.Services.Analytics, untrackedPaths...))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", metricsHandler(deps.Gatherer))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.NewErrorEnvelope(c, "NotFound", "route not found"))
	})

	if deps.Services.Auth == nil {
		return r
	}

	cookies := handlers.CookieConfig{
		Domain: deps.Config.Cookie.Domain,
		Path:   deps.Config.Cookie.Path,
		Secure: production,
	}
	requireAuth := middleware.RequireAuth(deps.Services.Auth)
	optionalAuth := middleware.OptionalAuth(deps.Services.Auth)

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(
			deps.Services.Auth,
			deps.Services.Verification,
			deps.Services.Passwords,
			cookies,
			handlers.WithAuthMetrics(deps.AuthMetrics),
		)
		authHandler.RegisterRoutes(api.Group("/auth"), handlers.AuthRouteLimits{
			Register:       ipRule(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			Login:          ipRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
			PasswordForgot: ipRule(deps, "password_forgot_ip", deps.Config.RateLimit.PasswordForgotMaxAttempts),
		})

		if deps.Services.Accounts != nil {
			accountHandler := handlers.NewAccountHandler(deps.Services.Accounts, cookies)
			accountHandler.RegisterRoutes(api.Group("/me", requireAuth))
		}

		if deps.Services.Access != nil {
			accessHandler := handlers.NewAccessHandler(deps.Services.Access)
			accessHandler.RegisterRoutes(api.Group("/access"), requireAuth)
		}

		if deps.Services.Contacts != nil {
			contactHandler := handlers.NewContactHandler(deps.Services.Contacts)
			contactChain := []gin.HandlerFunc{optionalAuth}
			if limit := ipRule(deps, "contact_ip", deps.Config.RateLimit.ContactMaxAttempts); limit != nil {
				contactChain = append(contactChain, limit)
			}
			api.POST("/contact", append(contactChain, contactHandler.Submit)...)
		}

		if deps.Services.Analytics != nil {
			analyticsHandler := handlers.NewAnalyticsHandler(deps.Services.Analytics)
			api.POST("/analytics/track", analyticsHandler.Track)
		}

		if deps.Services.Accounts != nil && deps.Services.Access != nil && deps.Services.Contacts != nil && deps.Services.Analytics != nil {
			adminHandler := handlers.NewAdminHandler(deps.Services.Accounts, deps.Services.Access, deps.Services.Contacts, deps.Services.Analytics)
			adminHandler.RegisterRoutes(api.Group("/admin", requireAuth, middleware.RequireAdmin()))
		}
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	if gatherer == nil {
		return gin.WrapH(promhttp.Handler())
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// ipRule builds a per-IP sliding-window limit. It returns nil when limiting is disabled.
func ipRule(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = 15 * time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}
