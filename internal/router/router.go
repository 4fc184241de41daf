package router // package router defines how HTTP routes are registered for the ops API

import (
	"log/slog" // logger for the rate limiter

	"github.com/labstack/echo/v4"                             // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus scrape handler
	"github.com/redis/go-redis/v9"                            // backing store for the admin rate limits

	"github.com/iliyamo/waitlist-rebooking/internal/config"     // rate limit settings
	"github.com/iliyamo/waitlist-rebooking/internal/handler"    // handlers for health and admin operations
	"github.com/iliyamo/waitlist-rebooking/internal/middleware" // JWT authentication, role enforcement, rate limiting
)

// AdminRole is the JWT role claim required on /v1/admin.
const AdminRole = "ADMIN"

// RegisterRoutes registers routes that do not require authentication: the
// health check used by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAdmin registers the operator endpoints under /v1/admin.  Every
// request must carry an ADMIN access token.  Each operation has its own
// per-user budget in Redis, which is skipped when rdb is nil.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(AdminRole))

	// Rate limiting runs after auth so budgets can be keyed by user.
	g.POST("/waitlist/sweep", a.Sweep, middleware.AdminRateLimit(rl, config.AdminOpSweep, rdb, logger))
	g.POST("/bookings/:id/reallocate", a.Reallocate, middleware.AdminRateLimit(rl, config.AdminOpReallocate, rdb, logger))
}
