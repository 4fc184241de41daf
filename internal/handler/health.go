package handler // declare the package name; contains HTTP handlers

import (
	"context"  // bounded pings
	"net/http" // net/http provides status codes and response helpers
	"time"     // ping timeout

	"github.com/labstack/echo/v4"  // echo is the web framework used for this project
	"github.com/redis/go-redis/v9" // optional Redis dependency
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the stores the engine depends on answer.
// Redis is optional; a nil client is reported as "disabled".
type HealthHandler struct {
	DB    Pinger
	Redis *redis.Client
}

func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb}
}

// Health handles GET /healthz.  It returns 200 when MySQL answers a ping
// and 503 otherwise.  A failing Redis is reported but does not fail the
// check, since every Redis-backed feature degrades instead of stopping.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"status": "ok", "mysql": "ok", "redis": "disabled"}
	if err := h.DB.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["mysql"] = err.Error()
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		} else {
			body["redis"] = "ok"
		}
	}
	return c.JSON(status, body)
}
