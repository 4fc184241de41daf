package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/waitlist-rebooking/internal/config"
)

// AdminRateLimit caps how often each admin may run op within cfg.Window.
// Counters live under <prefix>:<op>:<user> and expire with their window.
// It must run after JWTAuth.  A nil client or a Redis failure lets the
// request through.
func AdminRateLimit(cfg config.RateLimitConfig, op string, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := int64(cfg.Limit(op))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			user := currentUserID(c)
			key := rateKey(cfg.Prefix, op, user)

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limiter unavailable", "op", op, "error", err)
				return next(c)
			}
			if n == 1 {
				if err := rdb.Expire(ctx, key, cfg.Window).Err(); err != nil {
					logger.Warn("rate limit window not set", "key", key, "error", err)
				}
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(limit-n, 0), 10))
			if n <= limit {
				return next(c)
			}

			wait, err := rdb.PTTL(ctx, key).Result()
			if err != nil || wait < 0 {
				// The window was never set; start it now so the counter
				// cannot lock the user out for good.
				rdb.Expire(ctx, key, cfg.Window)
				wait = cfg.Window
			}
			secs := int(math.Ceil(wait.Seconds()))
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			logger.Info("admin operation throttled", "op", op, "user_id", user, "retry_after_s", secs)
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too_many_requests",
				"message":     op + " rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func rateKey(prefix, op, user string) string {
	return prefix + ":" + op + ":" + user
}

func currentUserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
