package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventGuard remembers which cancellations already produced an outcome so
// a redelivered event neither re-runs allocation nor re-sends
// notifications.  A booking enters cancelled at most once, so its id is
// the key.
//
// The marker is written only after the allocation transaction finished.
// A reaction that is dropped, cancelled or crashes leaves no marker, and
// the redelivery is processed in full.  Without Redis the guard is
// permissive: the transaction still prevents a second booking and only
// duplicate notifications come back.
type EventGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewEventGuard(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *EventGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventGuard{rdb: rdb, ttl: ttl, prefix: "waitlist:cancel:", log: logger.With("component", "event-guard")}
}

// Seen reports whether an earlier delivery of bookingID already completed.
func (g *EventGuard) Seen(ctx context.Context, bookingID string) bool {
	if g == nil || g.rdb == nil {
		return false
	}
	n, err := g.rdb.Exists(ctx, g.prefix+bookingID).Result()
	if err != nil {
		g.log.Warn("dedupe check failed, processing anyway", "booking_id", bookingID, "error", err)
		return false
	}
	return n > 0
}

// Mark records that bookingID produced an outcome.  It returns false when
// a concurrent delivery recorded one first.
func (g *EventGuard) Mark(ctx context.Context, bookingID string) bool {
	if g == nil || g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, g.prefix+bookingID, "1", g.ttl).Result()
	if err != nil {
		g.log.Warn("dedupe mark failed", "booking_id", bookingID, "error", err)
		return true
	}
	return ok
}
