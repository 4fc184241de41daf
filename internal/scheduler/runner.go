// Package scheduler runs the expiration sweep on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/waitlist-rebooking/internal/metrics"
	"github.com/iliyamo/waitlist-rebooking/internal/service"
)

const lockKey = "waitlist:sweep:lock"

// SweepFunc is satisfied by (*service.Sweeper).Sweep.
type SweepFunc func(ctx context.Context) (service.SweepResult, error)

// Runner fires the sweep on a cron schedule.  When several replicas run,
// each tick takes a Redis lock so only one of them sweeps.  The lock is
// left to expire rather than released, which also stops a replica with
// a skewed clock from sweeping the same day twice.
type Runner struct {
	cron    *cron.Cron
	spec    string
	sweep   SweepFunc
	rdb     *redis.Client
	lockTTL time.Duration
	timeout time.Duration
	log     *slog.Logger
}

// NewRunner parses spec in loc.  rdb may be nil for single-replica setups.
func NewRunner(spec string, loc *time.Location, sweep SweepFunc, rdb *redis.Client, lockTTL time.Duration, logger *slog.Logger) (*Runner, error) {
	if loc == nil {
		loc = time.UTC
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	r := &Runner{
		cron:    cron.New(cron.WithLocation(loc)),
		spec:    spec,
		sweep:   sweep,
		rdb:     rdb,
		lockTTL: lockTTL,
		timeout: lockTTL,
		log:     logger.With("component", "scheduler"),
	}
	if _, err := r.cron.AddFunc(spec, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins firing in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info("sweep scheduled", "cron", r.spec)
}

// Stop waits for a running sweep to finish or ctx to end.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.log.Warn("sweep still running at shutdown")
	}
}

// RunOnce performs one scheduled tick.  It reports whether this replica
// ran the sweep.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if !r.acquire(ctx) {
		metrics.TrackSweep("skipped", 0)
		r.log.Info("sweep lock held elsewhere, skipping tick")
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.sweep(ctx); err != nil {
		r.log.Error("scheduled sweep failed", "error", err)
	}
	return true
}

func (r *Runner) acquire(ctx context.Context) bool {
	if r.rdb == nil {
		return true
	}
	ok, err := r.rdb.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), r.lockTTL).Result()
	if err != nil {
		// Expiring the same entries twice is harmless; missing a day is not.
		r.log.Warn("sweep lock unavailable, sweeping anyway", "error", err)
		return true
	}
	return ok
}
