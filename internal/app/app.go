// Package app assembles the rebooking engine from configuration.  Both the
// long-running server and waitlistctl build the same object graph here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/waitlist-rebooking/internal/config"
	"github.com/iliyamo/waitlist-rebooking/internal/database"
	"github.com/iliyamo/waitlist-rebooking/internal/queue"
	"github.com/iliyamo/waitlist-rebooking/internal/repository"
	"github.com/iliyamo/waitlist-rebooking/internal/service"
)

// App holds the wired components.  Close releases every connection it
// opened.
type App struct {
	Cfg      config.Config
	Waitlist config.WaitlistConfig
	Log      *slog.Logger

	DB    *sql.DB
	Redis *redis.Client

	Bookings  *repository.BookingRepo
	Entries   *repository.WaitlistRepo
	Allocator *service.Allocator
	Sweeper   *service.Sweeper

	closers []io.Closer
}

// Build opens MySQL and Redis, applies the schema and wires the engine.
// Redis is optional; a nil client turns off de-duplication, the sweep
// lock and the admin rate limit.
func Build(ctx context.Context, cfg config.Config, wcfg config.WaitlistConfig, logger *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	a := &App{Cfg: cfg, Waitlist: wcfg, Log: logger, DB: db, closers: []io.Closer{db}}
	rcfg, err := config.LoadRedisConfig()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis config: %w", err)
	}
	a.Redis, err = rcfg.Connect(ctx)
	switch {
	case err != nil:
		logger.Warn("redis unavailable; de-duplication, sweep lock and rate limit disabled", "error", err)
	case a.Redis == nil:
		logger.Info("redis disabled; de-duplication, sweep lock and rate limit off")
	default:
		a.closers = append(a.closers, a.Redis)
	}

	var notifier service.Notifier
	switch wcfg.Notifier {
	case "log":
		notifier = service.NewLogNotifier(logger)
	default:
		pub := queue.NewNotificationPublisher(cfg.AMQPURL, wcfg.NotificationExchange, wcfg.NotificationKey)
		a.closers = append(a.closers, pub)
		notifier = pub
	}

	a.Bookings = repository.NewBookingRepo(db)
	a.Entries = repository.NewWaitlistRepo(db)
	a.Allocator, a.Sweeper = Wire(a.Entries, repository.NewTierRepo(db), a.Bookings, notifier, a.Redis, wcfg, logger)
	return a, nil
}

// Wire builds the allocator and sweeper over the given stores.
func Wire(entries interface {
	service.WaitlistLister
	service.ExpiryStore
}, tiers service.TierLookup, slots service.SlotTransactor, notifier service.Notifier, rdb *redis.Client, wcfg config.WaitlistConfig, logger *slog.Logger) (*service.Allocator, *service.Sweeper) {
	retry := service.RetryPolicy{
		MaxAttempts:    wcfg.MaxAttempts,
		InitialBackoff: wcfg.InitialBackoff,
		MaxBackoff:     wcfg.MaxBackoff,
	}
	var guard *service.EventGuard
	if rdb != nil {
		guard = service.NewEventGuard(rdb, wcfg.DedupeTTL, logger)
	}
	alloc := service.NewAllocator(
		entries,
		service.NewTierClassifier(tiers, wcfg.TierConcurrency, logger),
		slots,
		service.NewDispatcher(notifier, wcfg.SendTimeout, logger),
		guard,
		service.AllocatorConfig{CandidateLimit: wcfg.CandidateLimit, Retry: retry},
		logger,
	)
	sweeper := service.NewSweeper(entries, wcfg.Location(), wcfg.SweepPageSize, retry, logger)
	return alloc, sweeper
}

// Consumer returns the cancellation event source configured for this app.
func (a *App) Consumer() *queue.CancellationConsumer {
	return queue.NewCancellationConsumer(queue.ConsumerConfig{
		URL:        a.Cfg.AMQPURL,
		Exchange:   a.Waitlist.BookingExchange,
		Queue:      a.Waitlist.BookingQueue,
		RoutingKey: a.Waitlist.BookingRoutingKey,
		Prefetch:   a.Waitlist.Prefetch,
	}, a.Log)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
