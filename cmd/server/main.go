package main // Entry point package

import (
	"context"   // root context for the worker
	"errors"    // http.ErrServerClosed comparison
	"log"       // Startup and fatal logging
	"net/http"  // server closed sentinel
	"os"        // stdout for the structured logger
	"os/signal" // graceful shutdown on SIGINT/SIGTERM
	"syscall"   // SIGTERM
	"time"      // shutdown deadline

	"github.com/joho/godotenv"    // optional .env loading
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/waitlist-rebooking/internal/app"       // object graph
	"github.com/iliyamo/waitlist-rebooking/internal/config"    // Internal config loader
	"github.com/iliyamo/waitlist-rebooking/internal/handler"   // ops handlers
	"github.com/iliyamo/waitlist-rebooking/internal/obs"       // logging and tracing
	"github.com/iliyamo/waitlist-rebooking/internal/router"    // Internal router setup
	"github.com/iliyamo/waitlist-rebooking/internal/scheduler" // nightly sweep
)

func main() {
	_ = godotenv.Load()  // .env is optional; real env vars win
	cfg := config.Load() // Load environment config
	wcfg, err := config.LoadWaitlistConfig()
	if err != nil {
		log.Fatalf("waitlist config: %v", err)
	}
	rlcfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatalf("rate limit config: %v", err)
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := obs.InitTracer("waitlist-rebooking", cfg.Env, logger)

	a, err := app.Build(ctx, cfg, wcfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	// Cancellation consumer.  Run only returns once ctx is cancelled.
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := a.Consumer().Run(ctx, a.Allocator.HandleBookingUpdate); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("cancellation consumer stopped", "error", err)
		}
	}()

	runner, err := scheduler.NewRunner(wcfg.SweepCron, wcfg.Location(), a.Sweeper.Sweep, a.Redis, wcfg.SweepLockTTL, logger)
	if err != nil {
		log.Fatalf("sweep schedule %q: %v", wcfg.SweepCron, err)
	}
	runner.Start()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.RegisterRoutes(e, handler.NewHealthHandler(a.DB, a.Redis))
	router.RegisterAdmin(e, handler.NewAdminHandler(a.Bookings, a.Sweeper, a.Allocator, logger),
		cfg.JWTSecret, rlcfg, a.Redis, logger)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	runner.Stop(shutdownCtx)
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", "error", err)
	}
}
