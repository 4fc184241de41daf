package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// WaitlistConfig tunes the rebooking engine.  Variables carry the
// WAITLIST_ prefix, e.g. WAITLIST_CANDIDATE_LIMIT.
type WaitlistConfig struct {
	CandidateLimit  int           `envconfig:"CANDIDATE_LIMIT" default:"20"`
	TierConcurrency int           `envconfig:"TIER_CONCURRENCY" default:"8"`
	MaxAttempts     uint64        `envconfig:"MAX_ATTEMPTS" default:"4"`
	InitialBackoff  time.Duration `envconfig:"INITIAL_BACKOFF" default:"200ms"`
	MaxBackoff      time.Duration `envconfig:"MAX_BACKOFF" default:"2s"`
	DedupeTTL       time.Duration `envconfig:"DEDUPE_TTL" default:"24h"`

	SweepCron     string        `envconfig:"SWEEP_CRON" default:"0 2 * * *"`
	SweepTimezone string        `envconfig:"SWEEP_TZ" default:"America/New_York"`
	SweepPageSize int           `envconfig:"SWEEP_PAGE_SIZE" default:"200"`
	SweepLockTTL  time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"1h"`

	BookingExchange      string `envconfig:"BOOKING_EXCHANGE" default:"bookings"`
	BookingQueue         string `envconfig:"BOOKING_QUEUE" default:"waitlist.booking-updated"`
	BookingRoutingKey    string `envconfig:"BOOKING_ROUTING_KEY" default:"booking.updated"`
	NotificationExchange string `envconfig:"NOTIFICATION_EXCHANGE" default:"notifications"`
	NotificationKey      string `envconfig:"NOTIFICATION_ROUTING_KEY" default:"user.notify"`
	Prefetch             int    `envconfig:"PREFETCH" default:"16"`

	// Notifier selects the delivery channel: "amqp" publishes to
	// NotificationExchange, "log" writes messages to the log.
	Notifier    string        `envconfig:"NOTIFIER" default:"amqp"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"5s"`

	loc *time.Location
}

// LoadWaitlistConfig reads WAITLIST_* variables, falling back to defaults.
// An unknown WAITLIST_SWEEP_TZ is an error.
func LoadWaitlistConfig() (WaitlistConfig, error) {
	var c WaitlistConfig
	if err := envconfig.Process("waitlist", &c); err != nil {
		return c, err
	}
	loc, err := time.LoadLocation(c.SweepTimezone)
	if err != nil {
		return c, fmt.Errorf("WAITLIST_SWEEP_TZ %q: %w", c.SweepTimezone, err)
	}
	c.loc = loc
	if c.CandidateLimit < 1 {
		c.CandidateLimit = 1
	}
	if c.TierConcurrency < 1 {
		c.TierConcurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.SweepPageSize < 1 {
		c.SweepPageSize = 1
	}
	if c.Notifier != "log" {
		c.Notifier = "amqp"
	}
	return c, nil
}

// Location is the sweep zone resolved by LoadWaitlistConfig.  A config
// built without it uses UTC.
func (c WaitlistConfig) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
