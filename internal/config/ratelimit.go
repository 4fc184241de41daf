package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Admin operations that carry their own rate limit budget.
const (
	AdminOpSweep      = "sweep"
	AdminOpReallocate = "reallocate"
)

// RateLimitConfig budgets admin operations per user in fixed windows.
// Variables carry the ADMIN_RATE_LIMIT_ prefix, e.g.
// ADMIN_RATE_LIMIT_SWEEP_LIMIT.  A sweep walks every stale entry, so it
// gets a much smaller budget than a single-booking reallocation.
type RateLimitConfig struct {
	Enabled         bool          `envconfig:"ENABLED" default:"true"`
	Window          time.Duration `envconfig:"WINDOW" default:"1m"`
	SweepLimit      int           `envconfig:"SWEEP_LIMIT" default:"2"`
	ReallocateLimit int           `envconfig:"REALLOCATE_LIMIT" default:"30"`
	Prefix          string        `envconfig:"PREFIX" default:"rl:admin"`
}

// LoadRateLimitConfig reads ADMIN_RATE_LIMIT_* variables.  Windows shorter
// than a second and budgets below one are raised to those floors.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := envconfig.Process("admin_rate_limit", &c); err != nil {
		return c, err
	}
	if c.Window < time.Second {
		c.Window = time.Second
	}
	if c.SweepLimit < 1 {
		c.SweepLimit = 1
	}
	if c.ReallocateLimit < 1 {
		c.ReallocateLimit = 1
	}
	return c, nil
}

// Limit is the number of calls to op one user may make per Window.
func (c RateLimitConfig) Limit(op string) int {
	switch op {
	case AdminOpSweep:
		return c.SweepLimit
	case AdminOpReallocate:
		return c.ReallocateLimit
	}
	return 1
}
