package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance behind cancellation
// de-duplication, the sweep lock and the admin rate limit.  None of them is
// needed for correctness.  Variables carry the REDIS_ prefix.
type RedisConfig struct {
	Disabled    bool          `envconfig:"DISABLED"`
	Addr        string        `envconfig:"ADDR" default:"localhost:6379"`
	Password    string        `envconfig:"PASSWORD"`
	DB          int           `envconfig:"DB"`
	TLS         bool          `envconfig:"TLS"`
	PingTimeout time.Duration `envconfig:"PING_TIMEOUT" default:"2s"`
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	var c RedisConfig
	err := envconfig.Process("redis", &c)
	return c, err
}

// Connect opens a client and pings it.  It returns a nil client when Redis
// is disabled, and an error when the server cannot be reached.
func (c RedisConfig) Connect(ctx context.Context) (*redis.Client, error) {
	if c.Disabled {
		return nil, nil
	}
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, c.PingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", c.Addr, err)
	}
	return client, nil
}
