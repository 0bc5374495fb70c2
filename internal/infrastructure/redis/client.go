package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes the Redis connection backing idempotency keys and
// attribution tracking records.
type Config struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
}

// NewClient connects to Redis and verifies the connection. Zero pool size
// or dial timeout keep the values from the URL or the driver defaults.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := HealthCheck(client)(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// HealthCheck returns a readiness probe for client.
func HealthCheck(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		return nil
	}
}
