// Package redis wraps go-redis with the pool settings and health check the
// rest of the service expects.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"brokerhub/internal/platform/config"
)

// Client embeds the go-redis client so callers keep its full API.
type Client struct {
	*redis.Client
}

// New dials Redis from config and verifies connectivity with a ping. An
// empty URL means Redis is not configured; both return values are nil so the
// caller can fall back to in-memory stores.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health pings the server; the /healthz endpoint calls this.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
