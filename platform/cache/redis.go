// Package cache provides the Redis client used for short-lived guards.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client holds the Redis client.
type Client struct {
	Redis *redis.Client
}

// NewClient parses redisURL, connects and pings.
func NewClient(ctx context.Context, redisURL string, tlsInsecure bool) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if tlsInsecure {
		if opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{}
		}
		opts.TLSConfig.InsecureSkipVerify = true
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Client{Redis: client}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Claim sets key only if it does not exist. It reports whether this caller
// won the key.
func (c *Client) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.Redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release deletes a claimed key so a later attempt can claim it again.
func (c *Client) Release(ctx context.Context, key string) error {
	return c.Redis.Del(ctx, key).Err()
}
