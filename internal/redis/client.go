package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "attendance"
	pingTimeout = 5 * time.Second
)

// Client carries rate-limit counters and the live session feed. Postgres stays
// the source of truth; nothing here is needed to decide a claim.
type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

// Wrap adopts an already configured go-redis client.
func Wrap(client *redis.Client) *Client {
	return &Client{client}
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// SessionEventsChannel is the pub/sub channel carrying live scan events for a session.
func SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:events", keyPrefix, sessionID)
}

// RateLimitKey namespaces a sliding-window counter.
func RateLimitKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)
}
