package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/openclaw/attendance-server-go/internal/redis"
)

// rateLimitScript trims the window, then admits and records the request if
// the count is under limit. It returns {allowed, resetAtMillis}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 10000)

local resetAt = now + window
return {1, resetAt}
`)

// RateLimiter counts requests per key in a Redis sorted set over a sliding window.
type RateLimiter struct {
	client   *redis.Client
	failOpen bool
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter that denies requests when Redis is unavailable.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// FailOpen returns a copy of the limiter that admits requests when Redis is unavailable.
func (rl *RateLimiter) FailOpen() *RateLimiter {
	c := *rl
	c.failOpen = true
	return &c
}

// CheckLimit reports whether one more request under key fits in window. When
// Redis fails the answer follows the limiter's fail-open setting.
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	now := rl.now()
	fullKey := redisclient.RateLimitKey(key)

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{fullKey},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()

	if err == nil && len(result) != 2 {
		err = fmt.Errorf("unexpected rate limit result length %d", len(result))
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Bool("failOpen", rl.failOpen).
			Msg("rate limit check failed")
		return rl.failOpen, now.Add(window)
	}

	return result[0] == 1, time.UnixMilli(result[1])
}
