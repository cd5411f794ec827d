package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowCounter increments key and bounds its lifetime in one round trip.
type windowCounter interface {
	hit(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// txCounter runs INCR and EXPIRE inside MULTI/EXEC so a counter can never
// outlive its window.
type txCounter struct {
	conn *redis.Client
}

func (t txCounter) hit(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := t.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val(), nil
}

// FixedWindowAllow counts a hit against the clock-aligned window containing
// now and reports whether the hit is within limit. Every instance agrees on
// window boundaries, so the count is shared across the fleet.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	if c.counter == nil {
		return false, 0, errNotInitialized
	}

	now := c.clock()
	start := now.Truncate(window)
	key := c.RateLimitKey(scope + ":" + strconv.FormatInt(start.Unix(), 10))
	// one second of slack keeps the key alive for a request racing the edge
	ttl := start.Add(window).Sub(now) + time.Second

	count, err := c.counter.hit(ctx, key, ttl)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
