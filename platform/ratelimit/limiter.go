// Package ratelimit provides per-key request budgets.
// This is part of the platform layer and contains no business logic.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait before trying again. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter decides whether key may spend one more request of a limit-per-window budget.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

const keyPrefix = "rl:"

// RedisLimiter is a fixed-window counter shared by every instance pointing at the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisLimiter wraps an existing go-redis client.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Allow increments the counter of the current window. The key expires when the window ends.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now().UnixNano()
	slot := now / int64(window)
	remaining := time.Duration((slot+1)*int64(window) - now)
	windowKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, slot)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.PExpire(ctx, windowKey, remaining)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if incr.Val() <= int64(limit) {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: remaining}, nil
}

// LocalLimiter keeps one token bucket per key in process memory.
// Budgets are not shared between instances.
type LocalLimiter struct {
	limiters sync.Map
}

// NewLocalLimiter creates an empty in-process limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{}
}

type localEntry struct {
	limiter *rate.Limiter
	limit   int
	window  time.Duration
}

// Allow spends one token from the bucket of key. A bucket refills limit tokens per window.
func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}

	entry := l.entry(key, limit, window)
	reservation := entry.limiter.Reserve()
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: window}, nil
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

func (l *LocalLimiter) entry(key string, limit int, window time.Duration) *localEntry {
	if existing, ok := l.limiters.Load(key); ok {
		e := existing.(*localEntry)
		if e.limit == limit && e.window == window {
			return e
		}
	}
	every := rate.Every(window / time.Duration(limit))
	e := &localEntry{limiter: rate.NewLimiter(every, limit), limit: limit, window: window}
	actual, loaded := l.limiters.LoadOrStore(key, e)
	if loaded {
		existing := actual.(*localEntry)
		if existing.limit == limit && existing.window == window {
			return existing
		}
		l.limiters.Store(key, e)
	}
	return e
}
