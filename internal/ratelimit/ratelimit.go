package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermem "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter wraps a rate limiter instance keyed per client.
type Limiter struct {
	inner *limiter.Limiter
}

// NewRedis builds a limiter backed by a Redis store.
func NewRedis(rdb *redis.Client, prefix string, max int, window time.Duration) (Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Limiter{}, err
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return Limiter{inner: limiter.New(store, rate)}, nil
}

// NewMemory builds a limiter backed by an in-process store.
func NewMemory(max int, window time.Duration) Limiter {
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return Limiter{inner: limiter.New(limitermem.NewStore(), rate)}
}

// Allow registers an event for the given key and reports whether it is within the limit.
func (l Limiter) Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error) {
	if l.inner == nil {
		return true, 0, time.Now(), nil
	}
	res, err := l.inner.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

// Limit reports the configured maximum per window, or 0 when disabled.
func (l Limiter) Limit() int {
	if l.inner == nil {
		return 0
	}
	return int(l.inner.Rate.Limit)
}
