package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"driftboard/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result in Redis with ttl. A cache read error is treated as
// a miss so a flaky Redis never fails a read path the DB can serve.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		observability.CacheRequests.WithLabelValues("hit").Inc()
		return nil
	}
	observability.CacheRequests.WithLabelValues("miss").Inc()

	// Fetch from source (DB)
	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}
