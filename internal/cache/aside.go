package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tutorx/internal/middleware"
	"tutorx/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON reads key into dest. It reports false on a miss or when Redis is not configured.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with ttl.
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

// Aside serves key from Redis, falling back to fetch on a miss.
// fetch must populate dest. Cache failures degrade to a plain fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
