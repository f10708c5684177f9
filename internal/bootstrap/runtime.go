// Package bootstrap wires the database and Redis for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"tutorx/internal/cache"
	"tutorx/internal/config"
	"tutorx/internal/database"
	"tutorx/internal/middleware"
	"tutorx/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedFixtures loads the demo accounts from the embedded fixtures file.
	SeedFixtures bool
}

// InitRuntime connects to DB and Redis and optionally loads demo fixtures.
// The Redis client is nil when REDIS_URL is unset or unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedFixtures {
		fx, err := seed.DefaultFixtures()
		if err != nil {
			return nil, nil, err
		}
		sum, err := seed.ApplyFixtures(context.Background(), db, fx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
		middleware.Logger.Info("fixtures loaded", slog.String("summary", sum.String()))
	}

	return db, r, nil
}
