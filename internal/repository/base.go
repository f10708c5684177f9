// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"tutorx/internal/database"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type primaryReadKey struct{}

// WithPrimary routes every repository read made with ctx to the primary.
// Use it when reading back a row the same request just wrote, or when a
// permission check must not act on replica lag.
func WithPrimary(ctx context.Context) context.Context {
	return context.WithValue(ctx, primaryReadKey{}, true)
}

// readDB picks the replica for uncached reads. Reads that fill the shared
// cache use the primary directly: a lagging replica would pin stale data
// there for a full TTL.
func readDB(ctx context.Context, primary *gorm.DB) *gorm.DB {
	if pinned, _ := ctx.Value(primaryReadKey{}).(bool); pinned {
		return primary.WithContext(ctx)
	}
	if db := database.GetReadDB(); db != nil {
		return db.WithContext(ctx)
	}
	return primary.WithContext(ctx)
}

// isUniqueViolation reports a duplicate key from Postgres or a translated GORM error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
