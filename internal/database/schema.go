package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tutorx/internal/config"
	"tutorx/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus summarizes what ApplySchema would do.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func schemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// schemaPolicy decides which schema steps run. Hybrid skips AutoMigrate in prod-like envs.
func schemaPolicy(cfg *config.Config) (runSQL, runAuto bool, err error) {
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode := schemaMode(cfg); mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// AutoMigrate runs GORM AutoMigrate over every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs SQL migrations and/or AutoMigrate according to the schema policy.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", schemaMode(cfg)), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the policy and the applied/pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               schemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
	}
	if !runSQL {
		return status, nil
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, l := range applied {
		status.AppliedVersions = append(status.AppliedVersions, l.Version)
		done[l.Version] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
