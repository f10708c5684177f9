// Command migrate applies, inspects and rolls back the tutorX schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tutorx/internal/config"
	"tutorx/internal/database"
	"tutorx/internal/middleware"
)

const usageText = "usage: migrate [-timeout 2m] <up|auto|status|down> [version]"

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	timeout := flag.Duration("timeout", 2*time.Minute, "Abort after this long")
	flag.Parse()
	if flag.NArg() < 1 {
		return errors.New(usageText)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	log := middleware.Logger

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		log.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema: %w", err)
		}
		log.Info("automigrate applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		log.Info("schema status",
			slog.String("mode", status.Mode),
			slog.String("env", status.Environment),
			slog.Bool("run_sql", status.WillRunSQL),
			slog.Bool("run_auto", status.WillRunAutoMigrate),
			slog.Int("applied", len(status.AppliedVersions)),
			slog.Int("pending", len(status.PendingMigrations)))
		for _, m := range status.PendingMigrations {
			log.Info("pending migration", slog.String("name", fmt.Sprintf("%06d_%s", m.Version, m.Name)))
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		log.Info("rolled back migration", slog.Int("version", version))
	default:
		return errors.New(usageText)
	}
	return nil
}
