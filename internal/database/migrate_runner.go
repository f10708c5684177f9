package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tutorx/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serializes concurrent migrators on Postgres.
const migrationLockKey = 72631001

// MigrationLog represents a record of an applied migration in the database.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func appliedMigrations(ctx context.Context, db *gorm.DB) ([]MigrationLog, error) {
	var logs []MigrationLog
	err := db.WithContext(ctx).Order("version ASC").Find(&logs).Error
	if err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return logs, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such table")
}

func withMigrationLock(ctx context.Context, db *gorm.DB, fn func() error) error {
	if db.Dialector.Name() != "postgres" {
		return fn()
	}
	if err := db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", migrationLockKey).Error; err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer db.WithContext(context.Background()).Exec("SELECT pg_advisory_unlock(?)", migrationLockKey)
	return fn()
}

// RunMigrations applies every pending embedded migration, each in its own transaction.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(ensureMigrationLogTableSQL).Error; err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	return withMigrationLock(ctx, db, func() error {
		applied, err := appliedMigrations(ctx, db)
		if err != nil {
			return err
		}
		if err := validateApplied(applied, migrations); err != nil {
			return err
		}

		done := make(map[int]bool, len(applied))
		for _, l := range applied {
			done[l.Version] = true
		}

		for _, m := range migrations {
			if done[m.Version] {
				continue
			}
			middleware.Logger.Info("Applying migration", slog.String("migration", m.String()))
			err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := tx.Exec(m.UpScript).Error; err != nil {
					return err
				}
				return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum}).Error
			})
			if err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.String(), err)
			}
		}
		return nil
	})
}

// validateApplied rejects logs for versions the binary does not know and edited scripts.
func validateApplied(applied []MigrationLog, registered []Migration) error {
	known := make(map[int]Migration, len(registered))
	for _, m := range registered {
		known[m.Version] = m
	}

	var unknown []int
	for _, l := range applied {
		m, ok := known[l.Version]
		if !ok {
			unknown = append(unknown, l.Version)
			continue
		}
		if l.Checksum != "" && l.Checksum != m.Checksum {
			return fmt.Errorf("migration %s was modified after it was applied", m.String())
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	parts := make([]string, 0, len(unknown))
	for _, v := range unknown {
		parts = append(parts, fmt.Sprintf("%06d", v))
	}
	return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(parts, ", "))
}

// RollbackMigration runs the down script of an applied migration and removes its log row.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	return withMigrationLock(ctx, db, func() error {
		var logRow MigrationLog
		err := db.WithContext(ctx).Where("version = ?", version).First(&logRow).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		if err != nil {
			return err
		}

		middleware.Logger.Info("Rolling back migration", slog.String("migration", m.String()))
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.DownScript).Error; err != nil {
				return fmt.Errorf("run rollback SQL for %s: %w", m.String(), err)
			}
			return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
		})
	})
}
