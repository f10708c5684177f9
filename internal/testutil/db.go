// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"tutorx/internal/database"
	"tutorx/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// NewSQLiteDB opens a private in-memory database with every table migrated.
// The pool is pinned to one connection so transactions serialize like row locks would.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:tutorx_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// CreateUser inserts a learner account with password "password123".
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

// CreateTutor inserts a tutor account with the given hourly rate.
func CreateTutor(t testing.TB, db *gorm.DB, name string, rate float64) *models.User {
	t.Helper()
	user := CreateUser(t, db, name)
	user.IsTutor = true
	user.HourlyRate = &rate
	if err := db.Model(user).Updates(map[string]any{"is_tutor": true, "hourly_rate": rate}).Error; err != nil {
		t.Fatalf("promote tutor %s: %v", name, err)
	}
	return user
}

// CreatePost inserts a post owned by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:        title,
		Description:  "A short lesson",
		VideoURL:     "https://videos.example.com/" + strings.ReplaceAll(title, " ", "-"),
		ThumbnailURL: "https://images.example.com/thumb.webp",
		UserID:       userID,
	}
	if err := db.Omit("User").Create(post).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}

// UseEmptyReplica installs a freshly migrated, empty database as the read
// replica, standing in for one that has not caught up with any write yet.
func UseEmptyReplica(t testing.TB) *gorm.DB {
	t.Helper()
	replica := NewSQLiteDB(t)
	database.SetReadDB(replica)
	t.Cleanup(func() { database.SetReadDB(nil) })
	return replica
}
