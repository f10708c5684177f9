package repository

import (
	"context"
	"testing"
	"time"

	"tutorx/internal/models"
	"tutorx/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetRepository_Consume(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPasswordResetRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	user := testutil.CreateUser(t, db, "Forgetful User")
	require.NoError(t, repo.Create(ctx, &models.PasswordResetToken{UserID: user.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.PasswordResetToken{UserID: user.ID, TokenHash: "stale", ExpiresAt: now.Add(-time.Minute)}))

	userID, err := repo.Consume(ctx, "live", now, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "new-hash", stored.Password)

	tests := []struct {
		name string
		hash string
	}{
		{name: "already used", hash: "live"},
		{name: "expired", hash: "stale"},
		{name: "unknown", hash: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Consume(ctx, tt.hash, now, "other-hash")
			assert.ErrorIs(t, err, ErrResetTokenInvalid)
		})
	}

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
