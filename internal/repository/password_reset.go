package repository

import (
	"context"
	"errors"
	"time"

	"tutorx/internal/cache"
	"tutorx/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
var ErrResetTokenInvalid = models.NewValidationError("Reset token is invalid or has expired")

// PasswordResetRepository stores hashed single-use password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository returns a PasswordResetRepository backed by GORM.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Consume marks the token used and sets the new password hash atomically.
// It returns the owning user's id.
func (r *passwordResetRepository) Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint, error) {
	var userID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND used_at IS NULL", tokenHash).
			First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		if err != nil {
			return models.NewInternalError(err)
		}
		if !now.Before(token.ExpiresAt) {
			return ErrResetTokenInvalid
		}

		if err := tx.Model(&token).Update("used_at", now).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", token.UserID).Update("password", passwordHash).Error; err != nil {
			return models.NewInternalError(err)
		}
		userID = token.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	cache.InvalidateUser(ctx, userID)
	return userID, nil
}

// DeleteExpired prunes tokens that expired before the cutoff or were already used.
func (r *passwordResetRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", before).
		Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
