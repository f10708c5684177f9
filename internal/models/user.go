// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account. Tutors carry an hourly rate and an aggregate rating.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	IsTutor      bool      `gorm:"not null;default:false;index" json:"isTutor"`
	HourlyRate   *float64  `json:"hourlyRate,omitempty"`
	Subjects     string    `gorm:"size:500" json:"subjects,omitempty"`
	Bio          string    `gorm:"size:500" json:"bio"`
	AvatarURL    string    `json:"avatarUrl"`
	Followers    int       `gorm:"not null;default:0" json:"followers"`
	Following    int       `gorm:"not null;default:0" json:"following"`
	Rating       float64   `gorm:"not null;default:0" json:"rating"`
	TotalRatings int       `gorm:"not null;default:0" json:"totalRatings"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Viewer-relative projections, filled per request.
	IsFavorite  bool `gorm:"-" json:"isFavorite"`
	IsFollowing bool `gorm:"-" json:"isFollowing"`
}

// UserSummary is the author projection embedded in posts, comments and ratings.
type UserSummary struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	AvatarURL    string   `json:"avatarUrl"`
	IsTutor      bool     `json:"isTutor"`
	HourlyRate   *float64 `json:"hourlyRate,omitempty"`
	Rating       float64  `json:"rating"`
	TotalRatings int      `json:"totalRatings"`
}

// Summary projects the user onto its public author fields.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		IsTutor:      u.IsTutor,
		HourlyRate:   u.HourlyRate,
		Rating:       u.Rating,
		TotalRatings: u.TotalRatings,
	}
}

// PasswordResetToken stores the SHA-256 of a single-use reset token.
type PasswordResetToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"not null;index"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}
