package models

import (
	"time"
)

// Score bounds for a tutor rating.
const (
	MinRatingScore = 1.0
	MaxRatingScore = 5.0
)

// Rating is one rater's score for a tutor. (TutorID, RaterID) is unique.
type Rating struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	TutorID   uint        `gorm:"not null;uniqueIndex:idx_rating_tutor_rater;index" json:"tutor"`
	RaterID   uint        `gorm:"not null;uniqueIndex:idx_rating_tutor_rater" json:"-"`
	Score     float64     `gorm:"column:score;not null;check:chk_ratings_score,score >= 1 AND score <= 5" json:"rating"`
	Feedback  string      `gorm:"size:500" json:"feedback"`
	Tutor     User        `gorm:"foreignKey:TutorID;constraint:OnDelete:CASCADE" json:"-"`
	Rater     User        `gorm:"foreignKey:RaterID;constraint:OnDelete:CASCADE" json:"-"`
	RaterInfo UserSummary `gorm:"-" json:"rater"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// RatingAggregate is the recomputed mean and count for a tutor.
type RatingAggregate struct {
	TutorID      uint    `json:"tutorId"`
	Rating       float64 `json:"rating"`
	TotalRatings int     `json:"totalRatings"`
}
