package repository

import (
	"context"
	"errors"

	"tutorx/internal/cache"
	"tutorx/internal/models"
	"tutorx/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository stores tutor ratings and keeps the tutor aggregate in step.
type RatingRepository interface {
	Upsert(ctx context.Context, rating *models.Rating) (*models.RatingAggregate, error)
	ListByTutor(ctx context.Context, tutorID uint) ([]models.Rating, error)
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository returns a RatingRepository backed by GORM.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

// Upsert writes the (tutor, rater) rating and recomputes the tutor's mean in
// the same transaction. The tutor row is locked so concurrent raters serialize.
func (r *ratingRepository) Upsert(ctx context.Context, rating *models.Rating) (*models.RatingAggregate, error) {
	defer observability.TrackQuery("upsert", "ratings")()

	var agg models.RatingAggregate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tutor models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tutor, rating.TutorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Tutor")
			}
			return models.NewInternalError(err)
		}
		if !tutor.IsTutor {
			return models.NewValidationError("User is not a tutor")
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tutor_id"}, {Name: "rater_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "feedback", "updated_at"}),
		}).Omit(clause.Associations).Create(rating).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		var stored models.Rating
		if err := tx.Where("tutor_id = ? AND rater_id = ?", rating.TutorID, rating.RaterID).First(&stored).Error; err != nil {
			return models.NewInternalError(err)
		}
		*rating = stored

		computed, err := recomputeTutorAggregate(tx, rating.TutorID)
		if err != nil {
			return models.NewInternalError(err)
		}
		agg = *computed
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateTutor(ctx, rating.TutorID)
	return &agg, nil
}

func (r *ratingRepository) ListByTutor(ctx context.Context, tutorID uint) ([]models.Rating, error) {
	ratings := []models.Rating{}
	err := cache.Aside(ctx, cache.RatingsKey(tutorID), &ratings, cache.RatingsTTL, func() error {
		db := r.db.WithContext(ctx)
		if err := db.Where("tutor_id = ?", tutorID).Order("created_at DESC").Order("id DESC").Find(&ratings).Error; err != nil {
			return models.NewInternalError(err)
		}
		raterIDs := make([]uint, 0, len(ratings))
		for _, rt := range ratings {
			raterIDs = append(raterIDs, rt.RaterID)
		}
		raters, err := loadUsers(db, raterIDs)
		if err != nil {
			return models.NewInternalError(err)
		}
		for i := range ratings {
			ratings[i].RaterInfo = raters[ratings[i].RaterID].Summary()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// recomputeTutorAggregate averages every stored rating for the tutor and writes
// rating and total_ratings back onto the user row.
func recomputeTutorAggregate(tx *gorm.DB, tutorID uint) (*models.RatingAggregate, error) {
	agg, err := tutorAggregate(tx, tutorID)
	if err != nil {
		return nil, err
	}
	if err := writeTutorAggregate(tx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

func tutorAggregate(tx *gorm.DB, tutorID uint) (*models.RatingAggregate, error) {
	var row struct {
		Total    int64
		ScoreSum float64
	}
	if err := tx.Model(&models.Rating{}).
		Select("COUNT(*) AS total, COALESCE(SUM(score), 0) AS score_sum").
		Where("tutor_id = ?", tutorID).
		Scan(&row).Error; err != nil {
		return nil, err
	}

	agg := &models.RatingAggregate{TutorID: tutorID, TotalRatings: int(row.Total)}
	if row.Total > 0 {
		agg.Rating = row.ScoreSum / float64(row.Total)
	}
	return agg, nil
}

func writeTutorAggregate(tx *gorm.DB, agg *models.RatingAggregate) error {
	return tx.Model(&models.User{}).Where("id = ?", agg.TutorID).UpdateColumns(map[string]any{
		"rating":        agg.Rating,
		"total_ratings": agg.TotalRatings,
	}).Error
}
