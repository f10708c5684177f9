package service

import (
	"context"
	"math"
	"strings"

	"tutorx/internal/models"
	"tutorx/internal/observability"
	"tutorx/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type RatingService struct {
	ratingRepo repository.RatingRepository
	userRepo   repository.UserRepository
}

// RateTutorInput accepts the score as "rating" and the note as "feedback" or "comment".
type RateTutorInput struct {
	RaterID  uint     `json:"-"`
	TutorID  uint     `json:"tutorId" validate:"required"`
	Rating   *float64 `json:"rating" validate:"required,min=1,max=5"`
	Feedback string   `json:"feedback" validate:"max=500"`
	Comment  string   `json:"comment" validate:"max=500"`
}

// RateTutorResult is the stored rating plus the tutor's recomputed aggregate.
type RateTutorResult struct {
	Rating    *models.Rating          `json:"rating"`
	Aggregate *models.RatingAggregate `json:"tutor"`
}

func NewRatingService(ratingRepo repository.RatingRepository, userRepo repository.UserRepository) *RatingService {
	return &RatingService{ratingRepo: ratingRepo, userRepo: userRepo}
}

func (s *RatingService) RateTutor(ctx context.Context, in RateTutorInput) (_ *RateTutorResult, err error) {
	ctx, span := observability.StartSpan(ctx, "rating.rate_tutor",
		attribute.Int64("tutor.id", int64(in.TutorID)),
		attribute.Int64("rater.id", int64(in.RaterID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err = validateInput(in); err != nil {
		return nil, err
	}
	if math.IsNaN(*in.Rating) {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	if in.RaterID == in.TutorID {
		return nil, models.NewValidationError("You cannot rate yourself")
	}

	feedback := strings.TrimSpace(in.Feedback)
	if feedback == "" {
		feedback = strings.TrimSpace(in.Comment)
	}

	rating := &models.Rating{
		TutorID:  in.TutorID,
		RaterID:  in.RaterID,
		Score:    *in.Rating,
		Feedback: feedback,
	}
	agg, err := s.ratingRepo.Upsert(ctx, rating)
	if err != nil {
		return nil, err
	}

	raters, err := s.userRepo.GetSummaries(ctx, []uint{in.RaterID})
	if err != nil {
		return nil, err
	}
	rating.RaterInfo = raters[in.RaterID]
	return &RateTutorResult{Rating: rating, Aggregate: agg}, nil
}

func (s *RatingService) ListRatings(ctx context.Context, tutorID uint) ([]models.Rating, error) {
	if _, err := s.userRepo.GetByID(ctx, tutorID); err != nil {
		return nil, err
	}
	return s.ratingRepo.ListByTutor(ctx, tutorID)
}
