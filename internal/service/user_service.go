package service

import (
	"context"
	"strings"

	"tutorx/internal/models"
	"tutorx/internal/repository"
)

type UserService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
}

// UpdateProfileInput carries optional profile changes; nil fields are left alone.
type UpdateProfileInput struct {
	UserID     uint     `json:"-"`
	Name       *string  `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Bio        *string  `json:"bio" validate:"omitempty,max=500"`
	IsTutor    *bool    `json:"isTutor"`
	HourlyRate *float64 `json:"hourlyRate" validate:"omitempty,gt=0"`
	Subjects   *string  `json:"subjects" validate:"omitempty,max=500"`
}

// ListTutorsInput is the tutor directory query.
type ListTutorsInput struct {
	Query     string
	Subject   string
	MinRating *float64
	MaxRate   *float64
	Sort      string
	Limit     int
	Offset    int
	ViewerID  uint
}

func NewUserService(userRepo repository.UserRepository, socialRepo repository.SocialRepository) *UserService {
	return &UserService{userRepo: userRepo, socialRepo: socialRepo}
}

// GetUser returns the user with isFavorite and isFollowing resolved for viewerID.
func (s *UserService) GetUser(ctx context.Context, id, viewerID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	users := []models.User{*user}
	if err := applyViewerFlags(ctx, s.socialRepo, viewerID, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.IsTutor != nil {
		user.IsTutor = *in.IsTutor
	}
	if in.HourlyRate != nil {
		rate := *in.HourlyRate
		user.HourlyRate = &rate
	}
	if in.Subjects != nil {
		user.Subjects = strings.TrimSpace(*in.Subjects)
	}

	if user.IsTutor && user.HourlyRate == nil {
		return nil, models.NewValidationError("Hourly rate is required for tutors")
	}
	if !user.IsTutor {
		user.HourlyRate = nil
		user.Subjects = ""
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvatar points the user's avatar at an already stored image.
func (s *UserService) SetAvatar(ctx context.Context, userID uint, avatarURL string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatarURL
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListTutors(ctx context.Context, in ListTutorsInput) ([]models.User, error) {
	switch in.Sort {
	case "", repository.TutorSortRating, repository.TutorSortRate, repository.TutorSortNewest:
	default:
		return nil, models.NewValidationError("Invalid sort (use rating, rate or newest)")
	}
	if in.MinRating != nil && (*in.MinRating < 0 || *in.MinRating > models.MaxRatingScore) {
		return nil, models.NewValidationError("minRating must be between 0 and 5")
	}
	if in.MaxRate != nil && *in.MaxRate < 0 {
		return nil, models.NewValidationError("maxRate cannot be negative")
	}

	tutors, err := s.userRepo.ListTutors(ctx, repository.TutorFilter{
		Query:     in.Query,
		Subject:   in.Subject,
		MinRating: in.MinRating,
		MaxRate:   in.MaxRate,
		Sort:      in.Sort,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, err
	}
	if err := applyViewerFlags(ctx, s.socialRepo, in.ViewerID, tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

// applyViewerFlags resolves isFavorite and isFollowing on users for viewerID.
func applyViewerFlags(ctx context.Context, socialRepo repository.SocialRepository, viewerID uint, users []models.User) error {
	if viewerID == 0 || len(users) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	favorites, following, err := socialRepo.ViewerRelations(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range users {
		users[i].IsFavorite = favorites[users[i].ID]
		users[i].IsFollowing = following[users[i].ID]
	}
	return nil
}
