package service

import (
	"context"

	"tutorx/internal/models"
	"tutorx/internal/repository"
)

// SocialService covers follows and favorites between users.
type SocialService struct {
	socialRepo repository.SocialRepository
	userRepo   repository.UserRepository
}

func NewSocialService(socialRepo repository.SocialRepository, userRepo repository.UserRepository) *SocialService {
	return &SocialService{socialRepo: socialRepo, userRepo: userRepo}
}

func (s *SocialService) ToggleFollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	return s.socialRepo.ToggleFollow(ctx, followerID, followeeID)
}

func (s *SocialService) Follow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	return s.socialRepo.SetFollow(ctx, followerID, followeeID, true)
}

func (s *SocialService) Unfollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	return s.socialRepo.SetFollow(ctx, followerID, followeeID, false)
}

func (s *SocialService) ToggleFavorite(ctx context.Context, viewerID, targetID uint) (bool, error) {
	return s.socialRepo.ToggleFavorite(ctx, viewerID, targetID)
}

func (s *SocialService) ListFavorites(ctx context.Context, viewerID uint) ([]models.User, error) {
	users, err := s.socialRepo.ListFavorites(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if err := applyViewerFlags(ctx, s.socialRepo, viewerID, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SocialService) ListFollowers(ctx context.Context, userID, viewerID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.socialRepo.ListFollowers(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := applyViewerFlags(ctx, s.socialRepo, viewerID, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SocialService) ListFollowing(ctx context.Context, userID, viewerID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.socialRepo.ListFollowing(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := applyViewerFlags(ctx, s.socialRepo, viewerID, users); err != nil {
		return nil, err
	}
	return users, nil
}
