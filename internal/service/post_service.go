package service

import (
	"context"
	"strings"

	"tutorx/internal/models"
	"tutorx/internal/repository"
)

type PostService struct {
	postRepo   repository.PostRepository
	socialRepo repository.SocialRepository
}

type CreatePostInput struct {
	UserID       uint   `json:"-"`
	Title        string `json:"title" validate:"required,notblank,max=100"`
	Description  string `json:"description" validate:"max=500"`
	VideoURL     string `json:"videoUrl" validate:"required,notblank,max=2048"`
	ThumbnailURL string `json:"thumbnailUrl" validate:"required,notblank,max=2048"`
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	CurrentUserID uint
}

// UpdatePostInput changes only the non-empty fields.
type UpdatePostInput struct {
	UserID       uint   `json:"-"`
	PostID       uint   `json:"-"`
	Title        string `json:"title" validate:"max=100"`
	Description  string `json:"description" validate:"max=500"`
	VideoURL     string `json:"videoUrl" validate:"max=2048"`
	ThumbnailURL string `json:"thumbnailUrl" validate:"max=2048"`
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(postRepo repository.PostRepository, socialRepo repository.SocialRepository) *PostService {
	return &PostService{
		postRepo:   postRepo,
		socialRepo: socialRepo,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.ThumbnailURL = strings.TrimSpace(in.ThumbnailURL)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:        in.Title,
		Description:  in.Description,
		VideoURL:     in.VideoURL,
		ThumbnailURL: in.ThumbnailURL,
		UserID:       in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(repository.WithPrimary(ctx), post.ID, in.UserID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx, in.Limit, in.Offset, in.CurrentUserID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.postRepo.ListByUser(ctx, userID, limit, offset, currentUserID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(repository.WithPrimary(ctx), in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if v := strings.TrimSpace(in.Title); v != "" {
		post.Title = v
	}
	if in.Description != "" {
		post.Description = in.Description
	}
	if v := strings.TrimSpace(in.VideoURL); v != "" {
		post.VideoURL = v
	}
	if v := strings.TrimSpace(in.ThumbnailURL); v != "" {
		post.ThumbnailURL = v
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(repository.WithPrimary(ctx), in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.socialRepo.ToggleLike(ctx, userID, postID)
}

func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.socialRepo.SetLike(ctx, userID, postID, true)
}

func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.socialRepo.SetLike(ctx, userID, postID, false)
}
