package service

import (
	"context"
	"strings"

	"tutorx/internal/models"
	"tutorx/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
}

type CreateCommentInput struct {
	UserID uint   `json:"-"`
	PostID uint   `json:"postId" validate:"required"`
	Text   string `json:"text" validate:"required,notblank,max=500"`
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
	}
}

// CreateComment stores the comment and returns it with its author summary.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Text:   in.Text,
		UserID: in.UserID,
		PostID: in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	authors, err := s.userRepo.GetSummaries(ctx, []uint{in.UserID})
	if err != nil {
		return nil, err
	}
	comment.Author = authors[in.UserID]
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only delete your own comments")
	}

	if err := s.commentRepo.Delete(ctx, in.CommentID); err != nil {
		return nil, err
	}
	return comment, nil
}
