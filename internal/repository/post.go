package repository

import (
	"context"
	"errors"

	"tutorx/internal/models"
	"tutorx/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a PostRepository backed by GORM.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	db := readDB(ctx, r.db)
	var post models.Post
	if err := db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post")
		}
		return nil, models.NewInternalError(err)
	}
	posts := []*models.Post{&post}
	if err := hydratePosts(db, posts, viewerID); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return r.list(ctx, 0, limit, offset, viewerID)
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return r.list(ctx, userID, limit, offset, viewerID)
}

func (r *postRepository) list(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	limit, offset = clampPage(limit, offset)
	db := readDB(ctx, r.db)

	q := db.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset)
	if authorID != 0 {
		q = q.Where("user_id = ?", authorID)
	}
	posts := []*models.Post{}
	if err := q.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := hydratePosts(db, posts, viewerID); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Update writes the editable columns. The like counter is left alone.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
		Updates(map[string]any{
			"title":         post.Title,
			"description":   post.Description,
			"video_url":     post.VideoURL,
			"thumbnail_url": post.ThumbnailURL,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the post with its comments, comment references and likes.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "posts")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostCommentRef{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post")
		}
		return nil
	})
}

// hydratePosts fills author summaries, ordered comments and the viewer's liked flag.
func hydratePosts(db *gorm.DB, posts []*models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, 0, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.UserID)
	}

	authors, err := loadUsers(db, authorIDs)
	if err != nil {
		return err
	}
	comments, err := loadPostComments(db, postIDs)
	if err != nil {
		return err
	}

	liked := map[uint]bool{}
	if viewerID != 0 {
		var likedIDs []uint
		if err := db.Model(&models.Like{}).
			Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
			Pluck("post_id", &likedIDs).Error; err != nil {
			return err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	for _, p := range posts {
		p.Author = authors[p.UserID].Summary()
		p.Comments = comments[p.ID]
		if p.Comments == nil {
			p.Comments = []models.Comment{}
		}
		p.Liked = liked[p.ID]
	}
	return nil
}
