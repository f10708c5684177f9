package repository

import (
	"context"
	"errors"
	"sort"

	"tutorx/internal/models"
	"tutorx/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository stores comments and the ordered reference list on their post.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and appends its reference in one transaction.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&post, comment.PostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post")
			}
			return models.NewInternalError(err)
		}

		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return models.NewInternalError(err)
		}

		var last int64
		if err := tx.Model(&models.PostCommentRef{}).
			Where("post_id = ?", comment.PostID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error; err != nil {
			return models.NewInternalError(err)
		}

		ref := models.PostCommentRef{PostID: comment.PostID, CommentID: comment.ID, Position: last + 1}
		if err := tx.Create(&ref).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment")
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	byPost, err := loadPostComments(readDB(ctx, r.db), []uint{postID})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	comments := byPost[postID]
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Delete removes the reference and the row in one transaction.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.PostCommentRef{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment")
		}
		return nil
	})
}

// loadPostComments returns each post's comments in reference order with authors attached.
func loadPostComments(db *gorm.DB, postIDs []uint) (map[uint][]models.Comment, error) {
	out := make(map[uint][]models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var comments []models.Comment
	if err := db.Where("post_id IN ?", postIDs).Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return out, nil
	}

	var refs []models.PostCommentRef
	if err := db.Where("post_id IN ?", postIDs).Find(&refs).Error; err != nil {
		return nil, err
	}

	authorIDs := make([]uint, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.UserID)
	}
	authors, err := loadUsers(db, authorIDs)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].Author = authors[comments[i].UserID].Summary()
	}

	grouped := make(map[uint][]models.Comment, len(postIDs))
	for _, c := range comments {
		grouped[c.PostID] = append(grouped[c.PostID], c)
	}
	refsByPost := make(map[uint][]models.PostCommentRef, len(postIDs))
	for _, ref := range refs {
		refsByPost[ref.PostID] = append(refsByPost[ref.PostID], ref)
	}
	for postID, list := range grouped {
		out[postID] = orderComments(list, refsByPost[postID])
	}
	return out, nil
}

// orderComments sorts comments by reference position. Comments with no
// reference follow in their given order; references to missing comments are skipped.
func orderComments(comments []models.Comment, refs []models.PostCommentRef) []models.Comment {
	sorted := make([]models.PostCommentRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	byID := make(map[uint]models.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	out := make([]models.Comment, 0, len(comments))
	placed := make(map[uint]bool, len(comments))
	for _, ref := range sorted {
		c, ok := byID[ref.CommentID]
		if !ok || placed[c.ID] {
			continue
		}
		out = append(out, c)
		placed[c.ID] = true
	}
	for _, c := range comments {
		if !placed[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
