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

// Desired relation state for SetLike and SetFollow.
type relationOp int

const (
	opToggle relationOp = iota
	opAdd
	opRemove
)

// SocialRepository owns the like, follow and favorite relation tables and their counters.
type SocialRepository interface {
	ToggleLike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error)
	SetLike(ctx context.Context, userID, postID uint, liked bool) (*models.ToggleResult, error)
	ToggleFollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error)
	SetFollow(ctx context.Context, followerID, followeeID uint, following bool) (*models.ToggleResult, error)
	ToggleFavorite(ctx context.Context, viewerID, targetID uint) (bool, error)
	ListFavorites(ctx context.Context, viewerID uint) ([]models.User, error)
	ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	ViewerRelations(ctx context.Context, viewerID uint, targetIDs []uint) (favorites, following map[uint]bool, err error)
}

type socialRepository struct {
	db *gorm.DB
}

// NewSocialRepository returns a SocialRepository backed by GORM.
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

func (r *socialRepository) ToggleLike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return r.like(ctx, userID, postID, opToggle)
}

func (r *socialRepository) SetLike(ctx context.Context, userID, postID uint, liked bool) (*models.ToggleResult, error) {
	if liked {
		return r.like(ctx, userID, postID, opAdd)
	}
	return r.like(ctx, userID, postID, opRemove)
}

// like applies op to the (user, post) row and moves the post counter only
// when a row was actually inserted or deleted.
func (r *socialRepository) like(ctx context.Context, userID, postID uint, op relationOp) (*models.ToggleResult, error) {
	defer observability.TrackQuery("toggle", "likes")()
	result := &models.ToggleResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "user_id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post")
			}
			return models.NewInternalError(err)
		}
		result.OwnerID = post.UserID

		where := tx.Where("user_id = ? AND post_id = ?", userID, postID)
		active, changed, err := applyRelation(tx, where, &models.Like{UserID: userID, PostID: postID}, &models.Like{}, op)
		if err != nil {
			return models.NewInternalError(err)
		}
		if changed {
			if err := bumpCounter(tx, &models.Post{}, postID, "likes", active); err != nil {
				return models.NewInternalError(err)
			}
		}

		var likes int
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Select("likes").Scan(&likes).Error; err != nil {
			return models.NewInternalError(err)
		}
		result.Active, result.Count = active, likes
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.RecordToggle("like", result.Active)
	return result, nil
}

func (r *socialRepository) ToggleFollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	return r.follow(ctx, followerID, followeeID, opToggle)
}

func (r *socialRepository) SetFollow(ctx context.Context, followerID, followeeID uint, following bool) (*models.ToggleResult, error) {
	if following {
		return r.follow(ctx, followerID, followeeID, opAdd)
	}
	return r.follow(ctx, followerID, followeeID, opRemove)
}

// follow moves the followee's followers and the follower's following together.
func (r *socialRepository) follow(ctx context.Context, followerID, followeeID uint, op relationOp) (*models.ToggleResult, error) {
	if followerID == followeeID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	defer observability.TrackQuery("toggle", "follows")()

	result := &models.ToggleResult{}
	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRow(tx, &models.User{}, followeeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}

		where := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID)
		active, changed, err := applyRelation(tx, where, &models.Follow{FollowerID: followerID, FolloweeID: followeeID}, &models.Follow{}, op)
		if err != nil {
			return models.NewInternalError(err)
		}
		moved = changed
		if changed {
			if err := bumpCounter(tx, &models.User{}, followeeID, "followers", active); err != nil {
				return models.NewInternalError(err)
			}
			if err := bumpCounter(tx, &models.User{}, followerID, "following", active); err != nil {
				return models.NewInternalError(err)
			}
		}

		var followers int
		if err := tx.Model(&models.User{}).Where("id = ?", followeeID).Select("followers").Scan(&followers).Error; err != nil {
			return models.NewInternalError(err)
		}
		result.Active, result.Count, result.OwnerID = active, followers, followeeID
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.UserKey(followerID), cache.UserKey(followeeID))
	if moved {
		// The tutor directory shows follower counts.
		cache.InvalidateTutorDirectory(ctx)
	}
	observability.RecordToggle("follow", result.Active)
	return result, nil
}

func (r *socialRepository) ToggleFavorite(ctx context.Context, viewerID, targetID uint) (bool, error) {
	if viewerID == targetID {
		return false, models.NewValidationError("You cannot favorite yourself")
	}
	var active bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.Select("id").First(&target, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		where := tx.Where("viewer_id = ? AND target_id = ?", viewerID, targetID)
		var err error
		active, _, err = applyRelation(tx, where, &models.Favorite{ViewerID: viewerID, TargetID: targetID}, &models.Favorite{}, opToggle)
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	cache.InvalidateFavorites(ctx, viewerID)
	observability.RecordToggle("favorite", active)
	return active, nil
}

// ListFavorites caches only the viewer's target IDs. Profiles come from the
// per-user entries, which rating, follow and profile writes already invalidate.
func (r *socialRepository) ListFavorites(ctx context.Context, viewerID uint) ([]models.User, error) {
	var ids []uint
	err := cache.Aside(ctx, cache.FavoritesKey(viewerID), &ids, cache.FavoritesTTL, func() error {
		err := r.db.WithContext(ctx).Model(&models.Favorite{}).
			Where("viewer_id = ?", viewerID).
			Order("created_at DESC").Order("target_id ASC").
			Pluck("target_id", &ids).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, err := cachedUser(ctx, r.db, id)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				continue
			}
			return nil, err
		}
		u.IsFavorite = true
		users = append(users, *u)
	}
	return users, nil
}

func (r *socialRepository) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.followList(ctx, "follows.follower_id", "follows.followee_id", userID, limit, offset)
}

func (r *socialRepository) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.followList(ctx, "follows.followee_id", "follows.follower_id", userID, limit, offset)
}

func (r *socialRepository) followList(ctx context.Context, joinCol, whereCol string, userID uint, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset)
	users := []models.User{}
	err := readDB(ctx, r.db).
		Joins("JOIN follows ON "+joinCol+" = users.id").
		Where(whereCol+" = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *socialRepository) ViewerRelations(ctx context.Context, viewerID uint, targetIDs []uint) (map[uint]bool, map[uint]bool, error) {
	favorites := map[uint]bool{}
	following := map[uint]bool{}
	if viewerID == 0 || len(targetIDs) == 0 {
		return favorites, following, nil
	}
	db := readDB(ctx, r.db)

	var ids []uint
	if err := db.Model(&models.Favorite{}).
		Where("viewer_id = ? AND target_id IN ?", viewerID, targetIDs).
		Pluck("target_id", &ids).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		favorites[id] = true
	}

	ids = nil
	if err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id IN ?", viewerID, targetIDs).
		Pluck("followee_id", &ids).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		following[id] = true
	}
	return favorites, following, nil
}

func lockRow(tx *gorm.DB, model any, id uint) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(model, id).Error
}

// applyRelation deletes or inserts the relation row. It reports the resulting
// state and whether a row actually changed.
func applyRelation(tx *gorm.DB, where *gorm.DB, row any, model any, op relationOp) (active, changed bool, err error) {
	if op != opAdd {
		res := where.Delete(model)
		if res.Error != nil {
			return false, false, res.Error
		}
		if res.RowsAffected > 0 || op == opRemove {
			return false, res.RowsAffected > 0, nil
		}
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(row)
	if res.Error != nil {
		return false, false, res.Error
	}
	return true, res.RowsAffected > 0, nil
}

// bumpCounter moves an integer column by one and never below zero.
func bumpCounter(tx *gorm.DB, model any, id uint, column string, up bool) error {
	expr := gorm.Expr(column + " + 1")
	if !up {
		expr = gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
	}
	return tx.Model(model).Where("id = ?", id).UpdateColumn(column, expr).Error
}
