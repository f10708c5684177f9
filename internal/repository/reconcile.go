package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"tutorx/internal/cache"
	"tutorx/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reconcileBatchSize = 500

// ReconcileRepository recomputes materialized counters from their source tables.
// Each method returns how many rows it corrected.
type ReconcileRepository interface {
	RecomputeTutorAggregates(ctx context.Context) (int, error)
	RecomputeLikeCounters(ctx context.Context) (int, error)
	RecomputeFollowCounters(ctx context.Context) (int, error)
	RepairCommentRefs(ctx context.Context) (int, error)
}

type reconcileRepository struct {
	db *gorm.DB
}

// NewReconcileRepository returns a ReconcileRepository backed by GORM.
func NewReconcileRepository(db *gorm.DB) ReconcileRepository {
	return &reconcileRepository{db: db}
}

type groupCount struct {
	ID    uint
	Total int64
}

func (r *reconcileRepository) countBy(ctx context.Context, model any, column string) (map[uint]int64, error) {
	var rows []groupCount
	if err := r.db.WithContext(ctx).Model(model).
		Select(column + " AS id, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Total
	}
	return out, nil
}

// RecomputeTutorAggregates compares a snapshot of rating sums with each
// tutor row. Rows that disagree are recounted under a row lock before any
// write, so a rating committed after the snapshot is never rolled back.
func (r *reconcileRepository) RecomputeTutorAggregates(ctx context.Context) (int, error) {
	var sums []struct {
		TutorID  uint
		Total    int64
		ScoreSum float64
	}
	if err := r.db.WithContext(ctx).Model(&models.Rating{}).
		Select("tutor_id, COUNT(*) AS total, SUM(score) AS score_sum").
		Group("tutor_id").
		Scan(&sums).Error; err != nil {
		return 0, fmt.Errorf("sum ratings: %w", err)
	}
	expected := make(map[uint]models.RatingAggregate, len(sums))
	for _, s := range sums {
		expected[s.TutorID] = models.RatingAggregate{
			TutorID:      s.TutorID,
			Rating:       s.ScoreSum / float64(s.Total),
			TotalRatings: int(s.Total),
		}
	}

	var suspects []uint
	var batch []models.User
	err := r.db.WithContext(ctx).
		Select("id", "rating", "total_ratings").
		Where("is_tutor = ? OR total_ratings > 0", true).
		FindInBatches(&batch, reconcileBatchSize, func(_ *gorm.DB, _ int) error {
			for _, u := range batch {
				if !sameAggregate(u, expected[u.ID]) {
					suspects = append(suspects, u.ID)
				}
			}
			return nil
		}).Error
	if err != nil {
		return 0, fmt.Errorf("scan tutor aggregates: %w", err)
	}

	fixed := 0
	for _, id := range suspects {
		changed, err := r.lockedFix(ctx, id, []string{"id", "rating", "total_ratings"}, &models.User{}, func(tx *gorm.DB, row any) (bool, error) {
			agg, err := tutorAggregate(tx, id)
			if err != nil {
				return false, err
			}
			if sameAggregate(*row.(*models.User), *agg) {
				return false, nil
			}
			return true, writeTutorAggregate(tx, agg)
		})
		if err != nil {
			return fixed, fmt.Errorf("fix tutor %d aggregate: %w", id, err)
		}
		if changed {
			fixed++
			cache.InvalidateTutor(ctx, id)
		}
	}
	return fixed, nil
}

func sameAggregate(u models.User, agg models.RatingAggregate) bool {
	return u.TotalRatings == agg.TotalRatings && math.Abs(u.Rating-agg.Rating) < 1e-9
}

// RecomputeLikeCounters recounts, under the post row lock, every post whose
// counter disagrees with a snapshot of the likes table.
func (r *reconcileRepository) RecomputeLikeCounters(ctx context.Context) (int, error) {
	counts, err := r.countBy(ctx, &models.Like{}, "post_id")
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}

	var suspects []uint
	var batch []models.Post
	err = r.db.WithContext(ctx).Select("id", "likes").
		FindInBatches(&batch, reconcileBatchSize, func(_ *gorm.DB, _ int) error {
			for _, p := range batch {
				if int64(p.Likes) != counts[p.ID] {
					suspects = append(suspects, p.ID)
				}
			}
			return nil
		}).Error
	if err != nil {
		return 0, fmt.Errorf("scan like counters: %w", err)
	}

	fixed := 0
	for _, id := range suspects {
		changed, err := r.lockedFix(ctx, id, []string{"id", "likes"}, &models.Post{}, func(tx *gorm.DB, row any) (bool, error) {
			var likes int64
			if err := tx.Model(&models.Like{}).Where("post_id = ?", id).Count(&likes).Error; err != nil {
				return false, err
			}
			if int64(row.(*models.Post).Likes) == likes {
				return false, nil
			}
			return true, tx.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("likes", likes).Error
		})
		if err != nil {
			return fixed, fmt.Errorf("fix post %d likes: %w", id, err)
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

// RecomputeFollowCounters does the same for followers and following. The
// tutor directory shows follower counts, so any fix also bumps its version.
func (r *reconcileRepository) RecomputeFollowCounters(ctx context.Context) (int, error) {
	followers, err := r.countBy(ctx, &models.Follow{}, "followee_id")
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	following, err := r.countBy(ctx, &models.Follow{}, "follower_id")
	if err != nil {
		return 0, fmt.Errorf("count following: %w", err)
	}

	var suspects []uint
	var batch []models.User
	err = r.db.WithContext(ctx).Select("id", "followers", "following").
		FindInBatches(&batch, reconcileBatchSize, func(_ *gorm.DB, _ int) error {
			for _, u := range batch {
				if int64(u.Followers) != followers[u.ID] || int64(u.Following) != following[u.ID] {
					suspects = append(suspects, u.ID)
				}
			}
			return nil
		}).Error
	if err != nil {
		return 0, fmt.Errorf("scan follow counters: %w", err)
	}

	fixed := 0
	for _, id := range suspects {
		changed, err := r.lockedFix(ctx, id, []string{"id", "followers", "following"}, &models.User{}, func(tx *gorm.DB, row any) (bool, error) {
			var in, out int64
			if err := tx.Model(&models.Follow{}).Where("followee_id = ?", id).Count(&in).Error; err != nil {
				return false, err
			}
			if err := tx.Model(&models.Follow{}).Where("follower_id = ?", id).Count(&out).Error; err != nil {
				return false, err
			}
			u := row.(*models.User)
			if int64(u.Followers) == in && int64(u.Following) == out {
				return false, nil
			}
			return true, tx.Model(&models.User{}).Where("id = ?", id).
				UpdateColumns(map[string]any{"followers": in, "following": out}).Error
		})
		if err != nil {
			return fixed, fmt.Errorf("fix user %d follow counters: %w", id, err)
		}
		if changed {
			fixed++
			cache.InvalidateUser(ctx, id)
		}
	}
	if fixed > 0 {
		cache.InvalidateTutorDirectory(ctx)
	}
	return fixed, nil
}

// lockedFix reads row id with FOR UPDATE and hands it to fix inside the same
// transaction. Toggles and rating upserts take the same lock, so fix sees
// every write committed before it and blocks later ones until it commits.
// A row deleted since the scan is skipped.
func (r *reconcileRepository) lockedFix(ctx context.Context, id uint, columns []string, row any, fix func(tx *gorm.DB, row any) (bool, error)) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select(columns).First(row, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		changed, err = fix(tx, row)
		return err
	})
	return changed, err
}

// RepairCommentRefs drops references to missing comments and appends a
// reference for every comment that has none.
func (r *reconcileRepository) RepairCommentRefs(ctx context.Context) (int, error) {
	fixed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id NOT IN (?)", tx.Model(&models.Comment{}).Select("id")).
			Delete(&models.PostCommentRef{})
		if res.Error != nil {
			return fmt.Errorf("prune dangling refs: %w", res.Error)
		}
		fixed += int(res.RowsAffected)

		var orphans []models.Comment
		if err := tx.Where("id NOT IN (?)", tx.Model(&models.PostCommentRef{}).Select("comment_id")).
			Order("created_at ASC").Order("id ASC").
			Find(&orphans).Error; err != nil {
			return fmt.Errorf("find unreferenced comments: %w", err)
		}

		next := map[uint]int64{}
		for _, c := range orphans {
			pos, ok := next[c.PostID]
			if !ok {
				if err := tx.Model(&models.PostCommentRef{}).
					Where("post_id = ?", c.PostID).
					Select("COALESCE(MAX(position), 0)").
					Scan(&pos).Error; err != nil {
					return fmt.Errorf("max ref position: %w", err)
				}
			}
			pos++
			next[c.PostID] = pos
			if err := tx.Create(&models.PostCommentRef{PostID: c.PostID, CommentID: c.ID, Position: pos}).Error; err != nil {
				return fmt.Errorf("append ref: %w", err)
			}
			fixed++
		}
		return nil
	})
	return fixed, err
}
