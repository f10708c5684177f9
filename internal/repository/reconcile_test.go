package repository

import (
	"context"
	"testing"

	"tutorx/internal/cache"
	"tutorx/internal/models"
	"tutorx/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReconcileRepository_Counters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReconcileRepository(db)
	ratings := NewRatingRepository(db)
	social := NewSocialRepository(db)
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, db, "Drifted Tutor", 30)
	fan := testutil.CreateUser(t, db, "Drifted Fan")
	post := testutil.CreatePost(t, db, tutor.ID, "Drifted post")

	_, err := ratings.Upsert(ctx, &models.Rating{TutorID: tutor.ID, RaterID: fan.ID, Score: 4})
	require.NoError(t, err)
	_, err = social.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	_, err = social.ToggleFollow(ctx, fan.ID, tutor.ID)
	require.NoError(t, err)

	// Corrupt every materialized counter.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", tutor.ID).
		UpdateColumns(map[string]any{"rating": 1.0, "total_ratings": 9, "followers": 4}).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", fan.ID).UpdateColumn("following", 0).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes", 7).Error)

	fixed, err := repo.RecomputeTutorAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	fixed, err = repo.RecomputeLikeCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	fixed, err = repo.RecomputeFollowCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	var tutorRow, fanRow models.User
	var postRow models.Post
	require.NoError(t, db.First(&tutorRow, tutor.ID).Error)
	require.NoError(t, db.First(&fanRow, fan.ID).Error)
	require.NoError(t, db.First(&postRow, post.ID).Error)
	assert.InDelta(t, 4.0, tutorRow.Rating, 1e-9)
	assert.Equal(t, 1, tutorRow.TotalRatings)
	assert.Equal(t, 1, tutorRow.Followers)
	assert.Equal(t, 1, fanRow.Following)
	assert.Equal(t, 1, postRow.Likes)

	// A second pass finds nothing to fix.
	fixed, err = repo.RecomputeTutorAggregates(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
	fixed, err = repo.RecomputeLikeCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestReconcileRepository_RepairCommentRefs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReconcileRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Ref Author")
	post := testutil.CreatePost(t, db, author.ID, "Ref post")

	linked := &models.Comment{Text: "linked", UserID: author.ID, PostID: post.ID}
	require.NoError(t, comments.Create(ctx, linked))

	orphan := &models.Comment{Text: "orphan", UserID: author.ID, PostID: post.ID}
	require.NoError(t, db.Omit("User", "Post").Create(orphan).Error)
	require.NoError(t, db.Create(&models.PostCommentRef{PostID: post.ID, CommentID: 999, Position: 5}).Error)

	fixed, err := repo.RepairCommentRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	var refs []models.PostCommentRef
	require.NoError(t, db.Where("post_id = ?", post.ID).Order("position").Find(&refs).Error)
	require.Len(t, refs, 2)
	assert.Equal(t, linked.ID, refs[0].CommentID)
	assert.Equal(t, orphan.ID, refs[1].CommentID)
	assert.Equal(t, int64(2), refs[1].Position)
}

// writeDuringScan runs write once, just before the first query against table.
// The counter scans read their rows after snapshotting the source tables, so
// the write lands between the snapshot and the row read.
func writeDuringScan(t *testing.T, db *gorm.DB) func(table string, write func()) {
	t.Helper()
	var target string
	var pending func()
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:write_during_scan", func(tx *gorm.DB) {
		if pending == nil || tx.Statement.Table != target {
			return
		}
		fn := pending
		pending = nil
		fn()
	}))
	return func(table string, write func()) {
		target, pending = table, write
	}
}

func TestReconcileRepository_KeepsWritesCommittedDuringScan(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReconcileRepository(db)
	ratings := NewRatingRepository(db)
	social := NewSocialRepository(db)
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, db, "Busy Tutor", 30)
	early := testutil.CreateUser(t, db, "Early Learner")
	late := testutil.CreateUser(t, db, "Late Learner")
	post := testutil.CreatePost(t, db, tutor.ID, "Busy post")

	_, err := ratings.Upsert(ctx, &models.Rating{TutorID: tutor.ID, RaterID: early.ID, Score: 4})
	require.NoError(t, err)
	_, err = social.ToggleLike(ctx, early.ID, post.ID)
	require.NoError(t, err)
	_, err = social.ToggleFollow(ctx, early.ID, tutor.ID)
	require.NoError(t, err)

	during := writeDuringScan(t, db)

	during("users", func() {
		_, err := ratings.Upsert(ctx, &models.Rating{TutorID: tutor.ID, RaterID: late.ID, Score: 2})
		require.NoError(t, err)
	})
	fixed, err := repo.RecomputeTutorAggregates(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	during("posts", func() {
		_, err := social.ToggleLike(ctx, late.ID, post.ID)
		require.NoError(t, err)
	})
	fixed, err = repo.RecomputeLikeCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	during("users", func() {
		_, err := social.ToggleFollow(ctx, late.ID, tutor.ID)
		require.NoError(t, err)
	})
	fixed, err = repo.RecomputeFollowCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	var tutorRow, lateRow models.User
	var postRow models.Post
	require.NoError(t, db.First(&tutorRow, tutor.ID).Error)
	require.NoError(t, db.First(&lateRow, late.ID).Error)
	require.NoError(t, db.First(&postRow, post.ID).Error)
	assert.InDelta(t, 3.0, tutorRow.Rating, 1e-9)
	assert.Equal(t, 2, tutorRow.TotalRatings)
	assert.Equal(t, 2, tutorRow.Followers)
	assert.Equal(t, 1, lateRow.Following)
	assert.Equal(t, 2, postRow.Likes)
}

func TestReconcileRepository_DropsCachedCopiesOfFixedRows(t *testing.T) {
	mr := setupCache(t)
	db := testutil.NewSQLiteDB(t)
	repo := NewReconcileRepository(db)
	users := NewUserRepository(db)
	social := NewSocialRepository(db)
	ctx := context.Background()

	tutor := testutil.CreateTutor(t, db, "Cached Tutor", 30)
	fan := testutil.CreateUser(t, db, "Cached Fan")
	_, err := social.ToggleFollow(ctx, fan.ID, tutor.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", tutor.ID).
		UpdateColumns(map[string]any{"rating": 2.0, "total_ratings": 3, "followers": 5}).Error)

	// Warm the caches with the drifted row.
	cached, err := users.GetByID(ctx, tutor.ID)
	require.NoError(t, err)
	require.Equal(t, 3, cached.TotalRatings)
	_, err = users.ListTutors(ctx, TutorFilter{})
	require.NoError(t, err)
	directory := cache.TutorsKey(ctx, TutorFilter{}.CacheKey())

	fixed, err := repo.RecomputeTutorAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.False(t, mr.Exists(cache.UserKey(tutor.ID)))
	assert.NotEqual(t, directory, cache.TutorsKey(ctx, TutorFilter{}.CacheKey()))

	fresh, err := users.GetByID(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalRatings)
	assert.Equal(t, 5, fresh.Followers)
	directory = cache.TutorsKey(ctx, TutorFilter{}.CacheKey())

	fixed, err = repo.RecomputeFollowCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.False(t, mr.Exists(cache.UserKey(tutor.ID)))
	assert.NotEqual(t, directory, cache.TutorsKey(ctx, TutorFilter{}.CacheKey()))

	fresh, err = users.GetByID(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Followers)
}
