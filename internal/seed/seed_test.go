package seed

import (
	"context"
	"os"
	"strings"
	"testing"

	"tutorx/internal/models"
	"tutorx/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	passwordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestDefaultFixturesParse(t *testing.T) {
	fx, err := DefaultFixtures()
	require.NoError(t, err)
	assert.NotEmpty(t, fx.Users)
	assert.NotEmpty(t, fx.Posts)
	assert.NotEmpty(t, fx.Ratings)

	for _, u := range fx.Users {
		assert.Equal(t, strings.ToLower(u.Email), u.Email)
		if u.Tutor {
			assert.NotNil(t, u.HourlyRate, u.Email)
		}
	}
}

func TestParseFixturesRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown author", "users:\n  - {name: A, email: a@x.dev}\nposts:\n  - {author: b@x.dev, title: T}\n"},
		{"tutor without rate", "users:\n  - {name: A, email: a@x.dev, tutor: true}\n"},
		{"score out of range", "users:\n  - {name: A, email: a@x.dev, tutor: true, hourlyRate: 10}\n  - {name: B, email: b@x.dev}\nratings:\n  - {tutor: a@x.dev, rater: b@x.dev, rating: 6}\n"},
		{"malformed", "users: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyFixturesIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	fx, err := DefaultFixtures()
	require.NoError(t, err)

	first, err := ApplyFixtures(ctx, db, fx)
	require.NoError(t, err)
	assert.Equal(t, len(fx.Users), first.Users)
	assert.Equal(t, len(fx.Posts), first.Posts)

	second, err := ApplyFixtures(ctx, db, fx)
	require.NoError(t, err)
	assert.Zero(t, second.Users)
	assert.Zero(t, second.Posts)
	assert.Zero(t, second.Favorites)

	var users, follows, favorites int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	require.NoError(t, db.Model(&models.Favorite{}).Count(&favorites).Error)
	assert.EqualValues(t, len(fx.Users), users)
	assert.EqualValues(t, len(fx.Follows), follows)
	assert.EqualValues(t, len(fx.Favorites), favorites)

	// Ada is rated 5 and 4 in the fixtures and followed twice.
	var ada models.User
	require.NoError(t, db.Where("email = ?", "ada@tutorx.dev").First(&ada).Error)
	assert.InDelta(t, 4.5, ada.Rating, 1e-9)
	assert.Equal(t, 2, ada.TotalRatings)
	assert.Equal(t, 2, ada.Followers)
}

func TestFactoryIsDeterministicPerSeed(t *testing.T) {
	a := NewFactory(42, "hash")
	b := NewFactory(42, "hash")

	ta, tb := a.BuildTutor(), b.BuildTutor()
	assert.Equal(t, ta.Name, tb.Name)
	assert.Equal(t, ta.Subjects, tb.Subjects)
	require.NotNil(t, ta.HourlyRate)
	assert.Equal(t, *ta.HourlyRate, *tb.HourlyRate)
	assert.GreaterOrEqual(t, *ta.HourlyRate, 15.0)
	assert.LessOrEqual(t, *ta.HourlyRate, 120.0)

	for i := 0; i < 50; i++ {
		s := a.Score()
		assert.GreaterOrEqual(t, s, models.MinRatingScore)
		assert.LessOrEqual(t, s, models.MaxRatingScore)
	}

	p := a.BuildPost(7)
	assert.LessOrEqual(t, len(p.Title), 100)
	assert.Equal(t, uint(7), p.UserID)
	assert.True(t, strings.HasPrefix(p.VideoURL, "https://"))
}

func TestRunKeepsCountersConsistent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	sum, err := Run(ctx, db, Options{
		Learners:        4,
		Tutors:          3,
		PostsPerTutor:   2,
		CommentsPerPost: 2,
		RatingsPerTutor: 3,
		FollowsPerUser:  2,
		Seed:            7,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Users)
	assert.Equal(t, 6, sum.Posts)
	assert.Equal(t, 12, sum.Comments)
	assert.Equal(t, 9, sum.Ratings)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var likes int64
		require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes).Error)
		assert.EqualValues(t, likes, p.Likes, "post %d", p.ID)
	}

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		var followers, ratings int64
		require.NoError(t, db.Model(&models.Follow{}).Where("followee_id = ?", u.ID).Count(&followers).Error)
		require.NoError(t, db.Model(&models.Rating{}).Where("tutor_id = ?", u.ID).Count(&ratings).Error)
		assert.EqualValues(t, followers, u.Followers, "user %d", u.ID)
		assert.EqualValues(t, ratings, u.TotalRatings, "user %d", u.ID)
	}

	require.NoError(t, Clean(ctx, db))
	var remaining int64
	require.NoError(t, db.Model(&models.User{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
