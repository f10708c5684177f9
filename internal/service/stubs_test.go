package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutorx/internal/models"
	"tutorx/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getSummariesFn   func(context.Context, []uint) (map[uint]models.UserSummary, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	listTutorsFn     func(context.Context, repository.TutorFilter) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	return s.getSummariesFn(ctx, ids)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) ListTutors(ctx context.Context, filter repository.TutorFilter) ([]models.User, error) {
	return s.listTutorsFn(ctx, filter)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:    func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getSummariesFn: func(_ context.Context, ids []uint) (map[uint]models.UserSummary, error) {
			out := map[uint]models.UserSummary{}
			for _, id := range ids {
				out[id] = models.UserSummary{ID: id}
			}
			return out, nil
		},
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		listTutorsFn:     func(_ context.Context, _ repository.TutorFilter) ([]models.User, error) { return []models.User{}, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint, uint) (*models.Post, error)
	listFn       func(context.Context, int, int, uint) ([]*models.Post, error)
	listByUserFn func(context.Context, uint, int, int, uint) ([]*models.Post, error)
	updateFn     func(context.Context, *models.Post) error
	deleteFn     func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset, viewerID)
}
func (s *postRepoStub) ListByUser(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return s.listByUserFn(ctx, userID, limit, offset, viewerID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:     func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:    func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFn:       func(_ context.Context, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		listByUserFn: func(_ context.Context, _ uint, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		updateFn:     func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]models.Comment, error)
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:    func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]models.Comment, error) { return []models.Comment{}, nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// socialRepoStub is a stub for repository.SocialRepository.
type socialRepoStub struct {
	toggleLikeFn      func(context.Context, uint, uint) (*models.ToggleResult, error)
	setLikeFn         func(context.Context, uint, uint, bool) (*models.ToggleResult, error)
	toggleFollowFn    func(context.Context, uint, uint) (*models.ToggleResult, error)
	setFollowFn       func(context.Context, uint, uint, bool) (*models.ToggleResult, error)
	toggleFavoriteFn  func(context.Context, uint, uint) (bool, error)
	listFavoritesFn   func(context.Context, uint) ([]models.User, error)
	listFollowersFn   func(context.Context, uint, int, int) ([]models.User, error)
	listFollowingFn   func(context.Context, uint, int, int) ([]models.User, error)
	viewerRelationsFn func(context.Context, uint, []uint) (map[uint]bool, map[uint]bool, error)
}

func (s *socialRepoStub) ToggleLike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.toggleLikeFn(ctx, userID, postID)
}
func (s *socialRepoStub) SetLike(ctx context.Context, userID, postID uint, liked bool) (*models.ToggleResult, error) {
	return s.setLikeFn(ctx, userID, postID, liked)
}
func (s *socialRepoStub) ToggleFollow(ctx context.Context, followerID, followeeID uint) (*models.ToggleResult, error) {
	return s.toggleFollowFn(ctx, followerID, followeeID)
}
func (s *socialRepoStub) SetFollow(ctx context.Context, followerID, followeeID uint, following bool) (*models.ToggleResult, error) {
	return s.setFollowFn(ctx, followerID, followeeID, following)
}
func (s *socialRepoStub) ToggleFavorite(ctx context.Context, viewerID, targetID uint) (bool, error) {
	return s.toggleFavoriteFn(ctx, viewerID, targetID)
}
func (s *socialRepoStub) ListFavorites(ctx context.Context, viewerID uint) ([]models.User, error) {
	return s.listFavoritesFn(ctx, viewerID)
}
func (s *socialRepoStub) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return s.listFollowersFn(ctx, userID, limit, offset)
}
func (s *socialRepoStub) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return s.listFollowingFn(ctx, userID, limit, offset)
}
func (s *socialRepoStub) ViewerRelations(ctx context.Context, viewerID uint, targetIDs []uint) (map[uint]bool, map[uint]bool, error) {
	return s.viewerRelationsFn(ctx, viewerID, targetIDs)
}

func noopSocialRepo() *socialRepoStub {
	toggle := func(_ context.Context, _, _ uint) (*models.ToggleResult, error) { return &models.ToggleResult{}, nil }
	set := func(_ context.Context, _, _ uint, v bool) (*models.ToggleResult, error) {
		return &models.ToggleResult{Active: v}, nil
	}
	list := func(_ context.Context, _ uint, _, _ int) ([]models.User, error) { return []models.User{}, nil }
	return &socialRepoStub{
		toggleLikeFn:     toggle,
		setLikeFn:        set,
		toggleFollowFn:   toggle,
		setFollowFn:      set,
		toggleFavoriteFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		listFavoritesFn:  func(_ context.Context, _ uint) ([]models.User, error) { return []models.User{}, nil },
		listFollowersFn:  list,
		listFollowingFn:  list,
		viewerRelationsFn: func(_ context.Context, _ uint, _ []uint) (map[uint]bool, map[uint]bool, error) {
			return map[uint]bool{}, map[uint]bool{}, nil
		},
	}
}

// ratingRepoStub is a stub for repository.RatingRepository.
type ratingRepoStub struct {
	upsertFn      func(context.Context, *models.Rating) (*models.RatingAggregate, error)
	listByTutorFn func(context.Context, uint) ([]models.Rating, error)
}

func (s *ratingRepoStub) Upsert(ctx context.Context, rating *models.Rating) (*models.RatingAggregate, error) {
	return s.upsertFn(ctx, rating)
}
func (s *ratingRepoStub) ListByTutor(ctx context.Context, tutorID uint) ([]models.Rating, error) {
	return s.listByTutorFn(ctx, tutorID)
}

func noopRatingRepo() *ratingRepoStub {
	return &ratingRepoStub{
		upsertFn: func(_ context.Context, r *models.Rating) (*models.RatingAggregate, error) {
			return &models.RatingAggregate{TutorID: r.TutorID, Rating: r.Score, TotalRatings: 1}, nil
		},
		listByTutorFn: func(_ context.Context, _ uint) ([]models.Rating, error) { return []models.Rating{}, nil },
	}
}

// resetRepoStub is a stub for repository.PasswordResetRepository.
type resetRepoStub struct {
	createFn        func(context.Context, *models.PasswordResetToken) error
	consumeFn       func(context.Context, string, time.Time, string) (uint, error)
	deleteExpiredFn func(context.Context, time.Time) (int64, error)
}

func (s *resetRepoStub) Create(ctx context.Context, token *models.PasswordResetToken) error {
	return s.createFn(ctx, token)
}
func (s *resetRepoStub) Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint, error) {
	return s.consumeFn(ctx, tokenHash, now, passwordHash)
}
func (s *resetRepoStub) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteExpiredFn(ctx, before)
}

func noopResetRepo() *resetRepoStub {
	return &resetRepoStub{
		createFn:        func(_ context.Context, _ *models.PasswordResetToken) error { return nil },
		consumeFn:       func(_ context.Context, _ string, _ time.Time, _ string) (uint, error) { return 1, nil },
		deleteExpiredFn: func(_ context.Context, _ time.Time) (int64, error) { return 0, nil },
	}
}

// mailerStub records reset mails.
type mailerStub struct {
	sent []string
	err  error
}

func (m *mailerStub) SendPasswordReset(_ context.Context, _, toEmail, resetURL string) error {
	m.sent = append(m.sent, toEmail+" "+resetURL)
	return m.err
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeUnauthorized)
}
