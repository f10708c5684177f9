package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tutorx/internal/cache"
	"tutorx/internal/models"
	"tutorx/internal/observability"

	"gorm.io/gorm"
)

// Tutor directory sort orders.
const (
	TutorSortRating = "rating"
	TutorSortRate   = "rate"
	TutorSortNewest = "newest"
)

// TutorFilter narrows the tutor directory.
type TutorFilter struct {
	Query     string
	Subject   string
	MinRating *float64
	MaxRate   *float64
	Sort      string
	Limit     int
	Offset    int
}

// CacheKey renders the filter as a stable cache key suffix.
func (f TutorFilter) CacheKey() string {
	parts := []string{
		"q=" + strings.ToLower(strings.TrimSpace(f.Query)),
		"subject=" + strings.ToLower(strings.TrimSpace(f.Subject)),
		"sort=" + f.Sort,
		"limit=" + strconv.Itoa(f.Limit),
		"offset=" + strconv.Itoa(f.Offset),
	}
	if f.MinRating != nil {
		parts = append(parts, "min="+strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
	}
	if f.MaxRate != nil {
		parts = append(parts, "max="+strconv.FormatFloat(*f.MaxRate, 'f', -1, 64))
	}
	return strings.Join(parts, "&")
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	ListTutors(ctx context.Context, filter TutorFilter) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return cachedUser(ctx, r.db, id)
}

// cachedUser serves the user:<id> entry, filling it from the primary.
func cachedUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no account uses the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	out := make(map[uint]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := loadUsers(readDB(ctx, r.db), ids)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for id, u := range users {
		out[id] = u.Summary()
	}
	return out, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()
	user.Email = strings.ToLower(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("User already exists")
		}
		return models.NewInternalError(err)
	}
	if user.IsTutor {
		cache.InvalidateTutorDirectory(ctx)
	}
	return nil
}

// Update writes profile columns only. Counters and aggregates are owned by
// the toggle and rating transactions and are never overwritten here.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":        user.Name,
			"bio":         user.Bio,
			"avatar_url":  user.AvatarURL,
			"is_tutor":    user.IsTutor,
			"hourly_rate": user.HourlyRate,
			"subjects":    user.Subjects,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateTutor(ctx, user.ID)
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) ListTutors(ctx context.Context, filter TutorFilter) ([]models.User, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)

	var tutors []models.User
	key := cache.TutorsKey(ctx, filter.CacheKey())
	err := cache.Aside(ctx, key, &tutors, cache.TutorsTTL, func() error {
		defer observability.TrackQuery("select", "users")()
		q := r.db.WithContext(ctx).Model(&models.User{}).Where("is_tutor = ?", true)
		if s := strings.ToLower(strings.TrimSpace(filter.Query)); s != "" {
			like := "%" + s + "%"
			q = q.Where("(LOWER(name) LIKE ? OR LOWER(bio) LIKE ?)", like, like)
		}
		if s := strings.ToLower(strings.TrimSpace(filter.Subject)); s != "" {
			q = q.Where("LOWER(subjects) LIKE ?", "%"+s+"%")
		}
		if filter.MinRating != nil {
			q = q.Where("rating >= ?", *filter.MinRating)
		}
		if filter.MaxRate != nil {
			q = q.Where("hourly_rate <= ?", *filter.MaxRate)
		}
		if err := applyTutorSort(q, filter.Sort).Limit(filter.Limit).Offset(filter.Offset).Find(&tutors).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tutors, nil
}

func applyTutorSort(q *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case TutorSortRate:
		return q.Order("hourly_rate ASC").Order("rating DESC")
	case TutorSortNewest:
		return q.Order("created_at DESC")
	default:
		return q.Order("rating DESC").Order("total_ratings DESC").Order("id ASC")
	}
}

// loadUsers fetches users by id and indexes them.
func loadUsers(db *gorm.DB, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := db.Where("id IN ?", uniqueIDs(ids)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
