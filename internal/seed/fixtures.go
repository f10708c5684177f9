package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"tutorx/internal/models"
	"tutorx/internal/repository"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures.yml
var defaultFixtures []byte

// Fixtures is the demo dataset. Entities reference users by email.
type Fixtures struct {
	Users     []FixtureUser     `yaml:"users"`
	Posts     []FixturePost     `yaml:"posts"`
	Ratings   []FixtureRating   `yaml:"ratings"`
	Follows   []FixtureFollow   `yaml:"follows"`
	Favorites []FixtureFavorite `yaml:"favorites"`
}

type FixtureUser struct {
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Tutor      bool     `yaml:"tutor"`
	HourlyRate *float64 `yaml:"hourlyRate"`
	Subjects   string   `yaml:"subjects"`
	Bio        string   `yaml:"bio"`
}

type FixturePost struct {
	Author       string `yaml:"author"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	VideoURL     string `yaml:"videoUrl"`
	ThumbnailURL string `yaml:"thumbnailUrl"`
}

type FixtureRating struct {
	Tutor    string  `yaml:"tutor"`
	Rater    string  `yaml:"rater"`
	Rating   float64 `yaml:"rating"`
	Feedback string  `yaml:"feedback"`
}

type FixtureFollow struct {
	Follower string `yaml:"follower"`
	Followee string `yaml:"followee"`
}

type FixtureFavorite struct {
	Viewer string `yaml:"viewer"`
	Target string `yaml:"target"`
}

// DefaultFixtures parses the embedded fixtures.yml.
func DefaultFixtures() (*Fixtures, error) {
	return ParseFixtures(defaultFixtures)
}

// ParseFixtures decodes YAML and checks that every reference names a declared user.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	known := make(map[string]bool, len(fx.Users))
	for i := range fx.Users {
		u := &fx.Users[i]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Email == "" || strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("fixture user %d: name and email are required", i)
		}
		if u.Tutor && u.HourlyRate == nil {
			return nil, fmt.Errorf("fixture tutor %s: hourlyRate is required", u.Email)
		}
		known[u.Email] = true
	}

	check := func(kind, email string) error {
		if !known[strings.ToLower(email)] {
			return fmt.Errorf("fixture %s references unknown user %q", kind, email)
		}
		return nil
	}
	for _, p := range fx.Posts {
		if err := check("post", p.Author); err != nil {
			return nil, err
		}
	}
	for _, r := range fx.Ratings {
		if err := check("rating", r.Tutor); err != nil {
			return nil, err
		}
		if err := check("rating", r.Rater); err != nil {
			return nil, err
		}
		if r.Rating < 1 || r.Rating > 5 {
			return nil, fmt.Errorf("fixture rating %s->%s: score %.1f out of range", r.Rater, r.Tutor, r.Rating)
		}
	}
	for _, f := range fx.Follows {
		if err := check("follow", f.Follower); err != nil {
			return nil, err
		}
		if err := check("follow", f.Followee); err != nil {
			return nil, err
		}
	}
	for _, f := range fx.Favorites {
		if err := check("favorite", f.Viewer); err != nil {
			return nil, err
		}
		if err := check("favorite", f.Target); err != nil {
			return nil, err
		}
	}
	return &fx, nil
}

// ApplyFixtures writes fx through the repositories so counters and
// aggregates stay consistent. Running it twice changes nothing.
func ApplyFixtures(ctx context.Context, db *gorm.DB, fx *Fixtures) (*Summary, error) {
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	social := repository.NewSocialRepository(db)
	ratings := repository.NewRatingRepository(db)

	hash, err := hashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	ids := make(map[string]uint, len(fx.Users))
	for _, fu := range fx.Users {
		existing, err := users.GetByEmail(ctx, fu.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ids[fu.Email] = existing.ID
			continue
		}
		u := &models.User{
			Name:       fu.Name,
			Email:      fu.Email,
			Password:   hash,
			IsTutor:    fu.Tutor,
			HourlyRate: fu.HourlyRate,
			Subjects:   fu.Subjects,
			Bio:        fu.Bio,
		}
		if err := users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create %s: %w", fu.Email, err)
		}
		ids[fu.Email] = u.ID
		sum.Users++
	}

	for _, fp := range fx.Posts {
		authorID := ids[strings.ToLower(fp.Author)]
		var n int64
		if err := db.WithContext(ctx).Model(&models.Post{}).
			Where("user_id = ? AND title = ?", authorID, fp.Title).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			continue
		}
		p := &models.Post{
			Title:        fp.Title,
			Description:  fp.Description,
			VideoURL:     fp.VideoURL,
			ThumbnailURL: fp.ThumbnailURL,
			UserID:       authorID,
		}
		if err := posts.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create post %q: %w", fp.Title, err)
		}
		sum.Posts++
	}

	for _, fr := range fx.Ratings {
		r := &models.Rating{
			TutorID:  ids[strings.ToLower(fr.Tutor)],
			RaterID:  ids[strings.ToLower(fr.Rater)],
			Score:    fr.Rating,
			Feedback: fr.Feedback,
		}
		if _, err := ratings.Upsert(ctx, r); err != nil {
			return nil, fmt.Errorf("rate %s: %w", fr.Tutor, err)
		}
		sum.Ratings++
	}

	for _, ff := range fx.Follows {
		res, err := social.SetFollow(ctx, ids[strings.ToLower(ff.Follower)], ids[strings.ToLower(ff.Followee)], true)
		if err != nil {
			return nil, fmt.Errorf("follow %s: %w", ff.Followee, err)
		}
		if res.Active {
			sum.Follows++
		}
	}

	for _, ff := range fx.Favorites {
		viewerID := ids[strings.ToLower(ff.Viewer)]
		targetID := ids[strings.ToLower(ff.Target)]
		favorites, _, err := social.ViewerRelations(ctx, viewerID, []uint{targetID})
		if err != nil {
			return nil, err
		}
		if favorites[targetID] {
			continue
		}
		if _, err := social.ToggleFavorite(ctx, viewerID, targetID); err != nil {
			return nil, fmt.Errorf("favorite %s: %w", ff.Target, err)
		}
		sum.Favorites++
	}

	return sum, nil
}
