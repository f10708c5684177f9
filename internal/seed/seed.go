package seed

import (
	"context"
	"fmt"
	"log/slog"

	"tutorx/internal/models"
	"tutorx/internal/repository"

	"gorm.io/gorm"
)

// Options sizes a generated dataset.
type Options struct {
	Learners        int
	Tutors          int
	PostsPerTutor   int
	CommentsPerPost int
	RatingsPerTutor int
	FollowsPerUser  int
	// Seed fixes the faker; 0 means random.
	Seed int64
	// Clean truncates domain tables first.
	Clean bool
}

// Summary counts what a run created.
type Summary struct {
	Users     int
	Posts     int
	Comments  int
	Ratings   int
	Likes     int
	Follows   int
	Favorites int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d posts=%d comments=%d ratings=%d likes=%d follows=%d favorites=%d",
		s.Users, s.Posts, s.Comments, s.Ratings, s.Likes, s.Follows, s.Favorites)
}

// Run generates random users, posts, comments, likes, follows and ratings.
// Relations go through the repositories so every counter matches its table.
func Run(ctx context.Context, db *gorm.DB, opts Options, logger *slog.Logger) (*Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
	}

	hash, err := hashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}
	f := NewFactory(opts.Seed, hash)

	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	social := repository.NewSocialRepository(db)
	ratings := repository.NewRatingRepository(db)

	sum := &Summary{}
	var tutors, learners []*models.User
	for i := 0; i < opts.Tutors; i++ {
		u := f.BuildTutor()
		if err := users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create tutor: %w", err)
		}
		tutors = append(tutors, u)
	}
	for i := 0; i < opts.Learners; i++ {
		u := f.BuildUser()
		if err := users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create learner: %w", err)
		}
		learners = append(learners, u)
	}
	everyone := append(append([]*models.User{}, tutors...), learners...)
	sum.Users = len(everyone)
	logger.InfoContext(ctx, "seeded users", slog.Int("tutors", len(tutors)), slog.Int("learners", len(learners)))

	if len(everyone) < 2 {
		return sum, nil
	}

	var created []*models.Post
	for _, t := range tutors {
		for i := 0; i < opts.PostsPerTutor; i++ {
			p := f.BuildPost(t.ID)
			if err := posts.Create(ctx, p); err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			created = append(created, p)
		}
	}
	sum.Posts = len(created)

	for _, p := range created {
		for i := 0; i < opts.CommentsPerPost; i++ {
			author := everyone[f.Intn(len(everyone))]
			if err := comments.Create(ctx, f.BuildComment(author.ID, p.ID)); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
		// Roughly half the users like each post.
		for _, u := range everyone {
			if f.Intn(2) == 0 {
				continue
			}
			res, err := social.SetLike(ctx, u.ID, p.ID, true)
			if err != nil {
				return nil, fmt.Errorf("like post: %w", err)
			}
			if res.Active {
				sum.Likes++
			}
		}
	}

	for _, t := range tutors {
		raters := pickDistinct(f, everyone, opts.RatingsPerTutor, t.ID)
		for _, r := range raters {
			rating := &models.Rating{TutorID: t.ID, RaterID: r.ID, Score: f.Score(), Feedback: f.Feedback()}
			if _, err := ratings.Upsert(ctx, rating); err != nil {
				return nil, fmt.Errorf("rate tutor: %w", err)
			}
			sum.Ratings++
		}
	}

	for _, u := range everyone {
		for _, target := range pickDistinct(f, everyone, opts.FollowsPerUser, u.ID) {
			res, err := social.SetFollow(ctx, u.ID, target.ID, true)
			if err != nil {
				return nil, fmt.Errorf("follow: %w", err)
			}
			if res.Active {
				sum.Follows++
			}
		}
		if len(tutors) > 0 && f.Intn(3) == 0 {
			target := tutors[f.Intn(len(tutors))]
			if target.ID != u.ID {
				if _, err := social.ToggleFavorite(ctx, u.ID, target.ID); err != nil {
					return nil, fmt.Errorf("favorite: %w", err)
				}
				sum.Favorites++
			}
		}
	}

	logger.InfoContext(ctx, "seed complete", slog.String("summary", sum.String()))
	return sum, nil
}

// Clean removes all domain rows. Children go first so foreign keys hold on every dialect.
func Clean(ctx context.Context, db *gorm.DB) error {
	tables := []any{
		&models.PostCommentRef{}, &models.Comment{}, &models.Like{}, &models.Rating{},
		&models.Follow{}, &models.Favorite{}, &models.PasswordResetToken{}, &models.Post{}, &models.User{},
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
				return fmt.Errorf("clean %T: %w", t, err)
			}
		}
		return nil
	})
}

// pickDistinct returns up to n users other than exclude, without repeats.
func pickDistinct(f *Factory, pool []*models.User, n int, exclude uint) []*models.User {
	candidates := make([]*models.User, 0, len(pool))
	for _, u := range pool {
		if u.ID != exclude {
			candidates = append(candidates, u)
		}
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	for i := 0; i < n; i++ {
		j := i + f.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:n]
}
