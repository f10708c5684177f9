// Package seed creates demo and load-test data for development databases.
package seed

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tutorx/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the login for every seeded account.
const DefaultPassword = "password123"

var passwordCost = bcrypt.DefaultCost

var subjectPool = []string{
	"math", "algebra", "calculus", "statistics", "physics", "chemistry", "biology",
	"english", "spanish", "french", "history", "economics", "programming", "music theory",
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hash), nil
}

// Factory builds unsaved domain entities from a seeded faker, so one seed
// always yields the same data.
type Factory struct {
	faker        *gofakeit.Faker
	passwordHash string
	maxDays      int
	now          func() time.Time
	seq          int
}

// NewFactory returns a Factory. seed 0 picks a random seed.
func NewFactory(seed int64, passwordHash string) *Factory {
	return &Factory{
		faker:        gofakeit.New(seed),
		passwordHash: passwordHash,
		maxDays:      90,
		now:          time.Now,
	}
}

// BuildUser returns a learner. Emails carry a sequence number so a batch never collides.
func (f *Factory) BuildUser() *models.User {
	f.seq++
	first := f.faker.FirstName()
	last := f.faker.LastName()
	return &models.User{
		Name:      first + " " + last,
		Email:     fmt.Sprintf("%s.%s.%d@seed.tutorx.dev", strings.ToLower(first), strings.ToLower(last), f.seq),
		Password:  f.passwordHash,
		Bio:       f.faker.Sentence(10),
		AvatarURL: "https://i.pravatar.cc/150?u=" + f.faker.UUID(),
	}
}

// BuildTutor returns a tutor with two or three subjects and a rate in [15, 120].
func (f *Factory) BuildTutor() *models.User {
	u := f.BuildUser()
	u.IsTutor = true
	rate := math.Round(f.faker.Float64Range(15, 120)*2) / 2
	u.HourlyRate = &rate

	n := 2 + f.faker.Number(0, 1)
	picked := make([]string, 0, n)
	seen := map[string]bool{}
	for len(picked) < n {
		s := subjectPool[f.faker.Number(0, len(subjectPool)-1)]
		if !seen[s] {
			seen[s] = true
			picked = append(picked, s)
		}
	}
	u.Subjects = strings.Join(picked, ", ")
	return u
}

// BuildPost returns a post by userID backdated up to maxDays.
func (f *Factory) BuildPost(userID uint) *models.Post {
	id := f.faker.UUID()
	title := f.faker.Sentence(5)
	if len(title) > 100 {
		title = title[:100]
	}
	return &models.Post{
		Title:        title,
		Description:  f.faker.Paragraph(1, 2, 8, " "),
		VideoURL:     "https://videos.tutorx.dev/seed/" + id + ".mp4",
		ThumbnailURL: fmt.Sprintf("https://picsum.photos/seed/%s/640/360", id),
		UserID:       userID,
		CreatedAt:    f.backdate(),
	}
}

// BuildComment returns a short comment by userID on postID.
func (f *Factory) BuildComment(userID, postID uint) *models.Comment {
	text := f.faker.Sentence(f.faker.Number(4, 14))
	if len(text) > 500 {
		text = text[:500]
	}
	return &models.Comment{Text: text, UserID: userID, PostID: postID}
}

// Score returns a rating in half steps, skewed toward the upper end.
func (f *Factory) Score() float64 {
	return float64(f.faker.Number(4, 10)) / 2
}

// Feedback is empty about a third of the time.
func (f *Factory) Feedback() string {
	if f.faker.Number(0, 2) == 0 {
		return ""
	}
	return f.faker.Sentence(8)
}

// Intn returns a value in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

func (f *Factory) backdate() time.Time {
	offset := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return f.now().Add(-offset)
}
