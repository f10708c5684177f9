package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"tutorx/internal/models"
	"tutorx/internal/repository"
	"tutorx/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ResetTokenTTL bounds how long an emailed reset token stays valid.
const ResetTokenTTL = time.Hour

type RegisterInput struct {
	Name       string   `json:"name" validate:"required,notblank,min=2,max=100"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6,max=128"`
	IsTutor    bool     `json:"isTutor"`
	HourlyRate *float64 `json:"hourlyRate" validate:"omitempty,gt=0"`
	Subjects   string   `json:"subjects" validate:"max=500"`
	Bio        string   `json:"bio" validate:"max=500"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type AuthService struct {
	userRepo     repository.UserRepository
	resetRepo    repository.PasswordResetRepository
	mailer       Mailer
	resetURLBase string
	logger       *slog.Logger
	now          func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	mailer Mailer,
	resetURLBase string,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:     userRepo,
		resetRepo:    resetRepo,
		mailer:       mailer,
		resetURLBase: resetURLBase,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.IsTutor && in.HourlyRate == nil {
		return nil, models.NewValidationError("Hourly rate is required for tutors")
	}
	if !in.IsTutor {
		in.HourlyRate = nil
		in.Subjects = ""
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:       in.Name,
		Email:      in.Email,
		Password:   string(hash),
		IsTutor:    in.IsTutor,
		HourlyRate: in.HourlyRate,
		Subjects:   strings.TrimSpace(in.Subjects),
		Bio:        in.Bio,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// RequestPasswordReset mails a reset link when the address belongs to an account.
// It reports success either way so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token := newResetToken()
	record := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: s.now().Add(ResetTokenTTL),
	}
	if err := s.resetRepo.Create(ctx, record); err != nil {
		return err
	}

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Name, user.Email, s.resetURL(token)); err != nil {
		// The token is stored; a failed send must not reveal whether the account exists.
		s.logger.ErrorContext(ctx, "password reset mail failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := validateInput(in); err != nil {
		return err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	_, err = s.resetRepo.Consume(ctx, hashResetToken(in.Token), s.now(), string(hash))
	return err
}

func (s *AuthService) resetURL(token string) string {
	base := s.resetURLBase
	if base == "" {
		base = "http://localhost:3000/reset-password"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func newResetToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
