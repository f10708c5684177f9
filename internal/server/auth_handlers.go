package server

import (
	"log/slog"

	"tutorx/internal/middleware"
	"tutorx/internal/models"
	"tutorx/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create a learner or tutor account and return a token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} object{success=bool,user=models.User,token=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user registered",
		slog.Any("user_id", user.ID), slog.Bool("is_tutor", user.IsTutor))
	return s.respondWithToken(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} object{success=bool,user=models.User,token=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return s.respondWithToken(c, fiber.StatusOK, user)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the bearer token used for this request
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=object{message=string}}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	if err := s.tokenStore.Revoke(c.UserContext(), jti, remainingTokenTTL(c)); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.authService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, user)
}

// RequestPasswordReset handles POST /api/auth/reset-password-request
// @Summary Request a password reset
// @Description Mails a reset link when the email belongs to an account. Always answers 200.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Email"
// @Success 200 {object} object{success=bool,data=object{message=string}}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/reset-password-request [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{
		"message": "If that email is registered, a reset link is on its way",
	})
}

// ResetPassword handles POST /api/auth/reset-password
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.ResetPasswordInput true "Token and new password"
// @Success 200 {object} object{success=bool,data=object{message=string}}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/reset-password [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req service.ResetPasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.ResetPassword(c.UserContext(), req); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"message": "Password updated"})
}

func (s *Server) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}
