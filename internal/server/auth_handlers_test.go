package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"tutorx/internal/middleware"
	"tutorx/internal/models"
	"tutorx/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.do(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"name":       "Ada Lovelace",
		"email":      "Ada@Example.com",
		"password":   "engines1",
		"isTutor":    true,
		"hourlyRate": 40,
		"subjects":   "math, programming",
	}, "")
	require.Equal(t, fiber.StatusCreated, status, res.Message)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Token)

	var registered models.User
	require.NoError(t, json.Unmarshal(res.User, &registered))
	assert.Equal(t, "ada@example.com", registered.Email)
	assert.True(t, registered.IsTutor)

	// The password hash never leaves the server.
	assert.NotContains(t, string(res.User), "password")

	status, res = env.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "ada@example.com",
		"password": "engines1",
	}, "")
	require.Equal(t, fiber.StatusOK, status, res.Message)
	token := res.Token
	require.NotEmpty(t, token)

	status, res = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	me := decodeData[models.User](t, res)
	assert.Equal(t, registered.ID, me.ID)
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "Sam Learner")

	status, res := env.do(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"name": "Sam Again", "email": "sam.learner@example.com", "password": "secret1",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, res.Success)

	status, res = env.do(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"name": "Short", "email": "short@example.com", "password": "123",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, res.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "Sam Learner")

	status, res := env.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email": "sam.learner@example.com", "password": "not-the-password",
	}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, res.Success)
	assert.Empty(t, res.Token)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")

	otherIssuer := middleware.NewTokenManager(testJWTSecret, "someone-else", testJWTAudience, time.Hour)
	otherAudience := middleware.NewTokenManager(testJWTSecret, testJWTIssuer, "another-client", time.Hour)
	wrongSecret := middleware.NewTokenManager("a-different-secret-of-sufficient-length", testJWTIssuer, testJWTAudience, time.Hour)
	expired := middleware.NewTokenManager(testJWTSecret, testJWTIssuer, testJWTAudience, time.Nanosecond)

	issue := func(m *middleware.TokenManager) string {
		tok, err := m.Issue(user.ID)
		require.NoError(t, err)
		return tok
	}
	expiredToken := issue(expired)
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"valid", "Bearer " + env.tokenFor(t, user), fiber.StatusOK, ""},
		{"missing", "", fiber.StatusUnauthorized, "Missing or malformed token"},
		{"wrong scheme", "Basic " + env.tokenFor(t, user), fiber.StatusUnauthorized, "Missing or malformed token"},
		{"garbage", "Bearer not.a.jwt", fiber.StatusUnauthorized, "Invalid or expired token"},
		{"expired", "Bearer " + expiredToken, fiber.StatusUnauthorized, "Invalid or expired token"},
		{"wrong issuer", "Bearer " + issue(otherIssuer), fiber.StatusUnauthorized, "Invalid or expired token"},
		{"wrong audience", "Bearer " + issue(otherAudience), fiber.StatusUnauthorized, "Invalid or expired token"},
		{"wrong secret", "Bearer " + issue(wrongSecret), fiber.StatusUnauthorized, "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/api/auth/me", tt.header)
			status, res := env.send(t, req)
			assert.Equal(t, tt.status, status)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.Message)
				assert.Equal(t, models.CodeUnauthorized, res.Code)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	token := env.tokenFor(t, user)

	status, _ := env.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, fiber.StatusOK, status)

	status, res := env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", res.Message)

	// A fresh token for the same user is unaffected.
	status, _ = env.do(t, http.MethodGet, "/api/auth/me", nil, env.tokenFor(t, user))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestPasswordResetRequestDoesNotLeakAccounts(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, "Sam Learner")

	for _, email := range []string{"sam.learner@example.com", "nobody@example.com"} {
		status, res := env.do(t, http.MethodPost, "/api/auth/reset-password-request", fiber.Map{"email": email}, "")
		assert.Equal(t, fiber.StatusOK, status, email)
		assert.True(t, res.Success)
	}

	var tokens int64
	require.NoError(t, env.db.Model(&models.PasswordResetToken{}).Count(&tokens).Error)
	assert.EqualValues(t, 1, tokens)
}
