package middleware

import (
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager(testSecret, "tutorX-api", "tutorX-client", time.Hour)

	token, err := m.Issue(42)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager(testSecret, "tutorX-api", "tutorX-client", time.Hour)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": "tutorX-api",
			"aud": "tutorX-client",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(base(), "another-secret-another-secret-another")},
		{"expired", func() string {
			c := base()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(c, testSecret)
		}()},
		{"wrong issuer", func() string {
			c := base()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}()},
		{"wrong audience", func() string {
			c := base()
			c["aud"] = "other-client"
			return sign(c, testSecret)
		}()},
		{"missing subject", func() string {
			c := base()
			delete(c, "sub")
			return sign(c, testSecret)
		}()},
		{"non numeric subject", func() string {
			c := base()
			c["sub"] = "abc"
			return sign(c, testSecret)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(body), tt.header)
	}
}
