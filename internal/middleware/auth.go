// Package middleware provides authentication, logging, rate limiting and tracing middleware.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails parsing or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims is the subset of JWT claims the API relies on.
type TokenClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenManager builds a TokenManager. A zero ttl defaults to 30 days.
func NewTokenManager(secret, issuer, audience string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// Issue signs a token for userID.
func (m *TokenManager) Issue(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": m.issuer,
		"aud": m.audience,
		"exp": now.Add(m.ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": generateJTI(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (m *TokenManager) Parse(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: uint(userID)}
	if jti, ok := claims["jti"].(string); ok {
		out.JTI = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}
