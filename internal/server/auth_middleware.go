package server

import (
	"errors"
	"log/slog"
	"time"

	"tutorx/internal/cache"
	"tutorx/internal/middleware"
	"tutorx/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired validates the bearer token, rejects revoked tokens and stores
// the caller in c.Locals("userID").
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := middleware.BearerToken(c)
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Missing or malformed token"))
		}

		claims, err := s.tokens.Parse(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		revoked, err := s.tokenStore.IsRevoked(c.UserContext(), claims.JTI)
		if err != nil {
			// Revocation is best-effort when Redis misbehaves.
			middleware.Logger.WarnContext(c.UserContext(), "revocation lookup failed",
				slog.String("error", err.Error()))
		}
		if revoked {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		s.setCaller(c, claims.UserID)
		c.Locals("jti", claims.JTI)
		c.Locals("tokenExpiresAt", claims.ExpiresAt)
		return c.Next()
	}
}

// WebSocketTicketRequired authenticates the upgrade request with a single-use
// ticket from POST /api/ws/ticket. Browsers cannot set headers on upgrades.
func (s *Server) WebSocketTicketRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Missing websocket ticket"))
		}

		userID, err := s.tokenStore.ConsumeTicket(c.UserContext(), ticket)
		switch {
		case errors.Is(err, cache.ErrTicketInvalid):
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired websocket ticket"))
		case errors.Is(err, cache.ErrUnavailable):
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				errors.New("Realtime is unavailable"))
		case err != nil:
			return respondError(c, err)
		}

		s.setCaller(c, userID)
		return c.Next()
	}
}

// FeatureRequired answers 404 while the named flag is off for the caller.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(flag, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Feature"))
		}
		return c.Next()
	}
}

func (s *Server) setCaller(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

// optionalUserID resolves the caller on public routes. Any token problem
// yields 0 so anonymous reads keep working.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	raw := middleware.BearerToken(c)
	if raw == "" {
		return 0
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return 0
	}
	if revoked, _ := s.tokenStore.IsRevoked(c.UserContext(), claims.JTI); revoked {
		return 0
	}
	return claims.UserID
}

// remainingTokenTTL is how long a revocation entry must outlive the token.
func remainingTokenTTL(c *fiber.Ctx) time.Duration {
	exp, _ := c.Locals("tokenExpiresAt").(time.Time)
	if exp.IsZero() {
		return 0
	}
	return time.Until(exp)
}
