package server

import (
	"errors"
	"log/slog"

	"tutorx/internal/cache"
	"tutorx/internal/middleware"
	"tutorx/internal/models"
	"tutorx/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Single-use ticket for GET /api/ws?ticket=..., valid for 30 seconds
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=object{ticket=string}}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.tokenStore.IssueTicket(c.UserContext(), currentUserID(c))
	if errors.Is(err, cache.ErrUnavailable) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable, err)
	}
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"ticket": ticket})
}

// WebSocketUpgradeRequired rejects plain HTTP requests before a ticket is spent.
func (s *Server) WebSocketUpgradeRequired(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("Websocket upgrade required"))
	}
	return c.Next()
}

// WebsocketHandler streams realtime events to the ticket holder.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"reason":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register rejected",
				slog.Any("user_id", userID), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"reason":"connection_limit"}}`))
			_ = conn.Close()
			return
		}

		if hello, err := notifications.EncodeEvent("connected", fiber.Map{"userId": userID}); err == nil {
			client.TrySend([]byte(hello))
		}

		go client.WritePump()
		// Blocks until the client goes away; ReadPump unregisters on exit.
		client.ReadPump()
	})
}
