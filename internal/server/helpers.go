package server

import (
	"errors"
	"strings"
	"unicode"

	"tutorx/internal/middleware"
	"tutorx/internal/models"
	"tutorx/internal/observability"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The message is derived from the parameter name ("postId" -> "Invalid post ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// mapServiceError converts a service error into an HTTP status.
func mapServiceError(err error) int {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return models.StatusFor(appErr.Code)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error envelope for err. 5xx causes are logged and
// reported; the client only ever sees "Server error".
func respondError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		observability.ReportError(c.UserContext(), middleware.Logger, err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
	}
	if status == fiber.StatusNotFound && errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, status, models.NewNotFoundError("Resource"))
	}
	return models.RespondWithError(c, status, err)
}

// respondData writes the success envelope.
func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// currentUserID returns the authenticated caller. Only valid behind AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
