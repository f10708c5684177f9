package server

import (
	"io"

	"tutorx/internal/models"
	"tutorx/internal/service"

	"github.com/gofiber/fiber/v2"
)

// uploadImage reads the multipart "image" field and stores it as kind.
// On failure the response is already written and errResponseWritten is returned.
func (s *Server) uploadImage(c *fiber.Ctx, kind service.ImageKind) (*service.StoredImage, error) {
	file, err := c.FormFile("image")
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
		return nil, errResponseWritten
	}

	src, err := file.Open()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return nil, errResponseWritten
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return nil, errResponseWritten
	}

	stored, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:  currentUserID(c),
		Kind:    kind,
		Content: content,
	})
	if err != nil {
		_ = respondError(c, err)
		return nil, errResponseWritten
	}
	return stored, nil
}
