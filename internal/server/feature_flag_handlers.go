package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags
// @Description Configured flags and their evaluated state for the caller
// @Tags meta
// @Produce json
// @Success 200 {object} object{success=bool,data=object{raw=map[string]string,evaluated=map[string]bool}}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := s.optionalUserID(c)

	if s.featureFlags == nil {
		return respondData(c, fiber.StatusOK, fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return respondData(c, fiber.StatusOK, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
