package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"tutorx/internal/models"
	"tutorx/internal/service"

	"github.com/gofiber/fiber/v2"
)

const directoryTimeout = 5 * time.Second

// followResponse is the body of every follow endpoint.
type followResponse struct {
	Following bool `json:"following"`
	Followers int  `json:"followers"`
}

// ListTutors handles GET /api/users/tutors
// @Summary Tutor directory
// @Tags users
// @Produce json
// @Param q query string false "Name or bio search"
// @Param subject query string false "Subject"
// @Param minRating query number false "Minimum average rating"
// @Param maxRate query number false "Maximum hourly rate"
// @Param sort query string false "rating|rate|newest"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=[]models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/tutors [get]
func (s *Server) ListTutors(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), directoryTimeout)
	defer cancel()

	minRating, err := optionalFloatQuery(c, "minRating")
	if err != nil {
		return nil
	}
	maxRate, err := optionalFloatQuery(c, "maxRate")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	tutors, err := s.userService.ListTutors(ctx, service.ListTutorsInput{
		Query:     strings.TrimSpace(c.Query("q")),
		Subject:   strings.TrimSpace(c.Query("subject")),
		MinRating: minRating,
		MaxRate:   maxRate,
		Sort:      c.Query("sort"),
		Limit:     page.Limit,
		Offset:    page.Offset,
		ViewerID:  s.optionalUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, tutors)
}

// GetUser handles GET /api/users/:id
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile changes"
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, user)
}

// UploadAvatar handles POST /api/users/profile/avatar
// @Summary Upload avatar
// @Description Multipart field "image"; stored as WebP fitted into 512px
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image"
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/profile/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	stored, err := s.uploadImage(c, service.ImageKindAvatar)
	if err != nil {
		return nil
	}
	user, err := s.userService.SetAvatar(c.UserContext(), currentUserID(c), stored.URL)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, user)
}

// RateTutor handles POST /api/users/rate
// @Summary Rate a tutor
// @Description Creates or replaces the caller's rating and returns the new aggregate
// @Tags ratings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.RateTutorInput true "Rating"
// @Success 200 {object} object{success=bool,data=service.RateTutorResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/rate [post]
func (s *Server) RateTutor(c *fiber.Ctx) error {
	var req service.RateTutorInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.RaterID = currentUserID(c)

	res, err := s.ratingService.RateTutor(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.publishUserEvent(c.UserContext(), req.TutorID, EventTutorRated, res)
	return respondData(c, fiber.StatusOK, res)
}

// ListRatings handles GET /api/users/:id/ratings
// @Summary Ratings for a tutor
// @Tags ratings
// @Produce json
// @Param id path int true "Tutor ID"
// @Success 200 {object} object{success=bool,data=[]models.Rating}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/ratings [get]
func (s *Server) ListRatings(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ratings, err := s.ratingService.ListRatings(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, ratings)
}

// ToggleFavorite handles POST /api/users/favorite/:id
// @Summary Toggle favorite
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=object{isFavorite=bool}}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/favorite/{id} [post]
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID := currentUserID(c)

	favorite, err := s.socialService.ToggleFavorite(c.UserContext(), viewerID, id)
	if err != nil {
		return respondError(c, err)
	}

	if favorite {
		s.publishUserEvent(c.UserContext(), id, EventUserFavorited, fiber.Map{"userId": viewerID})
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"isFavorite": favorite})
}

// ListFavorites handles GET /api/users/favorites
// @Summary Caller's favorites
// @Tags social
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=[]models.User}
// @Router /users/favorites [get]
func (s *Server) ListFavorites(c *fiber.Ctx) error {
	users, err := s.socialService.ListFavorites(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, users)
}

// ToggleFollow handles POST /api/users/:id/follow
// @Summary Toggle follow
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=followResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	return s.handleFollow(c, s.socialService.ToggleFollow)
}

// Follow handles PUT /api/users/:id/follow
// @Summary Follow
// @Description Idempotent
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=followResponse}
// @Router /users/{id}/follow [put]
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.handleFollow(c, s.socialService.Follow)
}

// Unfollow handles DELETE /api/users/:id/follow
// @Summary Unfollow
// @Description Idempotent
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=followResponse}
// @Router /users/{id}/follow [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.handleFollow(c, s.socialService.Unfollow)
}

func (s *Server) handleFollow(c *fiber.Ctx, apply toggleFunc) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	followerID := currentUserID(c)

	res, err := apply(c.UserContext(), followerID, id)
	if err != nil {
		return respondError(c, err)
	}

	if res.Active {
		s.publishUserEvent(c.UserContext(), res.OwnerID, EventUserFollowed, fiber.Map{
			"userId":    followerID,
			"followers": res.Count,
		})
	}
	return respondData(c, fiber.StatusOK, followResponse{Following: res.Active, Followers: res.Count})
}

// ListFollowers handles GET /api/users/:id/followers
// @Summary Followers of a user
// @Tags social
// @Produce json
// @Param id path int true "User ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=[]models.User}
// @Router /users/{id}/followers [get]
func (s *Server) ListFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.socialService.ListFollowers(c.UserContext(), id, s.optionalUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, users)
}

// ListFollowing handles GET /api/users/:id/following
// @Summary Users a user follows
// @Tags social
// @Produce json
// @Param id path int true "User ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=[]models.User}
// @Router /users/{id}/following [get]
func (s *Server) ListFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.socialService.ListFollowing(c.UserContext(), id, s.optionalUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, users)
}

// optionalFloatQuery parses a numeric filter. Absent means nil; garbage is a 400.
func optionalFloatQuery(c *fiber.Ctx, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+name))
		return nil, errResponseWritten
	}
	return &v, nil
}
