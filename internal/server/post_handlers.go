package server

import (
	"context"

	"tutorx/internal/models"
	"tutorx/internal/service"

	"github.com/gofiber/fiber/v2"
)

// likeResponse is the body of every like endpoint.
type likeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first, each with author and comments
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=[]models.Post}
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Limit:         page.Limit,
		Offset:        page.Offset,
		CurrentUserID: s.optionalUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, post)
}

// GetUserPosts handles GET /api/posts/user/:userId
// @Summary Posts by author
// @Tags posts
// @Produce json
// @Param userId path int true "Author ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=[]models.Post}
// @Router /posts/user/{userId} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	posts, err := s.postService.GetUserPosts(c.UserContext(), userID, page.Limit, page.Offset, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, posts)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} object{success=bool,data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	post, err := s.postService.CreatePost(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), EventPostCreated, post)
	return respondData(c, fiber.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Only the author may edit; empty fields are left unchanged
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Changes"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)
	req.PostID = id

	post, err := s.postService.UpdatePost(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), EventPostUpdated, post)
	return respondData(c, fiber.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Removes the post and its comments
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=object{message=string}}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), EventPostDeleted, fiber.Map{"id": id})
	return respondData(c, fiber.StatusOK, fiber.Map{"message": "Post deleted"})
}

// ToggleLike handles PUT /api/posts/:id/like
// @Summary Toggle like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=likeResponse}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	return s.handleLike(c, s.postService.ToggleLike)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Description Idempotent
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=likeResponse}
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.handleLike(c, s.postService.LikePost)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Unlike a post
// @Description Idempotent
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=likeResponse}
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.handleLike(c, s.postService.UnlikePost)
}

// toggleFunc is the shape shared by the like and follow service methods.
type toggleFunc func(ctx context.Context, actorID, targetID uint) (*models.ToggleResult, error)

func (s *Server) handleLike(c *fiber.Ctx, apply toggleFunc) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := currentUserID(c)

	res, err := apply(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	if res.Active && res.OwnerID != userID {
		s.publishUserEvent(c.UserContext(), res.OwnerID, EventPostLiked, fiber.Map{
			"postId": id,
			"userId": userID,
			"likes":  res.Count,
		})
	}
	return respondData(c, fiber.StatusOK, likeResponse{Liked: res.Active, Likes: res.Count})
}

// UploadThumbnail handles POST /api/posts/thumbnail
// @Summary Upload a post thumbnail
// @Description Multipart field "image"; stored as WebP fitted into 1280px
// @Tags posts
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image"
// @Success 201 {object} object{success=bool,data=service.StoredImage}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/thumbnail [post]
func (s *Server) UploadThumbnail(c *fiber.Ctx) error {
	stored, err := s.uploadImage(c, service.ImageKindThumbnail)
	if err != nil {
		return nil
	}
	return respondData(c, fiber.StatusCreated, stored)
}
