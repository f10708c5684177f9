package server

import (
	"tutorx/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} object{success=bool,data=models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req service.CreateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	comment, err := s.commentService.CreateComment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), EventCommentCreated, comment)
	return respondData(c, fiber.StatusCreated, comment)
}

// GetComments handles GET /api/comments/post/:postId
// @Summary List comments for a post
// @Tags comments
// @Produce json
// @Param postId path int true "Post ID"
// @Success 200 {object} object{success=bool,data=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/post/{postId} [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, comments)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment
// @Description Only the author may delete
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} object{success=bool,data=object{message=string}}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		CommentID: id,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), EventCommentDeleted, fiber.Map{
		"id":     comment.ID,
		"postId": comment.PostID,
	})
	return respondData(c, fiber.StatusOK, fiber.Map{"message": "Comment deleted"})
}
