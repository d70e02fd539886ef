package server

import (
	"driftboard/internal/models"
	"driftboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(ctx, postID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		UserID:   userID,
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/posts/:id/comments/:commentId
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.UpdateComment(ctx, service.UpdateCommentInput{
		UserID:    userID,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    userID,
		CommentID: commentID,
	}); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// VoteComment handles POST /api/posts/:id/comments/:commentId/vote
func (s *Server) VoteComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Value int `json:"value"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.VoteComment(ctx, userID, commentID, req.Value)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comment)
}

// UnvoteComment handles DELETE /api/posts/:id/comments/:commentId/vote
func (s *Server) UnvoteComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.UnvoteComment(ctx, userID, commentID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(comment)
}
