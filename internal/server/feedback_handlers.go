package server

import (
	"driftboard/internal/models"
	"driftboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitFeedback handles POST /api/feedback
func (s *Server) SubmitFeedback(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	feedback, err := s.feedbackService.SubmitFeedback(ctx, service.SubmitFeedbackInput{
		UserID:  userID,
		Content: req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(feedback)
}

// GetMyFeedback handles GET /api/feedback/me
func (s *Server) GetMyFeedback(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	feedback, err := s.feedbackService.ListMyFeedback(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(feedback)
}

// GetFeedbackQueue handles GET /api/moderation/feedback?status=open|reviewed
func (s *Server) GetFeedbackQueue(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 50)

	feedback, err := s.feedbackService.ListQueue(ctx, c.Query("status", models.FeedbackStatusOpen), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(feedback)
}

// ReviewFeedback handles POST /api/moderation/feedback/:id/review
func (s *Server) ReviewFeedback(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	feedback, err := s.feedbackService.MarkReviewed(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(feedback)
}
