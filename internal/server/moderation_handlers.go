package server

import (
	"driftboard/internal/database"
	"driftboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RemovePost handles POST /api/moderation/posts/:id/remove
func (s *Server) RemovePost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.moderationService.RemovePost(ctx, postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// RestorePost handles POST /api/moderation/posts/:id/restore
func (s *Server) RestorePost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.moderationService.RestorePost(ctx, postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// RemoveComment handles POST /api/moderation/comments/:commentId/remove
func (s *Server) RemoveComment(c *fiber.Ctx) error {
	ctx := c.Context()
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.RemoveComment(ctx, commentID); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RestoreComment handles POST /api/moderation/comments/:commentId/restore
func (s *Server) RestoreComment(c *fiber.Ctx) error {
	ctx := c.Context()
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.RestoreComment(ctx, commentID); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// BanUser handles POST /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.setUserBanned(c, true)
}

// UnbanUser handles POST /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.setUserBanned(c, false)
}

func (s *Server) setUserBanned(c *fiber.Ctx, banned bool) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	// Admins cannot ban themselves
	if banned && targetID == c.Locals("userID").(uint) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Cannot ban yourself"))
	}

	user, err := s.moderationService.SetBanned(ctx, targetID, banned)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// PromoteUser handles POST /api/admin/users/:id/promote with body {"role": "moderator"|"admin"}.
// An empty body promotes to moderator.
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	_ = c.BodyParser(&req)
	if req.Role == "" {
		req.Role = models.RoleModerator
	}
	if req.Role == models.RoleUser {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Use demote to revert a user to the default role"))
	}

	user, err := s.moderationService.SetRole(ctx, targetID, req.Role)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// DemoteUser handles POST /api/admin/users/:id/demote
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if targetID == c.Locals("userID").(uint) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Cannot demote yourself"))
	}

	user, err := s.moderationService.SetRole(ctx, targetID, models.RoleUser)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// Reconcile handles POST /api/admin/reconcile. It rebuilds the denormalized
// comment ID lists from the comments table and reports how many rows changed.
func (s *Server) Reconcile(c *fiber.Ctx) error {
	ctx := c.Context()

	result, err := s.moderationService.Reconcile(ctx)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(result)
}

// SchemaStatus handles GET /api/admin/schema. It reports the schema policy in
// effect plus the applied and pending migration versions, so an operator can
// confirm a deploy ran its migrations without shelling into the database.
func (s *Server) SchemaStatus(c *fiber.Ctx) error {
	status, err := database.GetSchemaStatus(c.Context(), s.db, s.config)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(status)
}
