package server

import (
	"driftboard/internal/models"
	"driftboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Username  string `json:"username"`
		Bio       string `json:"bio"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:    userID,
		Username:  req.Username,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// GetAllUsers handles GET /api/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 50)

	users, err := s.userService.ListUsers(ctx, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(ctx, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}
