package server

import (
	"driftboard/internal/models"
	"driftboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?sort=new|top|hot
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 20)

	posts, err := s.postService.ListPosts(ctx, service.ListPostsInput{
		Limit:         page.Limit,
		Offset:        page.Offset,
		CurrentUserID: currentUserID(c),
		Sort:          c.Query("sort", "new"),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.Context()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(ctx, id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	q := c.Query("q")
	if q == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Search query is required"))
	}

	page := parsePagination(c, 10)

	posts, err := s.postService.SearchPosts(ctx, q, page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// SuggestPosts handles GET /api/posts/suggest?q=...
func (s *Server) SuggestPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	q := c.Query("q")
	if q == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Suggest prefix is required"))
	}

	limit := c.QueryInt("limit", 10)
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	suggestions, err := s.postService.Suggest(ctx, q, limit)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(suggestions)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		MediaURLs []string `json:"media_urls,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	userIDParam, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)

	posts, err := s.postService.GetUserPosts(ctx, userIDParam, page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		MediaURLs []string `json:"media_urls,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(ctx, service.UpdatePostInput{
		UserID:    userID,
		PostID:    postID,
		Title:     req.Title,
		Content:   req.Content,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(ctx, service.DeletePostInput{
		UserID: userID,
		PostID: postID,
	}); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// VotePost handles POST /api/posts/:id/vote with body {"value": 1|-1}.
// Casting the opposite vote flips it; repeating the same vote is a no-op.
func (s *Server) VotePost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
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

	post, err := s.postService.VotePost(ctx, userID, postID, req.Value)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// UnvotePost handles DELETE /api/posts/:id/vote
func (s *Server) UnvotePost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.UnvotePost(ctx, userID, postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}
