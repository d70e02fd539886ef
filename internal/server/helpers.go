package server

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"driftboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "commentId" -> "Invalid comment ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the authenticated user ID from Fiber locals, or zero
// for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// respondServiceError maps service and repository errors onto HTTP statuses.
func respondServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NOT_FOUND":
			return models.RespondWithError(c, fiber.StatusNotFound, err)
		case "VALIDATION_ERROR":
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		case "UNAUTHORIZED":
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		case "FORBIDDEN":
			return models.RespondWithError(c, fiber.StatusForbidden, err)
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: "NOT_FOUND", Message: "Resource not found"})
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}

func (s *Server) isStaffByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("role").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsStaff(), nil
}

func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("role").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.Role == models.RoleAdmin, nil
}

func (s *Server) isBannedByUserID(ctx context.Context, userID uint) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("banned").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.Banned, nil
}
