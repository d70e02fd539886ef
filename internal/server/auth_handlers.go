package server

import (
	"fmt"
	"strconv"
	"time"

	"driftboard/internal/middleware"
	"driftboard/internal/models"
	"driftboard/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

func refreshTokenKey(token string) string {
	return "refresh:" + token
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, email, and password are required"))
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	existing, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("User already exists"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     models.RoleUser,
	}

	if createErr := s.userRepo.Create(c.Context(), user); createErr != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, createErr)
	}

	token, refreshToken, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, refreshToken, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// Refresh handles POST /api/auth/refresh. Refresh tokens are opaque,
// single-use and rotated on every refresh.
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("refresh_token is required"))
	}

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewUnauthorizedError("Session store unavailable"))
	}

	userIDStr, err := s.redis.Get(c.Context(), refreshTokenKey(req.RefreshToken)).Result()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired refresh token"))
	}

	// Rotate: the presented token is consumed whether or not issuing succeeds.
	s.redis.Del(c.Context(), refreshTokenKey(req.RefreshToken))

	userID, err := strconv.ParseUint(userIDStr, 10, 32)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid refresh token"))
	}

	user, err := s.userRepo.GetByID(c.Context(), uint(userID))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Unknown user"))
	}

	token, refreshToken, err := s.issueTokens(c, user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token":         token,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// Logout handles POST /api/auth/logout. It revokes the presented refresh
// token and blacklists the current access token's jti until it expires.
func (s *Server) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.BodyParser(&req)

	if s.redis != nil {
		if req.RefreshToken != "" {
			s.redis.Del(c.Context(), refreshTokenKey(req.RefreshToken))
		}
		if jti, ok := c.Locals("jti").(string); ok && jti != "" {
			s.redis.Set(c.Context(), middleware.BlacklistKey(jti), "1", accessTokenTTL)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

// issueTokens creates an access token and, when Redis is available, a stored
// refresh token for the user.
func (s *Server) issueTokens(c *fiber.Ctx, user *models.User) (string, string, error) {
	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}

	refreshToken := ""
	if s.redis != nil {
		refreshToken = uuid.New().String()
		if err := s.redis.Set(c.Context(), refreshTokenKey(refreshToken),
			strconv.FormatUint(uint64(user.ID), 10), refreshTokenTTL).Err(); err != nil {
			return "", "", err
		}
	}

	return token, refreshToken, nil
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10), // Subject (user ID as string)
		"username": username,                               // Username (cached in token)
		"iss":      middleware.TokenIssuer,                 // Issuer
		"aud":      middleware.TokenAudience,               // Audience
		"exp":      now.Add(accessTokenTTL).Unix(),         // Expiration
		"iat":      now.Unix(),                             // Issued at
		"nbf":      now.Unix(),                             // Not before
		"jti":      s.generateJTI(),                        // JWT ID (unique identifier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
