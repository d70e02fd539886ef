package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"driftboard/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	// TokenIssuer is the iss claim stamped on every issued token.
	TokenIssuer = "driftboard-api"
	// TokenAudience is the aud claim stamped on every issued token.
	TokenAudience = "driftboard-client"
)

var (
	cfg *config.Config
	rdb *redis.Client
)

// InitMiddleware initializes authentication middleware with the given config
// and Redis client. The Redis client backs the token revocation list and may
// be nil, in which case revocation checks are skipped.
func InitMiddleware(c *config.Config, r *redis.Client) {
	cfg = c
	rdb = r
}

// BlacklistKey returns the revocation list key for a token ID.
func BlacklistKey(jti string) string {
	return fmt.Sprintf("jwt:blacklist:%s", jti)
}

// parseToken validates the signature and registered claims and returns the
// subject user ID and the token ID.
func parseToken(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithAudience(TokenAudience))
	if err != nil || !token.Valid {
		return 0, "", fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", fmt.Errorf("invalid token claims")
	}

	// Subject claim per RFC 7519 carries the user ID
	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, "", fmt.Errorf("invalid token subject")
	}
	userID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("invalid user ID in token")
	}

	jti, _ := claims["jti"].(string)
	return uint(userID), jti, nil
}

// isRevoked reports whether the token ID is on the revocation list. When
// Redis is unavailable the check fails open so a cache outage does not log
// everyone out.
func isRevoked(ctx context.Context, jti string) bool {
	if rdb == nil || jti == "" {
		return false
	}
	n, err := rdb.Exists(ctx, BlacklistKey(jti)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID, jti, err := parseToken(tokenString)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	if isRevoked(c.UserContext(), jti) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Token has been revoked",
		})
	}

	setAuthenticatedUser(c, userID, jti)

	return c.Next()
}

// setAuthenticatedUser stores the user in Fiber locals and syncs it into the
// request context so the context-aware logger and service layers see it.
func setAuthenticatedUser(c *fiber.Ctx, userID uint, jti string) {
	c.Locals("userID", userID)
	c.Locals("jti", jti)
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}

// OptionalAuth populates the user ID from a bearer token when one is present
// and valid, and lets the request through anonymously otherwise. Feed and
// detail reads use it so authenticated viewers get their own votes attached.
func OptionalAuth(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return c.Next()
	}

	userID, jti, err := parseToken(tokenString)
	if err != nil || isRevoked(c.UserContext(), jti) {
		return c.Next()
	}

	setAuthenticatedUser(c, userID, jti)

	return c.Next()
}
