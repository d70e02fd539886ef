package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"driftboard/internal/cache"
	"driftboard/internal/config"
	"driftboard/internal/database"
	"driftboard/internal/models"
	"driftboard/internal/search"
	"driftboard/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis, ensures the configured admin account
// exists and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureAdminAccount(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	if opts.SeedDemoData || cfg.SeedOnStart {
		index := search.NewIndex(r)
		if err := seed.Seed(db, index, seed.Options{NumUsers: 25, NumPosts: 100}); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// ensureAdminAccount creates or promotes the admin user named in the config.
// No-op when ADMIN_EMAIL is unset.
func ensureAdminAccount(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.AdminEmail))
	if email == "" {
		return nil
	}

	var admin models.User
	findErr := db.Where("email = ?", email).First(&admin).Error
	switch {
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		if cfg.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD must be set to create the admin account")
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		admin = models.User{
			Username: "admin",
			Email:    email,
			Password: string(hashedPassword),
			Role:     models.RoleAdmin,
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		log.Printf("admin account created (%s)", email)
	case findErr != nil:
		return findErr
	default:
		if admin.Role != models.RoleAdmin {
			if err := db.Model(&models.User{}).
				Where("id = ?", admin.ID).
				Update("role", models.RoleAdmin).Error; err != nil {
				return err
			}
			log.Printf("existing account promoted to admin (%s)", email)
		}
	}

	return nil
}
