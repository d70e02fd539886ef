// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"driftboard/internal/cache"
	"driftboard/internal/config"
	"driftboard/internal/database"
	"driftboard/internal/middleware"
	"driftboard/internal/models"
	"driftboard/internal/repository"
	"driftboard/internal/search"
	"driftboard/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo        repository.UserRepository
	postRepo        repository.PostRepository
	commentRepo     repository.CommentRepository
	voteRepo        repository.VoteRepository
	feedbackRepo    repository.FeedbackRepository
	maintenanceRepo repository.MaintenanceRepository

	searchIndex *search.Index

	postService       *service.PostService
	commentService    *service.CommentService
	userService       *service.UserService
	feedbackService   *service.FeedbackService
	moderationService *service.ModerationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)

	searchIndex := search.NewIndex(redisClient)

	prom := middleware.InitMetrics("driftboard-api")

	middleware.InitMiddleware(cfg, redisClient)

	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  prom,
		userRepo:        userRepo,
		postRepo:        postRepo,
		commentRepo:     commentRepo,
		voteRepo:        voteRepo,
		feedbackRepo:    feedbackRepo,
		maintenanceRepo: maintenanceRepo,
		searchIndex:     searchIndex,
	}
	server.postService = service.NewPostService(postRepo, voteRepo, searchIndex, server.isStaffByUserID)
	server.commentService = service.NewCommentService(commentRepo, postRepo, voteRepo, server.isStaffByUserID)
	server.userService = service.NewUserService(userRepo)
	server.feedbackService = service.NewFeedbackService(feedbackRepo)
	server.moderationService = service.NewModerationService(postRepo, commentRepo, userRepo, maintenanceRepo, searchIndex)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Driftboard Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", s.Refresh)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)

	// Public post routes (browse/search). OptionalAuth attaches the viewer's
	// own votes when a token is present.
	publicPosts := api.Group("/posts", middleware.OptionalAuth)
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/search", middleware.RateLimit(
		s.redis, 10, time.Minute, "search"), s.SearchPosts)
	publicPosts.Get("/suggest", middleware.RateLimit(
		s.redis, 30, time.Minute, "suggest"), s.SuggestPosts)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	// Protected routes. BannedGuard leaves reads open but blocks banned users
	// from every mutation.
	protected := api.Group("", middleware.AuthRequired, s.BannedGuard())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/", s.GetAllUsers)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)

	// Protected post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/vote", s.VotePost)
	posts.Delete("/:id/vote", s.UnvotePost)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id/comments/:commentId", s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Post("/:id/comments/:commentId/vote", s.VoteComment)
	posts.Delete("/:id/comments/:commentId/vote", s.UnvoteComment)
	// Generic /:id routes (for update, delete)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	// Feedback routes
	feedback := protected.Group("/feedback")
	feedback.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "feedback"), s.SubmitFeedback)
	feedback.Get("/me", s.GetMyFeedback)

	// Moderation routes (moderators and admins)
	moderation := protected.Group("/moderation", s.StaffRequired())
	moderation.Post("/posts/:id/remove", s.RemovePost)
	moderation.Post("/posts/:id/restore", s.RestorePost)
	moderation.Post("/comments/:commentId/remove", s.RemoveComment)
	moderation.Post("/comments/:commentId/restore", s.RestoreComment)
	moderation.Get("/feedback", s.GetFeedbackQueue)
	moderation.Post("/feedback/:id/review", s.ReviewFeedback)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Post("/users/:id/promote", s.PromoteUser)
	admin.Post("/users/:id/demote", s.DemoteUser)
	admin.Post("/reconcile", s.Reconcile)
	admin.Get("/schema", s.SchemaStatus)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis being down degrades
// the report but the service itself keeps serving from the database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// BannedGuard returns middleware that blocks banned users from mutating
// endpoints with 403 while leaving reads open. Must run after AuthRequired.
func (s *Server) BannedGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return c.Next()
		}

		userID := c.Locals("userID").(uint)
		banned, err := s.isBannedByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if banned {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Account is banned"))
		}

		return c.Next()
	}
}

// StaffRequired returns middleware that rejects users without moderator or
// admin role with 403. Must be placed after AuthRequired so that userID is
// available in locals.
func (s *Server) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		staff, err := s.isStaffByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !staff {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Moderator access required"))
		}

		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Driftboard API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
