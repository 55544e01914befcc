// Package server contains the HTTP handlers and wiring for the guestbook API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"senbon/internal/cache"
	"senbon/internal/config"
	"senbon/internal/middleware"
	"senbon/internal/repository"
	"senbon/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

const serviceName = "senbon-guestbook"

type Server struct {
	config            *config.Config
	repo              repository.GuestbookRepository
	redis             *redis.Client
	promMiddleware    *fiberprometheus.FiberPrometheus
	auth              *middleware.AdminAuth
	guestbookService  *service.GuestbookService
	moderationService *service.ModerationService
}

// NewServer selects the store from cfg and connects to Redis when the burst
// guard is enabled.
func NewServer(cfg *config.Config) (*Server, error) {
	repo, err := repository.NewFromConfig(cfg, middleware.Logger)
	if err != nil {
		return nil, fmt.Errorf("store setup failed: %w", err)
	}

	var redisClient *redis.Client
	if !cfg.DisableRateLimit {
		redisClient = cache.InitRedis(cfg.RedisURL)
	}

	return NewServerWithDeps(cfg, repo, redisClient)
}

// NewServerWithDeps builds a Server around an existing store and Redis client.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, repo repository.GuestbookRepository, redisClient *redis.Client) (*Server, error) {
	if repo == nil {
		return nil, errors.New("guestbook repository is required")
	}

	prom := middleware.InitMetrics(serviceName)

	s := &Server{
		config:         cfg,
		repo:           repo,
		redis:          redisClient,
		promMiddleware: prom,
		auth:           middleware.NewAdminAuth(cfg.AdminToken),
	}
	s.guestbookService = service.NewGuestbookService(repo, service.Policy{
		AutoApprove:      cfg.AutoApprove,
		RateLimitEnabled: !cfg.DisableRateLimit,
		Window:           cfg.RateLimitWindow(),
	})
	s.moderationService = service.NewModerationService(repo)

	middleware.Logger.Info("Guestbook store selected",
		"backend", repo.Backend(),
		"auto_approve", cfg.AutoApprove,
		"rate_limit", !cfg.DisableRateLimit,
		"burst_guard", redisClient != nil,
	)
	return s, nil
}

// SetupMiddleware configures global middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.AdminTokenHeader,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: middleware.ClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate_limited",
				"code":  "rate_limited",
			})
		},
	}))
}

// SetupRoutes registers the API, health and metrics routes.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	guestbook := api.Group("/guestbook")
	guestbook.Get("/", s.ListGuestbook)
	guestbook.Post("/", middleware.RateLimit(
		s.redis, s.config.SubmitBurstLimit, time.Minute, "guestbook_submit"), s.CreateGuestbookEntry)
	guestbook.Patch("/", s.EditGuestbookEntry)
	guestbook.Delete("/", s.DeleteGuestbookEntry)

	approve := guestbook.Group("/approve", s.auth.Required())
	approve.Get("/", s.ListForModeration)
	approve.Patch("/", s.ModerateGuestbookEntry)

	api.Post("/auth", middleware.RateLimit(
		s.redis, 10, time.Minute, "auth_verify"), s.VerifyAdminToken)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the store and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := s.repo.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"backend": s.repo.Backend(),
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown releases the store and Redis connections.
func (s *Server) Shutdown(_ context.Context) error {
	var errs []error
	if closer, ok := s.repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	return errors.Join(errs...)
}
