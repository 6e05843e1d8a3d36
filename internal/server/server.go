// Package server contains the HTTP handlers for the feed, engagement and streak API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"squadfeed/internal/cache"
	"squadfeed/internal/config"
	"squadfeed/internal/featureflags"
	"squadfeed/internal/middleware"
	"squadfeed/internal/models"
	"squadfeed/internal/notifications"
	"squadfeed/internal/repository"
	"squadfeed/internal/service"
	"squadfeed/internal/tagging"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	serviceName = "squadfeed-api"
	// handlerTimeout bounds the storage work of a single request.
	handlerTimeout = 10 * time.Second
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	streakCache    *cache.StreakCache
	maxPageSize    int

	feedService       *service.FeedService
	engagementService *service.EngagementService
	streakService     *service.StreakService
	postService       *service.PostService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the streak cache, events and rate limits are then skipped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	loc, err := cfg.StreakLocation()
	if err != nil {
		return nil, fmt.Errorf("streak timezone: %w", err)
	}

	maxPageSize := cfg.FeedMaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = 100
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		maxPageSize:    maxPageSize,
	}

	var (
		publisher service.EventPublisher
		snapshots service.SnapshotCache
	)
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		s.streakCache = cache.NewStreakCache(redisClient, cache.DefaultBreakerConfig())
		publisher = s.notifier
		snapshots = s.streakCache
	}

	postRepo := repository.NewPostRepository(db)
	s.feedService = service.NewFeedService(postRepo)
	s.engagementService = service.NewEngagementService(repository.NewEngagementRepository(db), publisher, s.featureFlags)
	s.streakService = service.NewStreakService(repository.NewStreakRepository(db), snapshots, loc,
		service.WithStreakEvents(publisher, s.featureFlags))
	s.postService = service.NewPostService(postRepo, tagging.NewExtractor(tagging.DefaultVocabulary), s.featureFlags)

	return s, nil
}

// StreakService exposes the streak tracker for account provisioning.
func (s *Server) StreakService() *service.StreakService { return s.streakService }

// PostService exposes post publishing for seeding.
func (s *Server) PostService() *service.PostService { return s.postService }

// EngagementService exposes upvotes and views for seeding.
func (s *Server) EngagementService() *service.EngagementService { return s.engagementService }

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses keep their headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	posts := api.Group("/posts")
	posts.Get("/", s.auth.Optional(), s.GetPosts)
	posts.Get("/by-slug/:slug", s.auth.Optional(), s.GetPostBySlug)
	posts.Get("/:id", s.auth.Optional(), s.GetPost)
	posts.Post("/", s.auth.Required(), s.rateLimit("create_post", 10, time.Minute), s.CreatePost)
	// specific /:id/:action routes before the generic /:id ones
	posts.Put("/:id/upvote", s.auth.Required(), s.rateLimit("upvote", 60, time.Minute), s.UpvotePost)
	posts.Put("/:id/view", s.auth.Required(), s.rateLimit("view", 300, time.Minute), s.ViewPost)
	posts.Put("/:id", s.auth.Required(), s.UpdatePost)
	posts.Delete("/:id", s.auth.Required(), s.DeletePost)

	me := api.Group("/users/me", s.auth.Required())
	me.Put("/streak", s.rateLimit("streak", 30, time.Minute), s.TouchStreak)
	me.Get("/streak", s.GetMyStreak)

	api.Get("/users/:id/posts", s.auth.Optional(), s.GetUserPosts)
	api.Get("/squads/:id/posts", s.auth.Optional(), s.GetSquadPosts)
}

func (s *Server) rateLimit(resource string, limit int, window time.Duration) fiber.Handler {
	var store redis.Cmdable
	if s.redis != nil {
		store = s.redis
	}
	return middleware.RateLimit(store, middleware.RateLimitPolicy{
		Resource: resource,
		Limit:    limit,
		Window:   window,
		OnError:  middleware.FailOpen,
		Disabled: store == nil,
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis reachability. Redis is optional:
// without it the service runs uncached, so it only degrades the status.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	checks := fiber.Map{"database": dbStatus, "redis": redisStatus}
	if s.streakCache != nil {
		checks["streak_cache_breaker"] = s.streakCache.State()
	}

	status, overall := fiber.StatusOK, "healthy"
	switch {
	case dbStatus != "healthy":
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now(),
	})
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: serviceName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start serves HTTP on the configured port until the app is shut down.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
