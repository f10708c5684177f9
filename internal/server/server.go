// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "tutorx/docs" // swagger docs
	"tutorx/internal/bootstrap"
	"tutorx/internal/cache"
	"tutorx/internal/config"
	"tutorx/internal/featureflags"
	"tutorx/internal/middleware"
	"tutorx/internal/models"
	"tutorx/internal/notifications"
	"tutorx/internal/reconcile"
	"tutorx/internal/repository"
	"tutorx/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultBodyLimit = 12 * 1024 * 1024

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens       *middleware.TokenManager
	tokenStore   *cache.TokenStore
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	reconciler   *reconcile.Scheduler

	authService    *service.AuthService
	userService    *service.UserService
	postService    *service.PostService
	commentService *service.CommentService
	socialService  *service.SocialService
	ratingService  *service.RatingService
	imageService   *service.ImageService
}

// NewServer connects to the database and Redis, then builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
// redisClient may be nil: caching, revocation, tickets and cross-instance
// events are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	socialRepo := repository.NewSocialRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("tutorx-api"),
		tokens:         middleware.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpire),
		tokenStore:     cache.NewTokenStore(redisClient),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		reconciler: reconcile.New(repository.NewReconcileRepository(db), resetRepo,
			cfg.ReconcileSchedule, middleware.Logger),
	}

	mailer := service.NewMailService(cfg, middleware.Logger)
	s.authService = service.NewAuthService(userRepo, resetRepo, mailer, cfg.ResetURLBase, middleware.Logger)
	s.userService = service.NewUserService(userRepo, socialRepo)
	s.postService = service.NewPostService(postRepo, socialRepo)
	s.commentService = service.NewCommentService(commentRepo, postRepo, userRepo)
	s.socialService = service.NewSocialService(socialRepo, userRepo)
	s.ratingService = service.NewRatingService(ratingRepo, userRepo)
	s.imageService = service.NewImageService(cfg)

	s.hub.SetPresenceCallbacks(
		func(userID uint) { middleware.Logger.Debug("user online", slog.Any("user_id", userID)) },
		func(userID uint) { middleware.Logger.Debug("user offline", slog.Any("user_id", userID)) },
	)

	return s, nil
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "tutorX API",
		BodyLimit: defaultBodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
			}
			return respondError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagates request, user and trace IDs into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry its headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Per-IP ceiling in front of the Redis-backed per-route limits.
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
				"success": false,
				"message": "Too many requests, please try again later",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Static("/uploads", s.imageService.UploadDir(), fiber.Static{MaxAge: 86400})

	api := app.Group("/api")
	api.Get("/", s.LivenessCheck)
	api.Get("/feature-flags", s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)
	auth.Post("/reset-password-request",
		middleware.RateLimit(s.redis, 3, 15*time.Minute, "reset_request"), s.RequestPasswordReset)
	auth.Post("/reset-password",
		middleware.RateLimit(s.redis, 5, 15*time.Minute, "reset_confirm"), s.ResetPassword)

	writes := middleware.RateLimit(s.redis, 30, time.Minute, "writes")

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/user/:userId", s.GetUserPosts)
	posts.Post("/thumbnail", s.AuthRequired(), s.FeatureRequired(featureflags.ImageUploads),
		middleware.RateLimit(s.redis, 20, time.Hour, "uploads"), s.UploadThumbnail)
	posts.Post("/", s.AuthRequired(), writes, s.CreatePost)
	posts.Put("/:id/like", s.AuthRequired(), writes, s.ToggleLike)
	posts.Post("/:id/like", s.AuthRequired(), writes, s.LikePost)
	posts.Delete("/:id/like", s.AuthRequired(), writes, s.UnlikePost)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.AuthRequired(), writes, s.UpdatePost)
	posts.Delete("/:id", s.AuthRequired(), writes, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/post/:postId", s.GetComments)
	comments.Post("/", s.AuthRequired(),
		middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	comments.Delete("/:id", s.AuthRequired(), writes, s.DeleteComment)

	// Static segments are registered before /:id.
	users := api.Group("/users")
	users.Get("/tutors", s.ListTutors)
	users.Get("/favorites", s.AuthRequired(), s.ListFavorites)
	users.Put("/profile", s.AuthRequired(), writes, s.UpdateProfile)
	users.Post("/profile/avatar", s.AuthRequired(), s.FeatureRequired(featureflags.ImageUploads),
		middleware.RateLimit(s.redis, 20, time.Hour, "uploads"), s.UploadAvatar)
	users.Post("/rate", s.AuthRequired(),
		middleware.RateLimit(s.redis, 10, time.Minute, "rate_tutor"), s.RateTutor)
	users.Post("/favorite/:id", s.AuthRequired(), writes, s.ToggleFavorite)
	users.Get("/:id/ratings", s.ListRatings)
	users.Get("/:id/followers", s.ListFollowers)
	users.Get("/:id/following", s.ListFollowing)
	users.Post("/:id/follow", s.AuthRequired(), writes, s.ToggleFollow)
	users.Put("/:id/follow", s.AuthRequired(), writes, s.Follow)
	users.Delete("/:id/follow", s.AuthRequired(), writes, s.Unfollow)
	users.Get("/:id", s.GetUser)

	api.Post("/ws/ticket", s.AuthRequired(), s.FeatureRequired(featureflags.Realtime), s.IssueWSTicket)
	api.Get("/ws", s.WebSocketUpgradeRequired, s.FeatureRequired(featureflags.Realtime),
		s.WebSocketTicketRequired(), s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
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
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		// The API still serves without Redis; only caching and fan-out degrade.
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websocketConnections": s.hub.ConnectionCount(),
		"time":                 time.Now(),
	})
}

// Start starts the background workers and the HTTP listener. It blocks until the listener stops.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.NewApp()

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start event hub wiring", slog.String("error", err.Error()))
		}
	}

	if s.featureFlags.Enabled(featureflags.Reconcile, 0) {
		if err := s.reconciler.Start(s.shutdownCtx); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	s.reconciler.Stop()

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down event hub", slog.String("error", err.Error()))
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
