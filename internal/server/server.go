// Package server contains the HTTP and WebSocket handlers for the moderation API.
package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	_ "fourwcycle/docs" // swagger docs
	"fourwcycle/internal/auth"
	"fourwcycle/internal/bootstrap"
	"fourwcycle/internal/cache"
	"fourwcycle/internal/config"
	"fourwcycle/internal/featureflags"
	"fourwcycle/internal/middleware"
	"fourwcycle/internal/models"
	"fourwcycle/internal/notifications"
	"fourwcycle/internal/repository"
	"fourwcycle/internal/service"
	"fourwcycle/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
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
	submissionRepo repository.SubmissionRepository
	photos         *storage.DiskStore
	tokens         *auth.TokenManager
	revocations    *cache.TokenRevocations
	tickets        *cache.WSTickets
	notifier       *notifications.Notifier
	hub            *notifications.AdminHub
	featureFlags   *featureflags.Manager
	uploads        *service.UploadService
	submissions    *service.SubmissionService
	authService    *service.AuthService
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; Redis-backed features then degrade as documented on each.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	photos, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	creds, err := auth.NewCredentials(cfg.AdminUser, cfg.AdminPass, cfg.AdminPassHash)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("fourwcycle-api"),
		submissionRepo: repository.NewSubmissionRepository(db),
		photos:         photos,
		tokens:         auth.NewTokenManager(cfg.JWTSecret, auth.DefaultTTL),
		revocations:    cache.NewTokenRevocations(redisClient),
		tickets:        cache.NewWSTickets(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	subCfg := service.SubmissionServiceConfig{
		Cache:       cache.NewPublishedCache(redisClient),
		Flags:       s.featureFlags,
		GracePeriod: cfg.ReconcileGracePeriod(),
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		subCfg.Events = s.notifier
		if s.featureFlags.Enabled(featureflags.EventStream) {
			s.hub = notifications.NewAdminHub()
		}
	}

	s.uploads = service.NewUploadService(photos, cfg)
	s.submissions = service.NewSubmissionService(s.submissionRepo, s.uploads, subCfg)
	s.authService = service.NewAuthService(creds, s.tokens, s.revocations)
	return s, nil
}

// NewApp builds the Fiber application with middleware and routes, without listening.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "4wCycle API",
		BodyLimit: int(int64(s.uploads.MaxFiles())*s.uploads.MaxFileBytes() + 1<<20),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
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
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Uploaded photos are embedded by the public site, so resources must be cross-origin readable.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, please try again later."))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Photo files
	app.Static(strings.TrimSuffix(models.UploadsPath, "/"), s.photos.Dir(), fiber.Static{
		MaxAge: 3600,
	})

	guard := middleware.AdminGuard(s.tokens, s.revocations)

	// Admin auth
	admin := api.Group("/admin")
	admin.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	admin.Post("/logout", guard, s.Logout)
	admin.Get("/feature-flags", guard, s.GetFeatureFlags)
	if s.featureFlags.Enabled(featureflags.MetricsDashboard) {
		admin.Get("/metrics/dashboard", guard, monitor.New(monitor.Config{
			Title: "4wCycle Metrics Dashboard",
		}))
	}

	// Public submission routes
	submissions := api.Group("/submissions")
	submissions.Post("/submit", middleware.RateLimit(s.redis, 5, 10*time.Minute, "submit"), s.SubmitStory)
	submissions.Get("/published", s.GetPublished)
	api.Get("/published", s.RedirectPublished)

	// Admin submission routes; specific paths before /:id
	submissions.Get("/", guard, s.GetSubmissions)
	submissions.Get("/stats", guard, s.GetSubmissionStats)
	submissions.Post("/reconcile", guard, s.ReconcileSubmissions)
	submissions.Get("/:id", guard, s.GetSubmission)
	submissions.Patch("/:id", guard, s.UpdateSubmissionStatus)
	submissions.Delete("/:id", guard, s.DeleteSubmission)

	// Moderation event stream
	api.Post("/ws/ticket", guard, s.IssueWSTicket)
	api.Get("/ws", s.WSTicketRequired(), s.ModerationEventsHandler())
}

// HealthCheck reports that the process is serving requests.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so only
// a configured but unreachable Redis makes the service unready.
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

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start runs background workers and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.hub != nil && s.notifier != nil {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start moderation hub wiring", slog.String("error", err.Error()))
		}
	}

	if s.featureFlags.Enabled(featureflags.StartupSweep) {
		go s.submissions.RunStartupSweep(ctx)
	}
	s.submissions.StartReconcileWorker(ctx, s.config.ReconcileInterval())

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the hub subscription and the reconcile worker.
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down moderation hub", slog.String("error", err.Error()))
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

	middleware.Logger.Info("Server shutdown complete")
	return nil
}

// Submissions exposes the lifecycle service, e.g. for command-line tools sharing the wiring.
func (s *Server) Submissions() *service.SubmissionService {
	return s.submissions
}

// Auth exposes the admin login service.
func (s *Server) Auth() *service.AuthService {
	return s.authService
}
