// Package server contains the HTTP handlers and routing for the forum API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/nocson47/beaconofknowledge/docs" // swagger docs
	"github.com/nocson47/beaconofknowledge/internal/bootstrap"
	"github.com/nocson47/beaconofknowledge/internal/cache"
	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/featureflags"
	"github.com/nocson47/beaconofknowledge/internal/mailer"
	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/notifications"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/retention"
	"github.com/nocson47/beaconofknowledge/internal/service"

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

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens       *middleware.Tokens
	revocations  *cache.Revocations
	rateLimiter  *middleware.RateLimiter
	notifier     *notifications.Notifier
	featureFlags *featureflags.Manager
	debugTrail   *repository.DebugTrail
	retention    *retention.Scheduler

	userService   *service.UserService
	threadService *service.ThreadService
	replyService  *service.ReplyService
	voteService   *service.VoteService
	reportService *service.ReportService
	resetService  *service.PasswordResetService
	avatarService *service.AvatarService
	auditService  *service.AuditService
}

// NewServer connects the runtime dependencies and builds a server around them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	replyRepo := repository.NewReplyRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)

	retentionWindow := time.Duration(cfg.DebugRetentionDays) * 24 * time.Hour
	debugTrail := repository.NewDebugTrail(redisClient, retentionWindow)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("beacon-api"),
		tokens:         middleware.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute),
		revocations:    cache.NewRevocations(redisClient),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		debugTrail:     debugTrail,
		retention:      retention.NewScheduler(resetRepo, debugTrail),
	}

	s.auditService = service.NewAuditService(auditRepo, debugTrail, userRepo)
	s.userService = service.NewUserService(userRepo, s.auditService)
	s.threadService = service.NewThreadService(threadRepo, userRepo, s.auditService)
	s.replyService = service.NewReplyService(replyRepo, s.threadService, userRepo, s.auditService)
	s.voteService = service.NewVoteService(voteRepo, userRepo)
	s.reportService = service.NewReportService(reportRepo, threadRepo, userRepo, s.auditService, s.notifier)
	s.resetService = service.NewPasswordResetService(
		userRepo,
		resetRepo,
		mailer.New(cfg, middleware.Logger),
		s.auditService,
		time.Duration(cfg.ResetTokenTTLMinutes)*time.Minute,
		cfg.PublicBaseURL,
	)
	s.avatarService = service.NewAvatarService(userRepo, cfg)

	if bad := s.featureFlags.Invalid(); len(bad) > 0 {
		middleware.Logger.Warn("Ignoring malformed feature flag entries", "entries", bad)
	}

	return s, nil
}

// App builds a fiber app with middleware and routes installed. Start uses it; tests call it directly.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Beacon of Knowledge API",
		BodyLimit:    (s.avatarMaxMB() + 1) * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) avatarMaxMB() int {
	if s.config.AvatarMaxUploadMB > 0 {
		return s.config.AvatarMaxUploadMB
	}
	return service.DefaultAvatarMaxUploadMB
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled request error", "error", err)
	return models.Respond(c, err)
}

const defaultOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// SetupMiddleware installs the global chain. Order matters: ids and tracing first so every
// later log line is tagged, CORS before the limiter so a 429 still carries CORS headers.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(), requestid.New(), middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New(), middleware.StructuredLogger(), s.corsPolicy(), globalLimiter())
}

func (s *Server) corsPolicy() fiber.Handler {
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	})
}

// globalLimiter is an in-process per-IP ceiling in front of the Redis quotas.
func globalLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          100,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, please try again later."))
		},
	})
}

// AdminRequired rejects callers whose stored role is not admin. Must run after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := s.userService.Actor(c.UserContext(), currentUserID(c))
		if err != nil {
			return models.Respond(c, err)
		}
		if actor == nil || actor.Role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// FeatureRequired answers 404 while the named flag is off for the caller.
func (s *Server) FeatureRequired(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(name, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "Feature not available"})
		}
		return c.Next()
	}
}

// Start starts background jobs and listens until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if err := s.retention.Start(retention.DefaultSchedule); err != nil {
		return fmt.Errorf("start retention scheduler: %w", err)
	}

	if s.redis != nil {
		go func() {
			err := s.notifier.StartModerationSubscriber(s.shutdownCtx, s.onModerationEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				middleware.Logger.Error("Moderation subscriber stopped", "error", err)
			}
		}()
	}

	middleware.Logger.Info("Server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// onModerationEvent mirrors report lifecycle events into the debug trail for the admin console.
func (s *Server) onModerationEvent(ev notifications.ModerationEvent) {
	ctx, cancel := context.WithTimeout(s.shutdownCtx, 5*time.Second)
	defer cancel()
	s.auditService.Debug(ctx, "info", "moderation event", map[string]any{
		"type":      ev.Type,
		"report_id": ev.ReportID,
		"kind":      ev.Kind,
		"target_id": ev.TargetID,
		"status":    ev.Status,
		"actor_id":  ev.ActorID,
	})
}

// Shutdown stops accepting requests, then stops background work, then closes the stores.
// Every step runs; the failures are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	s.retention.Stop()

	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		middleware.Logger.Error("shutdown finished with errors", "error", err)
		return err
	}
	middleware.Logger.Info("shutdown complete")
	return nil
}
