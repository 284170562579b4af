package server

import (
	"time"

	"github.com/nocson47/beaconofknowledge/internal/featureflags"
	"github.com/nocson47/beaconofknowledge/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/swagger"
)

// quota is a per-caller request budget for one family of write routes.
type quota struct {
	name   string
	limit  int
	window time.Duration
}

var (
	signupQuota = quota{"signup", 3, 10 * time.Minute}
	loginQuota  = quota{"login", 10, 5 * time.Minute}
	forgotQuota = quota{"password_forgot", 3, 15 * time.Minute}
	resetQuota  = quota{"password_reset", 10, 15 * time.Minute}
	avatarQuota = quota{"avatar_upload", 10, time.Hour}
	searchQuota = quota{"search", 30, time.Minute}
	threadQuota = quota{"create_thread", 5, 5 * time.Minute}
	replyQuota  = quota{"create_reply", 10, time.Minute}
	voteQuota   = quota{"vote", 60, time.Minute}
	reportQuota = quota{"report", 20, time.Hour}
)

// limited enforces q. A Redis outage lets requests through.
func (s *Server) limited(q quota) fiber.Handler {
	return s.rateLimiter.Handler(q.limit, q.window, middleware.FailOpen, q.name)
}

// SetupRoutes mounts the probes, docs and the /api surface on app.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Static("/avatars", s.avatarService.Dir())

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Beacon of Knowledge Metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authed := middleware.AuthRequired(s.tokens, s.revocations)
	maybeAuthed := middleware.OptionalAuth(s.tokens, s.revocations)
	feature := s.FeatureRequired

	auth := api.Group("/auth")
	auth.Post("/signup", s.limited(signupQuota), s.Signup)
	auth.Post("/login", s.limited(loginQuota), s.Login)
	auth.Post("/logout", authed, s.Logout)
	auth.Post("/refresh", authed, s.Refresh)
	auth.Post("/password/forgot", feature(featureflags.PasswordResets), s.limited(forgotQuota), s.ForgotPassword)
	auth.Post("/password/reset", feature(featureflags.PasswordResets), s.limited(resetQuota), s.ResetPassword)

	// fixed segments must be registered before /:id
	users := api.Group("/users")
	users.Get("/me", authed, s.GetMyProfile)
	users.Put("/me", authed, s.UpdateMyProfile)
	users.Post("/me/avatar", authed, feature(featureflags.AvatarUploads), s.limited(avatarQuota), s.UploadAvatar)
	users.Get("/", s.GetAllUsers)
	users.Get("/username/:username", s.GetUserByUsername)
	users.Get("/:id/threads", s.GetUserThreads)
	users.Get("/:id", s.GetUserProfile)
	users.Put("/:id", authed, s.UpdateUserProfile)
	users.Patch("/:id/role", authed, s.SetUserRole)

	threads := api.Group("/threads")
	threads.Get("/", s.GetThreads)
	threads.Post("/", authed, s.limited(threadQuota), s.CreateThread)
	threads.Get("/search", feature(featureflags.ThreadSearch), s.limited(searchQuota), s.SearchThreads)
	threads.Get("/:id", maybeAuthed, s.GetThread)
	threads.Put("/:id", authed, s.UpdateThread)
	threads.Delete("/:id", authed, s.DeleteThread)
	threads.Get("/:id/votes", maybeAuthed, s.GetThreadVotes)
	threads.Get("/:id/replies", s.GetReplies)
	threads.Post("/:id/replies", authed, s.limited(replyQuota), s.CreateReply)

	replies := api.Group("/replies", authed)
	replies.Put("/:id", s.UpdateReply)
	replies.Delete("/:id", s.DeleteReply)

	api.Post("/votes", authed, s.limited(voteQuota), s.CastVote)
	api.Post("/reports", authed, feature(featureflags.ReportFiling), s.limited(reportQuota), s.FileReport)

	// AdminRequired is a fast path; every service call re-checks the stored role
	admin := api.Group("/admin", authed, s.AdminRequired())
	admin.Get("/reports", s.GetAdminReports)
	admin.Get("/reports/open-count", s.GetOpenReportCount)
	admin.Patch("/reports/:id", s.UpdateReportStatus)
	admin.Get("/audit", s.GetAuditLog)
	admin.Get("/debug", s.GetDebugTrail)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}
