package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/notifications"
	"github.com/nocson47/beaconofknowledge/internal/observability"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/validation"

	"golang.org/x/time/rate"
)

// Per-reporter filing budget: a burst of 5, then one report per minute. A limiter that
// has refilled is indistinguishable from a new one, so sweeps drop it.
const (
	reportBurst         = 5
	reportInterval      = time.Minute
	reportSweepInterval = reportBurst * reportInterval
)

// ModerationPublisher fans report events out to moderator consoles.
type ModerationPublisher interface {
	PublishModeration(ctx context.Context, ev notifications.ModerationEvent) error
}

type ReportService struct {
	reportRepo repository.ReportRepository
	threadRepo repository.ThreadRepository
	userRepo   repository.UserRepository
	audit      *AuditService
	publisher  ModerationPublisher
	now        func() time.Time

	mu        sync.Mutex
	limiters  map[uint]*rate.Limiter
	lastSweep time.Time
}

type FileReportInput struct {
	ReporterID uint
	Kind       string
	TargetID   uint
	Reason     string
}

type ListReportsInput struct {
	RequesterID uint
	Kind        string
	Status      string
	Limit       int
	Offset      int
}

func NewReportService(
	reportRepo repository.ReportRepository,
	threadRepo repository.ThreadRepository,
	userRepo repository.UserRepository,
	audit *AuditService,
	publisher ModerationPublisher,
) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		threadRepo: threadRepo,
		userRepo:   userRepo,
		audit:      audit,
		publisher:  publisher,
		now:        time.Now,
		limiters:   make(map[uint]*rate.Limiter),
	}
}

// FileReport appends an open report. Reporting yourself or your own thread is rejected.
func (s *ReportService) FileReport(ctx context.Context, in FileReportInput) (*models.Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReportService", "FileReport",
		observability.TargetAttributes("report", in.Kind, in.TargetID)...)
	report, err := s.fileReport(ctx, in)
	observability.EndSpan(span, err)
	return report, err
}

func (s *ReportService) fileReport(ctx context.Context, in FileReportInput) (*models.Report, error) {
	actor, err := resolveActor(ctx, s.userRepo, in.ReporterID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}

	kind := models.ReportKind(strings.ToLower(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return nil, models.NewValidationError("kind must be thread or user")
	}
	reason := strings.TrimSpace(in.Reason)
	if err := validation.ValidateReason(reason); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	target, err := s.resolveTarget(ctx, kind, in.TargetID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionReport, target); err != nil {
		return nil, err
	}
	if !s.allow(actor.ID) {
		return nil, models.NewRateLimitedError("Too many reports, try again later")
	}

	report := &models.Report{
		Kind:          kind,
		TargetID:      in.TargetID,
		TargetOwnerID: target.OwnerID,
		ReporterID:    actor.ID,
		Reason:        reason,
		Status:        models.ReportStatusOpen,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	observability.ReportsFiled.WithLabelValues(string(kind)).Inc()
	s.audit.Record(ctx, &actor.ID, "report_created", "report", report.ID, map[string]any{
		"kind":      kind,
		"target_id": in.TargetID,
	})
	s.publish(ctx, notifications.EventReportCreated, report, actor.ID)
	return report, nil
}

// resolveTarget finds the owner of the reported thread or user. Deleted threads are gone.
func (s *ReportService) resolveTarget(ctx context.Context, kind models.ReportKind, id uint) (authz.Resource, error) {
	switch kind {
	case models.ReportKindThread:
		thread, err := s.threadRepo.GetByID(ctx, id)
		if err != nil {
			return authz.Resource{}, err
		}
		if thread.IsDeleted {
			return authz.Resource{}, models.NewNotFoundError("Thread", id)
		}
		return authz.ThreadResource(thread), nil
	default:
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return authz.Resource{}, err
		}
		return authz.UserResource(user), nil
	}
}

func (s *ReportService) allow(reporterID uint) bool {
	now := s.now()
	s.mu.Lock()
	if now.Sub(s.lastSweep) >= reportSweepInterval {
		s.sweepLimiters(now)
	}
	lim, ok := s.limiters[reporterID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(reportInterval), reportBurst)
		s.limiters[reporterID] = lim
	}
	s.mu.Unlock()
	return lim.AllowN(now, 1)
}

// sweepLimiters forgets reporters whose budget is full again. Callers hold s.mu.
func (s *ReportService) sweepLimiters(now time.Time) {
	for id, lim := range s.limiters {
		if lim.TokensAt(now) >= reportBurst {
			delete(s.limiters, id)
		}
	}
	s.lastSweep = now
}

// ListReports is the moderator queue, newest first.
func (s *ReportService) ListReports(ctx context.Context, in ListReportsInput) ([]*models.Report, error) {
	if _, err := s.requireModerator(ctx, in.RequesterID); err != nil {
		return nil, err
	}

	filter := repository.ReportFilter{Limit: in.Limit, Offset: in.Offset}
	if in.Kind != "" {
		filter.Kind = models.ReportKind(strings.ToLower(in.Kind))
		if !filter.Kind.Valid() {
			return nil, models.NewValidationError("kind must be thread or user")
		}
	}
	if in.Status != "" {
		filter.Status = models.ReportStatus(strings.ToLower(in.Status))
		if !filter.Status.Valid() {
			return nil, models.NewValidationError("status must be open, resolved or dismissed")
		}
	}
	return s.reportRepo.List(ctx, filter)
}

// OpenCount is the size of the untriaged queue, for moderators.
func (s *ReportService) OpenCount(ctx context.Context, requesterID uint) (int64, error) {
	if _, err := s.requireModerator(ctx, requesterID); err != nil {
		return 0, err
	}
	return s.reportRepo.CountOpen(ctx)
}

// UpdateStatus moves a report between open and a closed state.
// Closing stamps resolved_by/resolved_at; reopening clears them.
func (s *ReportService) UpdateStatus(ctx context.Context, requesterID, reportID uint, raw string) (*models.Report, error) {
	actor, err := s.requireModerator(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	next := models.ReportStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !next.Valid() {
		return nil, models.NewValidationError("status must be open, resolved or dismissed")
	}

	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(report.Status, next) {
		return nil, models.NewInvalidOperationError("Cannot move report from " + string(report.Status) + " to " + string(next))
	}

	var by *uint
	var at *time.Time
	if next != models.ReportStatusOpen {
		now := s.now().UTC()
		by, at = &actor.ID, &now
	}
	if err := s.reportRepo.SetStatus(ctx, reportID, next, by, at); err != nil {
		return nil, err
	}

	prev := report.Status
	report.Status, report.ResolvedBy, report.ResolvedAt = next, by, at

	observability.ReportsResolved.WithLabelValues(string(next)).Inc()
	s.audit.Record(ctx, &actor.ID, "report_update", "report", reportID, map[string]any{
		"from": prev,
		"to":   next,
	})
	s.publish(ctx, notifications.EventReportUpdated, report, actor.ID)
	return report, nil
}

func transitionAllowed(from, to models.ReportStatus) bool {
	if from == models.ReportStatusOpen {
		return to == models.ReportStatusResolved || to == models.ReportStatusDismissed
	}
	return to == models.ReportStatusOpen
}

func (s *ReportService) requireModerator(ctx context.Context, requesterID uint) (*authz.Actor, error) {
	actor, err := resolveActor(ctx, s.userRepo, requesterID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionModerate, authz.Resource{Kind: authz.KindReport}); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *ReportService) publish(ctx context.Context, eventType string, r *models.Report, actorID uint) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishModeration(ctx, notifications.ModerationEvent{
		Type:     eventType,
		ReportID: r.ID,
		Kind:     string(r.Kind),
		TargetID: r.TargetID,
		Status:   string(r.Status),
		ActorID:  actorID,
	})
	if err != nil {
		observability.LogSideEffectError(ctx, "publish_moderation_event", err, map[string]any{"report_id": r.ID})
	}
}
