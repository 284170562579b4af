package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"
	"github.com/nocson47/beaconofknowledge/internal/repository"
)

// DebugRecorder is the short-retention debug trail.
type DebugRecorder interface {
	Record(ctx context.Context, level, message string, fields map[string]any) (*models.DebugEntry, error)
	Recent(ctx context.Context, limit int) ([]*models.DebugEntry, error)
}

// AuditService writes the append-only audit log and the expiring debug trail.
// Neither sink is allowed to fail the operation that produced the record.
type AuditService struct {
	auditRepo repository.AuditRepository
	debug     DebugRecorder
	userRepo  repository.UserRepository
}

func NewAuditService(auditRepo repository.AuditRepository, debug DebugRecorder, userRepo repository.UserRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo, debug: debug, userRepo: userRepo}
}

// Record appends one audit entry. A nil receiver is a no-op.
func (s *AuditService) Record(ctx context.Context, actorID *uint, action, resource string, resourceID uint, details map[string]any) {
	if s == nil || s.auditRepo == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: strconv.FormatUint(uint64(resourceID), 10),
		Details:    details,
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		observability.LogSideEffectError(ctx, "audit_append", err, map[string]any{"action": action})
	}
}

// Debug writes to the debug trail. Entries expire on their own.
func (s *AuditService) Debug(ctx context.Context, level, message string, fields map[string]any) {
	if s == nil || s.debug == nil {
		return
	}
	if _, err := s.debug.Record(ctx, level, message, fields); err != nil {
		observability.GlobalLogger().WarnContext(ctx, "debug trail write failed",
			slog.String("message", message), slog.String("error", err.Error()))
	}
}

// ListAudit returns audit entries for moderators, optionally for one actor.
func (s *AuditService) ListAudit(ctx context.Context, requesterID uint, actorFilter *uint, limit, offset int) ([]*models.AuditLog, error) {
	if err := s.requireModerator(ctx, requesterID); err != nil {
		return nil, err
	}
	return s.auditRepo.List(ctx, actorFilter, limit, offset)
}

// RecentDebug returns surviving debug entries for moderators.
func (s *AuditService) RecentDebug(ctx context.Context, requesterID uint, limit int) ([]*models.DebugEntry, error) {
	if err := s.requireModerator(ctx, requesterID); err != nil {
		return nil, err
	}
	if s.debug == nil {
		return []*models.DebugEntry{}, nil
	}
	entries, err := s.debug.Recent(ctx, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (s *AuditService) requireModerator(ctx context.Context, requesterID uint) error {
	actor, err := resolveActor(ctx, s.userRepo, requesterID)
	if err != nil {
		return err
	}
	return authz.Check(actor, authz.ActionModerate, authz.Resource{Kind: authz.KindReport})
}
