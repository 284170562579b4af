package repository

import (
	"context"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"gorm.io/gorm"
)

// AuditRepository is the append-only actor/action log.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, actorID *uint, limit, offset int) ([]*models.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns a new AuditRepository implementation.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns entries newest first, optionally for one actor.
func (r *auditRepository) List(ctx context.Context, actorID *uint, limit, offset int) ([]*models.AuditLog, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if actorID != nil {
		q = q.Where("actor_id = ?", *actorID)
	}
	var entries []*models.AuditLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}
