package repository

import (
	"context"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"gorm.io/gorm"
)

// ReportFilter narrows the moderation queue. Empty values mean "any".
type ReportFilter struct {
	Kind   models.ReportKind
	Status models.ReportStatus
	Limit  int
	Offset int
}

// ReportRepository is the append-only store behind the moderation queue.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]*models.Report, error)
	SetStatus(ctx context.Context, id uint, status models.ReportStatus, by *uint, at *time.Time) error
	CountOpen(ctx context.Context) (int64, error)
}

type reportRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReportRepository returns a new ReportRepository implementation.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, log: observability.NewRepoLogger("reports")}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err, "Report", report.ID)
	}
	r.log.LogCreate(ctx, map[string]any{"report_id": report.ID, "kind": report.Kind})
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, translate(err, "Report", id)
	}
	return &report, nil
}

// List returns reports newest first.
func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]*models.Report, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var reports []*models.Report
	if err := q.Find(&reports).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

// SetStatus is the only mutation a report accepts after creation.
func (r *reportRepository) SetStatus(ctx context.Context, id uint, status models.ReportStatus, by *uint, at *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Report{ID: id}).
		Select("status", "resolved_by", "resolved_at").
		Updates(&models.Report{Status: status, ResolvedBy: by, ResolvedAt: at})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return translate(res.Error, "Report", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Report", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"report_id": id, "status": status})
	return nil
}

func (r *reportRepository) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).Where("status = ?", models.ReportStatusOpen).Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
