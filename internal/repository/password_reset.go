package repository

import (
	"context"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"gorm.io/gorm"
)

// PasswordResetRepository stores hashed one-time reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	GetByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id uint) error
	DeleteOthers(ctx context.Context, userID, keepID uint) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository returns a new PasswordResetRepository implementation.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	return translate(r.db.WithContext(ctx).Create(reset).Error, "PasswordReset", reset.ID)
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&reset).Error; err != nil {
		return nil, translate(err, "PasswordReset", "token")
	}
	return &reset, nil
}

// MarkUsed flips used only if it is still false; a second caller gets CONFLICT.
func (r *passwordResetRepository) MarkUsed(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.PasswordReset{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("token already used")
	}
	return nil
}

func (r *passwordResetRepository) DeleteOthers(ctx context.Context, userID, keepID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id <> ?", userID, keepID).
		Delete(&models.PasswordReset{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// PurgeExpired removes tokens that expired before the cutoff or were already used.
func (r *passwordResetRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR used = ?", before, true).
		Delete(&models.PasswordReset{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
