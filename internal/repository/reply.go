package repository

import (
	"context"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"gorm.io/gorm"
)

// ReplyRepository defines persistence operations for replies.
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	GetByID(ctx context.Context, id uint) (*models.Reply, error)
	ListByThread(ctx context.Context, threadID uint) ([]*models.Reply, error)
	UpdateBody(ctx context.Context, id uint, body string) error
	SoftDelete(ctx context.Context, id uint) error
}

type replyRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReplyRepository returns a new ReplyRepository implementation.
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db, log: observability.NewRepoLogger("replies")}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Create(reply).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err, "Reply", reply.ID)
	}
	r.log.LogCreate(ctx, map[string]any{"reply_id": reply.ID, "thread_id": reply.ThreadID})
	return nil
}

func (r *replyRepository) GetByID(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).Preload("User").First(&reply, id).Error; err != nil {
		return nil, translate(err, "Reply", id)
	}
	return &reply, nil
}

// ListByThread returns every reply of the thread in creation order, deleted ones included.
func (r *replyRepository) ListByThread(ctx context.Context, threadID uint) ([]*models.Reply, error) {
	var replies []*models.Reply
	err := r.db.WithContext(ctx).Preload("User").
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

func (r *replyRepository) UpdateBody(ctx context.Context, id uint, body string) error {
	res := r.db.WithContext(ctx).Model(&models.Reply{ID: id}).Update("body", body)
	if res.Error != nil {
		return translate(res.Error, "Reply", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"reply_id": id})
	return nil
}

func (r *replyRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Reply{ID: id}).Update("is_deleted", true)
	if res.Error != nil {
		return translate(res.Error, "Reply", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", id)
	}
	r.log.LogDelete(ctx, map[string]any{"reply_id": id, "soft": true})
	return nil
}
