package repository

import (
	"context"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/cache"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"gorm.io/gorm"
)

// ThreadFilter narrows a thread listing. Zero values mean "any".
// VisibleOnly drops soft-deleted rows before the page is cut.
type ThreadFilter struct {
	UserID      uint
	Tag         string
	VisibleOnly bool
	Limit       int
	Offset      int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ThreadRepository defines persistence operations for threads.
// Listings include soft-deleted rows unless the filter sets VisibleOnly; callers still apply
// the visibility filter to whatever comes back.
type ThreadRepository interface {
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	List(ctx context.Context, filter ThreadFilter) ([]*models.Thread, error)
	Update(ctx context.Context, thread *models.Thread) error
	SoftDelete(ctx context.Context, id uint) error
}

type threadRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewThreadRepository returns a new ThreadRepository implementation.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db, log: observability.NewRepoLogger("threads")}
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translate(err, "Thread", thread.ID)
	}
	r.log.LogCreate(ctx, map[string]any{"thread_id": thread.ID, "user_id": thread.UserID})
	return nil
}

// GetByID returns the thread with its author, cache-aside for ThreadTTL.
func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	err := cache.Aside(ctx, cache.ThreadKey(id), &thread, cache.ThreadTTL, func() error {
		return translate(r.db.WithContext(ctx).Preload("User").First(&thread, id).Error, "Thread", id)
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) List(ctx context.Context, filter ThreadFilter) ([]*models.Thread, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)
	q := r.db.WithContext(ctx).Preload("User").Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.VisibleOnly {
		q = q.Where("is_deleted = ?", false)
	}
	if filter.Tag != "" {
		// tags is a JSON array of lowercase strings.
		q = q.Where(`tags LIKE ? ESCAPE '\'`, `%"`+likeEscaper.Replace(filter.Tag)+`"%`)
	}

	var threads []*models.Thread
	if err := q.Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return threads, nil
}

// Update writes the mutable columns only; the owner never changes.
func (r *threadRepository) Update(ctx context.Context, thread *models.Thread) error {
	res := r.db.WithContext(ctx).Model(&models.Thread{ID: thread.ID}).
		Select("title", "body", "tags", "is_locked").
		Updates(thread)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return translate(res.Error, "Thread", thread.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", thread.ID)
	}
	cache.InvalidateThread(ctx, thread.ID)
	r.log.LogUpdate(ctx, map[string]any{"thread_id": thread.ID})
	return nil
}

func (r *threadRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Thread{ID: id}).Update("is_deleted", true)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return translate(res.Error, "Thread", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", id)
	}
	cache.InvalidateThread(ctx, id)
	r.log.LogDelete(ctx, map[string]any{"thread_id": id, "soft": true})
	return nil
}
