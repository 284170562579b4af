package service

import (
	"context"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/validation"
	"github.com/nocson47/beaconofknowledge/internal/visibility"
)

// searchWindow bounds how many recent live threads the naive search scans.
const searchWindow = 100

type ThreadService struct {
	threadRepo repository.ThreadRepository
	userRepo   repository.UserRepository
	audit      *AuditService
}

type CreateThreadInput struct {
	UserID uint
	Title  string
	Body   string
	Tags   []string
}

// UpdateThreadInput carries optional edits; nil fields are left alone.
type UpdateThreadInput struct {
	UserID   uint
	ThreadID uint
	Title    *string
	Body     *string
	Tags     []string
	IsLocked *bool
}

type ListThreadsInput struct {
	AuthorID uint
	Tag      string
	Limit    int
	Offset   int
}

// ThreadView is a thread plus what the caller may do with it.
type ThreadView struct {
	*models.Thread
	Score   int                   `json:"score"`
	Actions map[authz.Action]bool `json:"actions"`
}

func NewThreadService(threadRepo repository.ThreadRepository, userRepo repository.UserRepository, audit *AuditService) *ThreadService {
	return &ThreadService{threadRepo: threadRepo, userRepo: userRepo, audit: audit}
}

func (s *ThreadService) CreateThread(ctx context.Context, in CreateThreadInput) (*models.Thread, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThreadService", "CreateThread")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	actor, err := resolveActor(ctx, s.userRepo, in.UserID)
	if err != nil {
		return nil, err
	}
	if err = authz.Check(actor, authz.ActionCreate, authz.Resource{Kind: authz.KindThread, OwnerID: actorID(actor)}); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if verr := validation.ValidateThread(title, in.Body); verr != nil {
		err = models.NewValidationError(verr.Error())
		return nil, err
	}
	tags, terr := validation.NormalizeTags(in.Tags)
	if terr != nil {
		err = models.NewValidationError(terr.Error())
		return nil, err
	}

	thread := &models.Thread{UserID: actor.ID, Title: title, Body: in.Body, Tags: tags}
	if err = s.threadRepo.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread hides soft-deleted threads from everyone, admins included.
func (s *ThreadService) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	thread, err := s.threadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if thread.IsDeleted {
		return nil, models.NewNotFoundError("Thread", id)
	}
	return thread, nil
}

// GetThreadView is GetThread plus the caller's affordances.
func (s *ThreadService) GetThreadView(ctx context.Context, userID, id uint) (*ThreadView, error) {
	thread, err := s.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := resolveActor(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	return &ThreadView{
		Thread:  thread,
		Score:   thread.Upvotes - thread.Downvotes,
		Actions: authz.AffordanceSet(actor, authz.ThreadResource(thread)),
	}, nil
}

// ListThreads returns the visible threads of one page, newest first.
func (s *ThreadService) ListThreads(ctx context.Context, in ListThreadsInput) ([]*models.Thread, error) {
	filter := repository.ThreadFilter{
		UserID:      in.AuthorID,
		VisibleOnly: true,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if strings.TrimSpace(in.Tag) != "" {
		tags, err := validation.NormalizeTags([]string{in.Tag})
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		filter.Tag = tags[0]
	}
	threads, err := s.threadRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return visibility.Visible(threads), nil
}

// SearchThreads scans the most recent threads for query. Deleted threads are dropped first.
func (s *ThreadService) SearchThreads(ctx context.Context, query string, limit int) ([]*models.Thread, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	threads, err := s.threadRepo.List(ctx, repository.ThreadFilter{VisibleOnly: true, Limit: searchWindow})
	if err != nil {
		return nil, err
	}
	hits := visibility.Search(threads, query)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *ThreadService) UpdateThread(ctx context.Context, in UpdateThreadInput) (*models.Thread, error) {
	thread, actor, err := s.loadForMutation(ctx, in.UserID, in.ThreadID, authz.ActionEdit)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		thread.Title = strings.TrimSpace(*in.Title)
	}
	if in.Body != nil {
		thread.Body = *in.Body
	}
	if err := validation.ValidateThread(thread.Title, thread.Body); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(in.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		thread.Tags = tags
	}
	if in.IsLocked != nil {
		thread.IsLocked = *in.IsLocked
	}

	if err := s.threadRepo.Update(ctx, thread); err != nil {
		return nil, err
	}
	if actor.ID != thread.UserID {
		s.audit.Record(ctx, &actor.ID, "thread_moderated_edit", "thread", thread.ID, nil)
	}
	return thread, nil
}

func (s *ThreadService) DeleteThread(ctx context.Context, userID, threadID uint) error {
	thread, actor, err := s.loadForMutation(ctx, userID, threadID, authz.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.threadRepo.SoftDelete(ctx, thread.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, &actor.ID, "thread_deleted", "thread", thread.ID, map[string]any{
		"owner_id": thread.UserID,
	})
	return nil
}

func (s *ThreadService) loadForMutation(ctx context.Context, userID, threadID uint, action authz.Action) (*models.Thread, *authz.Actor, error) {
	actor, err := resolveActor(ctx, s.userRepo, userID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, models.NewUnauthenticatedError("Authentication required")
	}
	thread, err := s.GetThread(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Check(actor, action, authz.ThreadResource(thread)); err != nil {
		return nil, nil, err
	}
	return thread, actor, nil
}
