package service

import (
	"context"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"
	"github.com/nocson47/beaconofknowledge/internal/validation"
	"github.com/nocson47/beaconofknowledge/internal/visibility"
)

type ReplyService struct {
	replyRepo repository.ReplyRepository
	threads   *ThreadService
	userRepo  repository.UserRepository
	audit     *AuditService
}

type CreateReplyInput struct {
	UserID   uint
	ThreadID uint
	ParentID *uint
	Body     string
}

func NewReplyService(replyRepo repository.ReplyRepository, threads *ThreadService, userRepo repository.UserRepository, audit *AuditService) *ReplyService {
	return &ReplyService{replyRepo: replyRepo, threads: threads, userRepo: userRepo, audit: audit}
}

// CreateReply requires a visible, unlocked thread. A parent must be a live reply of the same thread.
func (s *ReplyService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	actor, err := resolveActor(ctx, s.userRepo, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionCreate, authz.Resource{Kind: authz.KindReply, OwnerID: actorID(actor)}); err != nil {
		return nil, err
	}
	if err := validation.ValidateBody(in.Body); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	thread, err := s.threads.GetThread(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.IsLocked {
		return nil, models.NewInvalidOperationError("Thread is locked")
	}

	if in.ParentID != nil {
		parent, err := s.replyRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ThreadID != thread.ID || parent.IsDeleted {
			return nil, models.NewValidationError("parent_id must reference a reply in the same thread")
		}
	}

	reply := &models.Reply{ThreadID: thread.ID, UserID: actor.ID, ParentID: in.ParentID, Body: in.Body}
	if err := s.replyRepo.Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// ListReplies returns the visible replies of a visible thread in creation order.
func (s *ReplyService) ListReplies(ctx context.Context, threadID uint) ([]*models.Reply, error) {
	if _, err := s.threads.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	replies, err := s.replyRepo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return visibility.Visible(replies), nil
}

func (s *ReplyService) UpdateReply(ctx context.Context, userID, replyID uint, body string) (*models.Reply, error) {
	reply, _, err := s.loadForMutation(ctx, userID, replyID, authz.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateBody(body); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.replyRepo.UpdateBody(ctx, reply.ID, body); err != nil {
		return nil, err
	}
	reply.Body = body
	return reply, nil
}

func (s *ReplyService) DeleteReply(ctx context.Context, userID, replyID uint) error {
	reply, actor, err := s.loadForMutation(ctx, userID, replyID, authz.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.replyRepo.SoftDelete(ctx, reply.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, &actor.ID, "reply_deleted", "reply", reply.ID, map[string]any{
		"thread_id": reply.ThreadID,
		"owner_id":  reply.UserID,
	})
	return nil
}

func (s *ReplyService) loadForMutation(ctx context.Context, userID, replyID uint, action authz.Action) (*models.Reply, *authz.Actor, error) {
	actor, err := resolveActor(ctx, s.userRepo, userID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, models.NewUnauthenticatedError("Authentication required")
	}
	reply, err := s.replyRepo.GetByID(ctx, replyID)
	if err != nil {
		return nil, nil, err
	}
	if reply.IsDeleted {
		return nil, nil, models.NewNotFoundError("Reply", replyID)
	}
	if err := authz.Check(actor, action, authz.ReplyResource(reply)); err != nil {
		return nil, nil, err
	}
	return reply, actor, nil
}
