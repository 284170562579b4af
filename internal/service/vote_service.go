package service

import (
	"context"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/cache"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"
	"github.com/nocson47/beaconofknowledge/internal/repository"
)

type VoteService struct {
	voteRepo repository.VoteRepository
	userRepo repository.UserRepository
}

type CastVoteInput struct {
	UserID     uint
	TargetType string
	TargetID   uint
	Value      string
}

// VoteResult is the aggregate after a cast plus the caller's standing vote.
type VoteResult struct {
	TargetType models.TargetType `json:"target_type"`
	TargetID   uint              `json:"target_id"`
	Upvotes    int               `json:"upvotes"`
	Downvotes  int               `json:"downvotes"`
	Score      int               `json:"score"`
	MyVote     string            `json:"my_vote,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
}

func NewVoteService(voteRepo repository.VoteRepository, userRepo repository.UserRepository) *VoteService {
	return &VoteService{voteRepo: voteRepo, userRepo: userRepo}
}

func parseTarget(raw string) (models.TargetType, error) {
	t := models.TargetType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", models.NewValidationError("target_type must be thread or reply")
	}
	return t, nil
}

// CastVote records the caller's single live vote on a target. Repeating the same
// direction changes nothing; the opposite direction moves one unit between buckets.
func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (*VoteResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "VoteService", "CastVote",
		observability.TargetAttributes("vote", in.TargetType, in.TargetID)...)
	result, err := s.castVote(ctx, in)
	observability.EndSpan(span, err)
	return result, err
}

func (s *VoteService) castVote(ctx context.Context, in CastVoteInput) (*VoteResult, error) {
	actor, err := resolveActor(ctx, s.userRepo, in.UserID)
	if err != nil {
		return nil, err
	}
	targetType, err := parseTarget(in.TargetType)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(actor, authz.ActionVote, authz.Resource{Kind: authz.ResourceKind(targetType), ID: in.TargetID}); err != nil {
		return nil, err
	}
	value, err := models.ParseVoteValue(in.Value)
	if err != nil {
		return nil, models.NewValidationError("value must be up, down, 1 or -1")
	}

	res, err := s.voteRepo.Cast(ctx, actor.ID, targetType, in.TargetID, value)
	if err != nil {
		return nil, err
	}

	if targetType == models.TargetThread {
		cache.InvalidateSettled(ctx, cache.ThreadKey(in.TargetID))
	}
	observability.VotesCast.WithLabelValues(string(targetType), string(res.Outcome)).Inc()

	return &VoteResult{
		TargetType: targetType,
		TargetID:   in.TargetID,
		Upvotes:    res.Tally.Upvotes,
		Downvotes:  res.Tally.Downvotes,
		Score:      res.Tally.Score(),
		MyVote:     models.VoteValueString(value),
		Outcome:    string(res.Outcome),
	}, nil
}

// Counts returns the stored aggregate. It always reads the row so a vote is visible to the
// next read. userID, when set, fills MyVote.
func (s *VoteService) Counts(ctx context.Context, userID uint, rawType string, targetID uint) (*VoteResult, error) {
	targetType, err := parseTarget(rawType)
	if err != nil {
		return nil, err
	}

	tally, err := s.voteRepo.Tally(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}

	out := &VoteResult{
		TargetType: targetType,
		TargetID:   targetID,
		Upvotes:    tally.Upvotes,
		Downvotes:  tally.Downvotes,
		Score:      tally.Score(),
	}
	if userID != 0 {
		out.MyVote, err = s.MyVote(ctx, userID, rawType, targetID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MyVote returns "up", "down" or "" for the caller's live vote.
func (s *VoteService) MyVote(ctx context.Context, userID uint, rawType string, targetID uint) (string, error) {
	targetType, err := parseTarget(rawType)
	if err != nil {
		return "", err
	}
	vote, err := s.voteRepo.Get(ctx, userID, targetType, targetID)
	if err != nil || vote == nil {
		return "", err
	}
	return models.VoteValueString(vote.Value), nil
}
