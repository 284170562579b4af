package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome says what a cast did to the ledger.
type VoteOutcome string

const (
	VoteCreated   VoteOutcome = "created"
	VoteFlipped   VoteOutcome = "flipped"
	VoteUnchanged VoteOutcome = "unchanged"
)

// CastResult is the aggregate read back inside the casting transaction.
type CastResult struct {
	Tally   models.Tally
	Outcome VoteOutcome
}

// VoteRepository is the storage side of the voting ledger.
type VoteRepository interface {
	Cast(ctx context.Context, userID uint, targetType models.TargetType, targetID uint, value int) (CastResult, error)
	Tally(ctx context.Context, targetType models.TargetType, targetID uint) (models.Tally, error)
	Get(ctx context.Context, userID uint, targetType models.TargetType, targetID uint) (*models.Vote, error)
	Recount(ctx context.Context, targetType models.TargetType, targetID uint) (models.Tally, error)
}

type voteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewVoteRepository returns a new VoteRepository implementation.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, log: observability.NewRepoLogger("votes")}
}

func targetTable(t models.TargetType) (string, error) {
	switch t {
	case models.TargetThread:
		return "threads", nil
	case models.TargetReply:
		return "replies", nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown vote target type %q", t))
	}
}

func targetResource(t models.TargetType) string {
	if t == models.TargetReply {
		return "Reply"
	}
	return "Thread"
}

type targetRow struct {
	Upvotes   int
	Downvotes int
	IsDeleted bool
}

// Cast applies one vote inside a transaction that holds the target row lock, so concurrent
// casts on the same target serialize and neither counter loses an update.
// An identical repeat vote changes nothing.
func (r *voteRepository) Cast(ctx context.Context, userID uint, targetType models.TargetType, targetID uint, value int) (CastResult, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return CastResult{}, models.NewValidationError("vote value must be +1 or -1")
	}
	table, err := targetTable(targetType)
	if err != nil {
		return CastResult{}, err
	}
	defer observability.TrackQuery("cast", "votes")()

	var result CastResult
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target targetRow
		if err := tx.Table(table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("upvotes", "downvotes", "is_deleted").
			Where("id = ?", targetID).
			Take(&target).Error; err != nil {
			return err
		}
		if target.IsDeleted {
			return gorm.ErrRecordNotFound
		}

		var existing models.Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
			Take(&existing).Error

		var upDelta, downDelta int
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := models.Vote{UserID: userID, TargetType: targetType, TargetID: targetID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			result.Outcome = VoteCreated
			upDelta, downDelta = bucketDelta(value, 1)

		case err != nil:
			return err

		case existing.Value == value:
			result.Outcome = VoteUnchanged
			result.Tally = models.Tally{Upvotes: target.Upvotes, Downvotes: target.Downvotes}
			return nil

		default:
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return err
			}
			result.Outcome = VoteFlipped
			oldUp, oldDown := bucketDelta(existing.Value, -1)
			newUp, newDown := bucketDelta(value, 1)
			upDelta, downDelta = oldUp+newUp, oldDown+newDown
		}

		if err := tx.Table(table).Where("id = ?", targetID).Updates(map[string]any{
			"upvotes":   gorm.Expr("upvotes + ?", upDelta),
			"downvotes": gorm.Expr("downvotes + ?", downDelta),
		}).Error; err != nil {
			return err
		}

		return tx.Table(table).Select("upvotes", "downvotes").Where("id = ?", targetID).Take(&result.Tally).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "cast")
		return CastResult{}, translate(err, targetResource(targetType), targetID)
	}

	r.log.LogUpdate(ctx, map[string]any{
		"user_id":     userID,
		"target_type": targetType,
		"target_id":   targetID,
		"outcome":     result.Outcome,
	})
	return result, nil
}

// bucketDelta returns the (up, down) counter change for adding sign*1 of direction value.
func bucketDelta(value, sign int) (int, int) {
	if value == models.VoteUp {
		return sign, 0
	}
	return 0, sign
}

// Tally reads the stored aggregate of a visible target.
func (r *voteRepository) Tally(ctx context.Context, targetType models.TargetType, targetID uint) (models.Tally, error) {
	table, err := targetTable(targetType)
	if err != nil {
		return models.Tally{}, err
	}
	var row targetRow
	if err := r.db.WithContext(ctx).Table(table).
		Select("upvotes", "downvotes", "is_deleted").
		Where("id = ?", targetID).
		Take(&row).Error; err != nil {
		return models.Tally{}, translate(err, targetResource(targetType), targetID)
	}
	if row.IsDeleted {
		return models.Tally{}, models.NewNotFoundError(targetResource(targetType), targetID)
	}
	return models.Tally{Upvotes: row.Upvotes, Downvotes: row.Downvotes}, nil
}

// Get returns the voter's live vote, or nil when there is none.
func (r *voteRepository) Get(ctx context.Context, userID uint, targetType models.TargetType, targetID uint) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &vote, nil
}

// Recount derives the aggregate from the vote rows themselves.
func (r *voteRepository) Recount(ctx context.Context, targetType models.TargetType, targetID uint) (models.Tally, error) {
	var rows []struct {
		Value int
		N     int
	}
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Select("value, COUNT(*) AS n").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Group("value").
		Scan(&rows).Error
	if err != nil {
		return models.Tally{}, models.NewInternalError(err)
	}
	var t models.Tally
	for _, row := range rows {
		switch row.Value {
		case models.VoteUp:
			t.Upvotes = row.N
		case models.VoteDown:
			t.Downvotes = row.N
		}
	}
	return t, nil
}
