package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetType names the kind of content a vote applies to.
type TargetType string

const (
	TargetThread TargetType = "thread"
	TargetReply  TargetType = "reply"
)

// Valid reports whether t is a votable target.
func (t TargetType) Valid() bool {
	return t == TargetThread || t == TargetReply
}

// Vote directions.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Vote is the single live vote a user holds against one target.
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_vote_key,priority:1" json:"user_id"`
	TargetType TargetType `gorm:"size:16;not null;uniqueIndex:idx_vote_key,priority:2" json:"target_type"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_vote_key,priority:3;index" json:"target_id"`
	Value      int        `gorm:"not null" json:"value"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Tally is the aggregate of live votes on a target.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Score is upvotes minus downvotes.
func (t Tally) Score() int { return t.Upvotes - t.Downvotes }

// ParseVoteValue accepts "up", "down", "1" and "-1", case-insensitively.
func ParseVoteValue(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "1", "+1":
		return VoteUp, nil
	case "down", "-1":
		return VoteDown, nil
	default:
		return 0, fmt.Errorf("invalid vote value: %q", s)
	}
}

// VoteValueString renders a vote direction for API responses.
func VoteValueString(v int) string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return ""
	}
}
