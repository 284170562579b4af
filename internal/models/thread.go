package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Thread is a top-level discussion post.
type Thread struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"-"`
	Author    *PublicProfile `gorm:"-" json:"author,omitempty"`
	Title     string         `gorm:"size:300;not null" json:"title"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	Tags      []string       `gorm:"type:text;serializer:json" json:"tags"`
	IsLocked  bool           `gorm:"not null;default:false" json:"is_locked"`
	IsDeleted bool           `gorm:"not null;default:false;index" json:"is_deleted"`
	Upvotes   int            `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int            `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AfterFind exposes the preloaded author through its public profile only.
func (t *Thread) AfterFind(*gorm.DB) error {
	if t.User != nil {
		t.Author = t.User.Public()
	}
	return nil
}

// SoftDeleted reports whether the thread is hidden from listings.
func (t *Thread) SoftDeleted() bool { return t.IsDeleted }

// SearchText is the text the naive search scans.
func (t *Thread) SearchText() string {
	return t.Title + "\n" + t.Body + "\n" + strings.Join(t.Tags, " ")
}

// Reply is a response attached to a thread.
type Reply struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ThreadID  uint           `gorm:"not null;index" json:"thread_id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"-"`
	Author    *PublicProfile `gorm:"-" json:"author,omitempty"`
	ParentID  *uint          `gorm:"index" json:"parent_id,omitempty"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	IsDeleted bool           `gorm:"not null;default:false" json:"is_deleted"`
	Upvotes   int            `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int            `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (r *Reply) AfterFind(*gorm.DB) error {
	if r.User != nil {
		r.Author = r.User.Public()
	}
	return nil
}

// SoftDeleted reports whether the reply is hidden from listings.
func (r *Reply) SoftDeleted() bool { return r.IsDeleted }

// SearchText is the text the naive search scans.
func (r *Reply) SearchText() string { return r.Body }
