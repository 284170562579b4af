package models

import (
	"time"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User represents a forum account.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"not null" json:"-"`
	Role       Role      `gorm:"size:16;not null;default:member" json:"role"`
	Bio        string    `gorm:"type:text" json:"bio"`
	Avatar     string    `json:"avatar"`
	GithubURL  string    `json:"github_url,omitempty"`
	TwitterURL string    `json:"twitter_url,omitempty"`
	WebsiteURL string    `json:"website_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsAdmin reports whether the stored role grants admin rights.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicProfile is what other people may see of an account. It never carries the email.
type PublicProfile struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio,omitempty"`
	GithubURL  string    `json:"github_url,omitempty"`
	TwitterURL string    `json:"twitter_url,omitempty"`
	WebsiteURL string    `json:"website_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Public returns the profile view of u, or nil for a nil user.
func (u *User) Public() *PublicProfile {
	if u == nil {
		return nil
	}
	return &PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Avatar:     u.Avatar,
		Bio:        u.Bio,
		GithubURL:  u.GithubURL,
		TwitterURL: u.TwitterURL,
		WebsiteURL: u.WebsiteURL,
		CreatedAt:  u.CreatedAt,
	}
}

// PublicProfiles maps Public over users.
func PublicProfiles(users []*User) []*PublicProfile {
	out := make([]*PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
