// Package session holds the client-side authenticated identity and broadcasts changes to it.
//
// A Store owns zero or one Session. Establish, Refresh and Clear each emit a typed Event to every
// subscriber in the order the changes were applied. Requests are tagged with a monotonic sequence
// number so a slow response cannot overwrite state set by a newer request.
package session

import (
	"strconv"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
)

// Identity is the user a session speaks for.
type Identity struct {
	ID       uint        `json:"id" yaml:"id"`
	Username string      `json:"username" yaml:"username"`
	Email    string      `json:"email,omitempty" yaml:"email,omitempty"`
	Role     models.Role `json:"role" yaml:"role"`
}

// Source records where the identity of a session came from.
type Source string

const (
	SourceAuthoritative Source = "authoritative"
	SourceTokenClaims   Source = "token_claims"
)

// Session is a bearer token bound to an identity.
type Session struct {
	Token     string    `json:"token" yaml:"token"`
	Identity  Identity  `json:"identity" yaml:"identity"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	Source    Source    `json:"source" yaml:"source"`
}

// IsAdmin reports whether admin-only controls should be shown. Never use it for enforcement.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Identity.Role == models.RoleAdmin
}

// Degraded reports whether the identity was decoded from the token instead of fetched.
func (s *Session) Degraded() bool {
	return s != nil && s.Source == SourceTokenClaims
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// EventKind names a session state transition.
type EventKind string

const (
	LoggedIn  EventKind = "logged_in"
	LoggedOut EventKind = "logged_out"
	Refreshed EventKind = "refreshed"
)

// Event is delivered to subscribers on every state transition. Session is nil for LoggedOut.
type Event struct {
	Kind    EventKind
	Session *Session
	Seq     uint64
}

func identityFromClaims(c Claims, prev Identity) (Identity, bool) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return Identity{}, false
	}
	ident := Identity{
		ID:       uint(id),
		Username: c.Username,
		Role:     c.Role,
	}
	if prev.ID == ident.ID {
		ident.Email = prev.Email
		if ident.Username == "" {
			ident.Username = prev.Username
		}
	}
	return ident, true
}
