// Package authz holds the single decision table for who may do what to which resource.
// It performs no I/O: callers resolve the actor's stored role and the resource owner first.
package authz

import (
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"
)

// Action is an operation an actor attempts on a resource.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionReport   Action = "report"
	ActionVote     Action = "vote"
	ActionModerate Action = "moderate"
)

// AllActions is the evaluation order used by Affordances.
var AllActions = []Action{
	ActionView, ActionCreate, ActionEdit, ActionDelete, ActionReport, ActionVote, ActionModerate,
}

// ResourceKind names what a Resource describes.
type ResourceKind string

const (
	KindThread ResourceKind = "thread"
	KindReply  ResourceKind = "reply"
	KindUser   ResourceKind = "user"
	KindReport ResourceKind = "report"
)

// Actor is an authenticated identity. A nil *Actor is anonymous.
type Actor struct {
	ID   uint
	Role models.Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

// ActorFromUser builds an actor from a stored user record.
func ActorFromUser(u *models.User) *Actor {
	if u == nil {
		return nil
	}
	return &Actor{ID: u.ID, Role: u.Role}
}

// Resource is the target of an action. For users, OwnerID is the user's own id.
type Resource struct {
	Kind    ResourceKind
	ID      uint
	OwnerID uint
	Deleted bool
}

// ThreadResource describes a thread.
func ThreadResource(t *models.Thread) Resource {
	return Resource{Kind: KindThread, ID: t.ID, OwnerID: t.UserID, Deleted: t.IsDeleted}
}

// ReplyResource describes a reply.
func ReplyResource(r *models.Reply) Resource {
	return Resource{Kind: KindReply, ID: r.ID, OwnerID: r.UserID, Deleted: r.IsDeleted}
}

// UserResource describes a user profile.
func UserResource(u *models.User) Resource {
	return Resource{Kind: KindUser, ID: u.ID, OwnerID: u.ID}
}

// Decision is the outcome of one evaluation. Err is nil when Allowed.
type Decision struct {
	Allowed bool
	Err     *models.AppError
}

func allow() Decision { return Decision{Allowed: true} }

func deny(err *models.AppError) Decision { return Decision{Err: err} }

// Evaluate runs the ordered rules; the first matching rule decides.
func Evaluate(actor *Actor, action Action, res Resource) Decision {
	// Anonymous callers may only look at live content.
	if actor == nil {
		if action == ActionView && !res.Deleted {
			return allow()
		}
		return deny(models.NewUnauthenticatedError("Authentication required"))
	}

	if actor.IsAdmin() {
		return allow()
	}

	owner := actor.ID == res.OwnerID

	switch action {
	case ActionEdit, ActionDelete:
		if owner {
			return allow()
		}
	case ActionReport:
		if owner {
			return deny(models.NewInvalidOperationError("You cannot report your own content"))
		}
		return allow()
	case ActionView:
		if !res.Deleted {
			return allow()
		}
	case ActionVote, ActionCreate:
		return allow()
	}

	return deny(models.NewForbiddenError("You are not allowed to " + string(action) + " this " + kindLabel(res.Kind)))
}

// CanAct reports whether actor may perform action on res.
func CanAct(actor *Actor, action Action, res Resource) bool {
	return Evaluate(actor, action, res).Allowed
}

// Check is CanAct for enforcement paths: it returns the typed rejection.
func Check(actor *Actor, action Action, res Resource) error {
	d := Evaluate(actor, action, res)
	if d.Allowed {
		return nil
	}
	observability.AuthzDenials.WithLabelValues(string(action)).Inc()
	return d.Err
}

// Affordances lists the actions actor may take on res, for building UI controls.
func Affordances(actor *Actor, res Resource) []Action {
	out := make([]Action, 0, len(AllActions))
	for _, a := range AllActions {
		if CanAct(actor, a, res) {
			out = append(out, a)
		}
	}
	return out
}

// AffordanceSet is Affordances keyed by action name, for JSON responses.
func AffordanceSet(actor *Actor, res Resource) map[Action]bool {
	set := make(map[Action]bool, len(AllActions))
	for _, a := range AllActions {
		set[a] = CanAct(actor, a, res)
	}
	return set
}

func kindLabel(k ResourceKind) string {
	if k == "" {
		return "resource"
	}
	return string(k)
}
