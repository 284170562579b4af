package authz

import (
	"errors"
	"testing"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = &Actor{ID: 1, Role: models.RoleMember}
	other  = &Actor{ID: 2, Role: models.RoleMember}
	admin  = &Actor{ID: 9, Role: models.RoleAdmin}
	thread = Resource{Kind: KindThread, ID: 10, OwnerID: 1}
)

func TestEvaluate_Table(t *testing.T) {
	deleted := thread
	deleted.Deleted = true

	tests := []struct {
		name    string
		actor   *Actor
		action  Action
		res     Resource
		allowed bool
		errKind error
	}{
		{"anonymous view live", nil, ActionView, thread, true, nil},
		{"anonymous view deleted", nil, ActionView, deleted, false, models.ErrUnauthenticated},
		{"anonymous delete", nil, ActionDelete, thread, false, models.ErrUnauthenticated},
		{"anonymous edit", nil, ActionEdit, thread, false, models.ErrUnauthenticated},
		{"anonymous vote", nil, ActionVote, thread, false, models.ErrUnauthenticated},
		{"anonymous report", nil, ActionReport, thread, false, models.ErrUnauthenticated},
		{"admin deletes anything", admin, ActionDelete, thread, true, nil},
		{"admin moderates", admin, ActionModerate, Resource{Kind: KindReport}, true, nil},
		{"admin reports own content", admin, ActionReport, Resource{Kind: KindThread, OwnerID: 9}, true, nil},
		{"owner edits", owner, ActionEdit, thread, true, nil},
		{"owner deletes", owner, ActionDelete, thread, true, nil},
		{"non-owner edits", other, ActionEdit, thread, false, models.ErrForbidden},
		{"non-owner deletes", other, ActionDelete, thread, false, models.ErrForbidden},
		{"owner reports self", owner, ActionReport, thread, false, models.ErrInvalidOperation},
		{"non-owner reports", other, ActionReport, thread, true, nil},
		{"member views live", other, ActionView, thread, true, nil},
		{"member views deleted", other, ActionView, deleted, false, models.ErrForbidden},
		{"owner views deleted", owner, ActionView, deleted, false, models.ErrForbidden},
		{"member votes", other, ActionVote, thread, true, nil},
		{"member creates", other, ActionCreate, Resource{Kind: KindThread}, true, nil},
		{"member moderates", other, ActionModerate, Resource{Kind: KindReport}, false, models.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanAct(tt.actor, tt.action, tt.res))

			err := Check(tt.actor, tt.action, tt.res)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.errKind), "got %v", err)
		})
	}
}

func TestEvaluate_AnonymousNeverDeletes(t *testing.T) {
	for _, kind := range []ResourceKind{KindThread, KindReply, KindUser, KindReport} {
		for _, ownerID := range []uint{0, 1, 42} {
			res := Resource{Kind: kind, OwnerID: ownerID}
			assert.False(t, CanAct(nil, ActionDelete, res))
		}
	}
}

func TestEvaluate_OwnerVersusStranger(t *testing.T) {
	for id := uint(1); id <= 20; id++ {
		mine := Resource{Kind: KindReply, OwnerID: id}
		me := &Actor{ID: id, Role: models.RoleMember}
		stranger := &Actor{ID: id + 100, Role: models.RoleMember}

		assert.True(t, CanAct(me, ActionDelete, mine))
		assert.False(t, CanAct(stranger, ActionDelete, mine))
	}
}

func TestAffordances(t *testing.T) {
	assert.Equal(t, []Action{ActionView}, Affordances(nil, thread))
	assert.Equal(t, []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionVote}, Affordances(owner, thread))
	assert.Equal(t, []Action{ActionView, ActionCreate, ActionReport, ActionVote}, Affordances(other, thread))
	assert.Len(t, Affordances(admin, thread), len(AllActions))

	set := AffordanceSet(other, thread)
	assert.True(t, set[ActionReport])
	assert.False(t, set[ActionDelete])
}

func TestActorFromUser(t *testing.T) {
	assert.Nil(t, ActorFromUser(nil))
	a := ActorFromUser(&models.User{ID: 3, Role: models.RoleAdmin})
	assert.True(t, a.IsAdmin())
	assert.Equal(t, uint(3), a.ID)
}
