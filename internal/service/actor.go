// Package service implements the forum use cases on top of the repositories.
// Every mutation resolves the caller's stored role and asks the authz guard before
// touching storage; token claims never decide a server-side check.
package service

import (
	"context"
	"errors"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"
)

// resolveActor maps a request's user id onto an authz actor. Zero means anonymous.
// A token for a user that no longer exists is treated as unauthenticated.
func resolveActor(ctx context.Context, users repository.UserRepository, userID uint) (*authz.Actor, error) {
	if userID == 0 {
		return nil, nil
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewUnauthenticatedError("Account no longer exists")
		}
		return nil, err
	}
	return authz.ActorFromUser(user), nil
}

func actorID(a *authz.Actor) uint {
	if a == nil {
		return 0
	}
	return a.ID
}
