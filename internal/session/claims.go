package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken means the token is not a decodable compact JWT.
	ErrMalformedToken = errors.New("session: malformed token")
	// ErrMissingClaim means a required claim is absent or has the wrong type.
	ErrMissingClaim = errors.New("session: missing claim")
)

// Claims are the identity assertions read from a bearer token without verifying its signature.
// They drive display decisions only; the server re-checks the stored role on every mutation.
type Claims struct {
	Subject   string
	Role      models.Role
	Username  string
	ExpiresAt time.Time
}

// Expired reports whether the claims are past their expiry at now.
func (c Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// DecodeClaims reads sub, role and exp from the payload segment of token.
func DecodeClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	role, _ := mc["role"].(string)
	if role == "" {
		return Claims{}, fmt.Errorf("%w: role", ErrMissingClaim)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}

	username, _ := mc["username"].(string)
	return Claims{
		Subject:   sub,
		Role:      models.Role(role),
		Username:  username,
		ExpiresAt: exp.Time,
	}, nil
}
