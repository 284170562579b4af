// Package middleware provides request logging, authentication, rate limiting, tracing and metrics
// middleware for the Fiber application.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "beacon-api"
	TokenAudience = "beacon-client"

	// LocalsClaims is the fiber.Locals key holding *TokenClaims after authentication.
	LocalsClaims = "tokenClaims"
)

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    uint
	Username  string
	Role      models.Role
	JTI       string
	ExpiresAt time.Time
}

// RevocationChecker reports whether a token id has been revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a token manager. A zero ttl falls back to 24 hours.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for the user. The role claim is a display hint; handlers re-read the role
// from storage before privileged actions.
func (t *Tokens) Issue(userID uint, username string, role models.Role) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, errors.New("JWT secret not configured")
	}

	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"role":     string(role),
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (t *Tokens) Parse(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("missing subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("missing expiry claim")
	}

	out := &TokenClaims{
		UserID:    uint(userID),
		ExpiresAt: exp.Time,
	}
	out.Username, _ = claims["username"].(string)
	if role, ok := claims["role"].(string); ok {
		out.Role = models.Role(role)
	}
	out.JTI, _ = claims["jti"].(string)
	return out, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// AuthRequired rejects requests without a valid, unrevoked bearer token and stores the user id
// in c.Locals("userID").
func AuthRequired(tokens *Tokens, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c)
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Authorization required"))
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Invalid or expired token"))
		}

		if revoked != nil && claims.JTI != "" {
			isRevoked, err := revoked.IsRevoked(c.UserContext(), claims.JTI)
			if err == nil && isRevoked {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("Token has been revoked"))
			}
		}

		setIdentity(c, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and never rejects.
func OptionalAuth(tokens *Tokens, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c)
		if raw == "" {
			return c.Next()
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			return c.Next()
		}
		if revoked != nil && claims.JTI != "" {
			if isRevoked, err := revoked.IsRevoked(c.UserContext(), claims.JTI); err == nil && isRevoked {
				return c.Next()
			}
		}
		setIdentity(c, claims)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, claims *TokenClaims) {
	c.Locals("userID", claims.UserID)
	c.Locals(LocalsClaims, claims)
	c.SetUserContext(observability.WithUserID(c.UserContext(), claims.UserID))
}
