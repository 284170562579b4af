package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type revokedSet struct {
	ids map[string]bool
	err error
}

func (r revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r.ids[jti], r.err
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	raw, exp, err := tokens.Issue(42, "alice", models.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.JTI)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())

	other, _, err := tokens.Issue(42, "alice", models.RoleAdmin)
	require.NoError(t, err)
	otherClaims, err := tokens.Parse(other)
	require.NoError(t, err)
	assert.NotEqual(t, claims.JTI, otherClaims.JTI)
}

func TestTokens_Rejections(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	t.Run("no secret", func(t *testing.T) {
		_, _, err := NewTokens("", time.Hour).Issue(1, "a", models.RoleMember)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw, _, err := NewTokens("other", time.Hour).Issue(1, "a", models.RoleMember)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTokens("secret", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		raw, _, err := old.Issue(1, "a", models.RoleMember)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "1",
			"iss": TokenIssuer,
			"aud": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "1",
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		assert.Error(t, err)
	})
}

func identityApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", handler, func(c *fiber.Ctx) error {
		id, _ := c.Locals("userID").(uint)
		return c.JSON(fiber.Map{"id": id})
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	raw, _, err := tokens.Issue(7, "bob", models.RoleMember)
	require.NoError(t, err)
	claims, err := tokens.Parse(raw)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		revoked revokedSet
		status  int
	}{
		{"missing header", "", revokedSet{}, http.StatusUnauthorized},
		{"not bearer", "Basic abc", revokedSet{}, http.StatusUnauthorized},
		{"garbage token", "Bearer abc", revokedSet{}, http.StatusUnauthorized},
		{"valid", "Bearer " + raw, revokedSet{}, http.StatusOK},
		{"revoked", "Bearer " + raw, revokedSet{ids: map[string]bool{claims.JTI: true}}, http.StatusUnauthorized},
		{"revocation store down", "Bearer " + raw, revokedSet{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := identityApp(AuthRequired(tokens, tt.revoked))
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	raw, _, err := tokens.Issue(7, "bob", models.RoleMember)
	require.NoError(t, err)

	app := identityApp(OptionalAuth(tokens, revokedSet{}))
	for _, header := range []string{"", "Bearer broken", "Bearer " + raw} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
