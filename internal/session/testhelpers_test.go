package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, userID uint, role models.Role, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": "user" + strconv.FormatUint(uint64(userID), 10),
		"role":     string(role),
		"exp":      exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type stubProvider struct {
	authenticateFn func(ctx context.Context, username, password string) (AuthResult, error)
	whoAmIFn       func(ctx context.Context, token string) (Identity, error)
}

func (s *stubProvider) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	return s.authenticateFn(ctx, username, password)
}

func (s *stubProvider) WhoAmI(ctx context.Context, token string) (Identity, error) {
	return s.whoAmIFn(ctx, token)
}

// collector drains a subscription into a slice.
type collector struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func collect(ch <-chan Event) *collector {
	c := &collector{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for ev := range ch {
			c.mu.Lock()
			c.events = append(c.events, ev)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *collector) kinds() []EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventKind, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
