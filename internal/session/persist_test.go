package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(t *testing.T) *Session {
	return &Session{
		Token:     makeToken(t, 3, models.RoleMember, time.Now().Add(time.Hour)),
		Identity:  Identity{ID: 3, Username: "carol", Email: "c@x.io", Role: models.RoleMember},
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
		Source:    SourceAuthoritative,
	}
}

func TestFileCredentialStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon", "session.yml")
	fs := NewFileCredentialStore(path)
	ctx := context.Background()

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleSession(t)
	require.NoError(t, fs.Save(ctx, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = fs.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.Identity, got.Identity)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, fs.Delete(ctx))
	require.NoError(t, fs.Delete(ctx))
	got, err = fs.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCredentialStore_RoundTrip(t *testing.T) {
	mr, rdb := setupRedisStore(t)
	rs := NewRedisCredentialStore(rdb, "session:cli")
	ctx := context.Background()

	want := sampleSession(t)
	require.NoError(t, rs.Save(ctx, want))
	assert.True(t, mr.Exists("session:cli"))
	assert.Greater(t, mr.TTL("session:cli"), time.Duration(0))

	got, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Identity, got.Identity)

	require.NoError(t, rs.Delete(ctx))
	got, err = rs.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PersistsAndRestores(t *testing.T) {
	fs := NewFileCredentialStore(filepath.Join(t.TempDir(), "session.yml"))
	ctx := context.Background()

	first := NewStore(okProvider(t, models.RoleMember), WithCredentialStore(fs))
	_, err := first.Establish(ctx, "alice", "secret")
	require.NoError(t, err)

	second := NewStore(okProvider(t, models.RoleMember), WithCredentialStore(fs))
	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, first.Current().Token, restored.Token)

	first.Clear(ctx)
	stored, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestStore_WatchAdoptsOtherProcessChanges(t *testing.T) {
	_, rdb := setupRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := NewRedisCredentialStore(rdb, "session:shared")
	writer := NewStore(okProvider(t, models.RoleMember), WithCredentialStore(shared))
	reader := NewStore(okProvider(t, models.RoleMember), WithCredentialStore(NewRedisCredentialStore(rdb, "session:shared")))

	events, unsubscribe := reader.Subscribe()
	defer unsubscribe()
	c := collect(events)

	require.NoError(t, reader.Watch(ctx))

	_, err := writer.Establish(ctx, "alice", "secret")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return reader.Current() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, writer.Current().Token, reader.Current().Token)

	writer.Clear(ctx)
	assert.Eventually(t, func() bool { return reader.Current() == nil }, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return c.len() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []EventKind{LoggedIn, LoggedOut}, c.kinds())
}

func TestStore_WatchRequiresNotifier(t *testing.T) {
	s := NewStore(okProvider(t, models.RoleMember))
	assert.Error(t, s.Watch(context.Background()))
}
