package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugTrail_RecordAndExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	trail := NewDebugTrail(rdb, 0)
	ctx := context.Background()

	first, err := trail.Record(ctx, "info", "first", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebugRetention, mr.TTL(debugKeyPrefix+first.ID))

	// Give the second entry a distinct, later index score.
	trail.now = func() time.Time { return time.Now().Add(time.Second) }
	_, err = trail.Record(ctx, "warn", "second", nil)
	require.NoError(t, err)

	entries, err := trail.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "first", entries[1].Message)

	mr.FastForward(DefaultDebugRetention + time.Minute)

	entries, err = trail.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "entries past retention are gone")

	members, err := rdb.ZCard(ctx, debugIndexKey).Result()
	require.NoError(t, err)
	assert.Zero(t, members, "index is pruned as entries expire")
}

func TestDebugTrail_NilClient(t *testing.T) {
	trail := NewDebugTrail(nil, time.Hour)
	entry, err := trail.Record(context.Background(), "info", "noop", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	entries, err := trail.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDebugTrail_PruneWithoutReads(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	trail := NewDebugTrail(rdb, time.Hour)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	trail.now = func() time.Time { return start }

	for _, msg := range []string{"a", "b", "c"} {
		_, err := trail.Record(ctx, "info", msg, nil)
		require.NoError(t, err)
	}
	trail.now = func() time.Time { return start.Add(30 * time.Minute) }
	_, err := trail.Record(ctx, "info", "fresh", nil)
	require.NoError(t, err)

	n, err := trail.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	trail.now = func() time.Time { return start.Add(time.Hour + time.Minute) }
	n, err = trail.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "only members older than the window go")
	assert.Equal(t, int64(1), rdb.ZCard(ctx, debugIndexKey).Val())

	n, err = NewDebugTrail(nil, time.Hour).Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
