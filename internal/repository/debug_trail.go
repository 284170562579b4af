package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	debugKeyPrefix = "debug:entry:"
	debugIndexKey  = "debug:index"

	// DefaultDebugRetention is how long debug entries survive.
	DefaultDebugRetention = 30 * 24 * time.Hour
)

// DebugTrail is a short-lived diagnostic log. Every entry is its own Redis key with a TTL,
// so expiry happens in Redis; a sorted-set index orders entries for listing and is pruned
// lazily as entries vanish.
type DebugTrail struct {
	rdb       *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewDebugTrail returns a trail that keeps entries for retention. A nil client disables it.
func NewDebugTrail(rdb *redis.Client, retention time.Duration) *DebugTrail {
	if retention <= 0 {
		retention = DefaultDebugRetention
	}
	return &DebugTrail{rdb: rdb, retention: retention, now: time.Now}
}

// Record stores one entry.
func (d *DebugTrail) Record(ctx context.Context, level, message string, fields map[string]any) (*models.DebugEntry, error) {
	entry := &models.DebugEntry{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Fields:    fields,
		CreatedAt: d.now().UTC(),
	}
	if d.rdb == nil {
		return entry, nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	key := debugKeyPrefix + entry.ID
	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, d.retention)
	pipe.ZAdd(ctx, debugIndexKey, redis.Z{Score: float64(entry.CreatedAt.UnixMilli()), Member: entry.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Prune drops index members older than the retention window and reports how many went.
// Their entry keys have already expired in Redis.
func (d *DebugTrail) Prune(ctx context.Context) (int64, error) {
	if d.rdb == nil {
		return 0, nil
	}
	cutoff := d.now().Add(-d.retention).UnixMilli()
	return d.rdb.ZRemRangeByScore(ctx, debugIndexKey, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
}

// Recent returns up to limit surviving entries, newest first.
func (d *DebugTrail) Recent(ctx context.Context, limit int) ([]*models.DebugEntry, error) {
	if d.rdb == nil {
		return []*models.DebugEntry{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if _, err := d.Prune(ctx); err != nil {
		return nil, err
	}

	ids, err := d.rdb.ZRevRange(ctx, debugIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.DebugEntry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = debugKeyPrefix + id
	}
	values, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	entries := make([]*models.DebugEntry, 0, len(values))
	var gone []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			gone = append(gone, ids[i])
			continue
		}
		var entry models.DebugEntry
		if json.Unmarshal([]byte(raw), &entry) != nil {
			gone = append(gone, ids[i])
			continue
		}
		entries = append(entries, &entry)
	}
	if len(gone) > 0 {
		_ = d.rdb.ZRem(ctx, debugIndexKey, gone...).Err()
	}
	return entries, nil
}
