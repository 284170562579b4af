package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside reads key into dest, or calls load to fill dest and stores the result for ttl.
// Cache failures fall through to load; load errors are returned untouched and never cached.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	rdb := GetClient()
	if rdb == nil {
		return load()
	}

	cacheName := keyFamily(key)
	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(cacheName, "hit").Inc()
			return nil
		}
		observability.CacheLookups.WithLabelValues(cacheName, "error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues(cacheName, "miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues(cacheName, "error").Inc()
	}

	if err := load(); err != nil {
		return err
	}

	if payload, err := json.Marshal(dest); err == nil {
		_ = rdb.Set(ctx, key, payload, ttl).Err()
	}
	return nil
}

func keyFamily(key string) string {
	family, _, _ := strings.Cut(key, ":")
	return family
}
