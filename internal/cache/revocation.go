package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records logged-out token ids until their natural expiry.
type Revocations struct {
	rdb *redis.Client
}

// NewRevocations returns a revocation list backed by rdb. A nil client revokes nothing.
func NewRevocations(rdb *redis.Client) *Revocations {
	return &Revocations{rdb: rdb}
}

// Revoke blacklists jti until expiresAt.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if r.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, RevokedKey(jti), "revoked", ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.rdb == nil {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, RevokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
