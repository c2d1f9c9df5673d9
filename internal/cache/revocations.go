package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by stores that need Redis when none is configured.
var ErrUnavailable = errors.New("redis unavailable")

// TokenRevocations records logged-out credential ids until they would have expired anyway.
type TokenRevocations struct {
	rdb *redis.Client
}

// NewTokenRevocations returns a revocation store using rdb (may be nil).
func NewTokenRevocations(rdb *redis.Client) *TokenRevocations {
	return &TokenRevocations{rdb: rdb}
}

// Revoke marks tokenID as revoked until expiresAt.
func (r *TokenRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if r.rdb == nil {
		return ErrUnavailable
	}
	ttl := time.Until(expiresAt)
	if ttl < minRevocationTT {
		ttl = minRevocationTT
	}
	return r.rdb.Set(ctx, RevokedKey(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether tokenID was revoked. Without Redis nothing is revoked.
func (r *TokenRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.rdb == nil || tokenID == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, RevokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
