package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fourwcycle/internal/models"

	"github.com/redis/go-redis/v9"
)

// PublishedCache holds the serialized public listing. A nil client makes every call a miss.
//
// Writers bump a generation counter when they invalidate. Readers capture the generation before
// loading from the store and Set only stores the listing if the counter has not moved since, so a
// slow reader cannot put back a listing that predates an invalidation.
type PublishedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPublishedCache returns a cache using rdb with the default TTL.
func NewPublishedCache(rdb *redis.Client) *PublishedCache {
	return &PublishedCache{rdb: rdb, ttl: PublishedTTL}
}

// Get returns the cached listing. Errors other than a miss are returned so callers can log them.
func (p *PublishedCache) Get(ctx context.Context) ([]models.PublishedSubmission, bool, error) {
	if p == nil || p.rdb == nil {
		return nil, false, nil
	}
	raw, err := p.rdb.Get(ctx, PublishedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []models.PublishedSubmission
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Generation returns the current invalidation counter. A missing counter reads as zero.
func (p *PublishedCache) Generation(ctx context.Context) (int64, error) {
	if p == nil || p.rdb == nil {
		return 0, nil
	}
	return generation(ctx, p.rdb)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, c getter) (int64, error) {
	gen, err := c.Get(ctx, PublishedGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores the listing if the generation still equals gen. It reports whether it stored.
func (p *PublishedCache) Set(ctx context.Context, gen int64, items []models.PublishedSubmission) (bool, error) {
	if p == nil || p.rdb == nil {
		return false, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return false, err
	}

	stored := false
	err = p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, PublishedKey, raw, p.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		stored = true
		return nil
	}, PublishedGenKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate drops the listing and advances the generation.
func (p *PublishedCache) Invalidate(ctx context.Context) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, PublishedGenKey)
		pipe.Del(ctx, PublishedKey)
		return nil
	})
	return err
}
