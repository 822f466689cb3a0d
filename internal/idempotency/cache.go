package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache remembers which approved transaction a fingerprint resolved to. It is
// a shortcut only; callers must re-read the transaction from the ledger.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error)
	Remember(ctx context.Context, fingerprint string, transactionID uuid.UUID) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (uuid.UUID, bool, error) { return uuid.Nil, false, nil }
func (NopCache) Remember(context.Context, string, uuid.UUID) error    { return nil }

const keyPrefix = "idempotency:"

type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// Remember stores the mapping unless one already exists.
func (c *RedisCache) Remember(ctx context.Context, fingerprint string, transactionID uuid.UUID) error {
	return c.client.SetNX(ctx, keyPrefix+fingerprint, transactionID.String(), c.ttl).Err()
}
