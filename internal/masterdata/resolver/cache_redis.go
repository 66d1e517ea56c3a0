package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "masterdata/pkg/domain"
)

const bridgeKeyPrefix = "masterdata:bridge:"

// RedisCache caches bridge links in Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache returns a cache with entries expiring after ttl (0 keeps them).
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func bridgeKey(handle id.HandleID) string {
	return bridgeKeyPrefix + handle.String()
}

func (c *RedisCache) Get(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error) {
	raw, err := c.client.Get(ctx, bridgeKey(handle)).Result()
	if errors.Is(err, redis.Nil) {
		return id.EntityID{}, false, nil
	}
	if err != nil {
		return id.EntityID{}, false, fmt.Errorf("get bridge: %w", err)
	}
	entityID, err := id.ParseEntityID(raw)
	if err != nil {
		// Corrupt entry: treat as a miss; the next Set overwrites it.
		return id.EntityID{}, false, nil
	}
	return entityID, true, nil
}

func (c *RedisCache) Set(ctx context.Context, handle id.HandleID, entityID id.EntityID) error {
	if err := c.client.Set(ctx, bridgeKey(handle), entityID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set bridge: %w", err)
	}
	return nil
}
