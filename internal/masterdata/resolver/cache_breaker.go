package resolver

import (
	"context"
	"errors"
	"log/slog"

	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/circuit"
)

// errCacheOpen is returned by Set while the breaker skips the cache.
var errCacheOpen = errors.New("bridge cache circuit open")

// BreakerCache guards a Cache with a circuit breaker so a failing cache stops
// adding latency to every resolution. While open, reads are misses and
// writes are skipped; the store remains authoritative.
type BreakerCache struct {
	inner   Cache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerCache(inner Cache, breaker *circuit.Breaker, logger *slog.Logger) *BreakerCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerCache{inner: inner, breaker: breaker, logger: logger}
}

func (c *BreakerCache) Get(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error) {
	if !c.breaker.Allow() {
		return id.EntityID{}, false, nil
	}
	entityID, ok, err := c.inner.Get(ctx, handle)
	c.record(ctx, err)
	return entityID, ok, err
}

func (c *BreakerCache) Set(ctx context.Context, handle id.HandleID, entityID id.EntityID) error {
	if !c.breaker.Allow() {
		return errCacheOpen
	}
	err := c.inner.Set(ctx, handle, entityID)
	c.record(ctx, err)
	return err
}

func (c *BreakerCache) record(ctx context.Context, err error) {
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "bridge cache disabled after repeated failures",
				"breaker", c.breaker.Name(),
				"error", err,
			)
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "bridge cache re-enabled", "breaker", c.breaker.Name())
	}
}
