//go:build integration

package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"masterdata/internal/masterdata/resolver"
	id "masterdata/pkg/domain"
	"masterdata/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *resolver.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = resolver.NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	handle := id.HandleID(id.NewEntityID())
	entityID := id.NewEntityID()

	_, ok, err := s.cache.Get(ctx, handle)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, handle, entityID))
	got, ok, err := s.cache.Get(ctx, handle)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(entityID, got)

	ttl, err := s.redis.Client.TTL(ctx, "masterdata:bridge:"+handle.String()).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisCacheSuite) TestCorruptEntryIsMiss() {
	ctx := context.Background()
	handle := id.HandleID(id.NewEntityID())
	s.Require().NoError(s.redis.Client.Set(ctx, "masterdata:bridge:"+handle.String(), "garbage", 0).Err())

	_, ok, err := s.cache.Get(ctx, handle)
	s.Require().NoError(err)
	s.False(ok)
}
