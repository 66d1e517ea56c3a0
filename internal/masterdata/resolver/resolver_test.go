package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/resolver"
	"masterdata/internal/masterdata/store"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/circuit"
	"masterdata/pkg/platform/sentinel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ResolverSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	resolver *resolver.Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.resolver = resolver.New(s.store)
}

func newHandle() id.HandleID {
	return id.HandleID(id.NewEntityID())
}

// -----------------------------------------------------------------------------
// Idempotency
// -----------------------------------------------------------------------------

func (s *ResolverSuite) TestResolveCreatesOnce() {
	ctx := context.Background()
	handle := newHandle()

	first, err := s.resolver.Resolve(ctx, handle)
	s.Require().NoError(err)
	second, err := s.resolver.Resolve(ctx, handle)
	s.Require().NoError(err)
	s.Equal(first, second)

	entity, err := s.store.FindEntity(ctx, first)
	s.Require().NoError(err)
	s.Equal(models.ReferenceFor(handle), entity.Reference)
}

func (s *ResolverSuite) TestConcurrentResolutionsYieldOneEntity() {
	ctx := context.Background()
	handle := newHandle()
	const n = 50

	results := make([]id.EntityID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entityID, err := s.resolver.Resolve(ctx, handle)
			s.NoError(err)
			results[i] = entityID
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		s.Equal(results[0], r)
	}
	linked, err := s.store.FindEntityByHandle(ctx, handle)
	s.Require().NoError(err)
	s.Equal(results[0], linked)
}

func (s *ResolverSuite) TestLookupNeverCreates() {
	ctx := context.Background()
	handle := newHandle()

	_, found, err := s.resolver.Lookup(ctx, handle)
	s.Require().NoError(err)
	s.False(found)

	_, err = s.store.FindEntityByHandle(ctx, handle)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ResolverSuite) TestNilHandleRejected() {
	_, err := s.resolver.Resolve(context.Background(), id.HandleID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// -----------------------------------------------------------------------------
// Races across processes
// -----------------------------------------------------------------------------

// racingStore simulates another process linking the handle between our
// fast-path miss and our insert.
type racingStore struct {
	winner   id.EntityID
	linked   bool
	readFail bool
}

func (r *racingStore) FindEntityByHandle(context.Context, id.HandleID) (id.EntityID, error) {
	if !r.linked || r.readFail {
		return id.EntityID{}, sentinel.ErrNotFound
	}
	return r.winner, nil
}

func (r *racingStore) CreateEntityForHandle(context.Context, id.HandleID, models.Entity) (id.EntityID, error) {
	r.linked = true
	return id.EntityID{}, sentinel.ErrAlreadyUsed
}

func (s *ResolverSuite) TestLoserAdoptsWinner() {
	winner := id.NewEntityID()
	r := resolver.New(&racingStore{winner: winner})

	got, err := r.Resolve(context.Background(), newHandle())
	s.Require().NoError(err)
	s.Equal(winner, got)
}

func (s *ResolverSuite) TestUnreadableWinnerIsResolutionConflict() {
	r := resolver.New(&racingStore{winner: id.NewEntityID(), readFail: true})

	_, err := r.Resolve(context.Background(), newHandle())
	s.Require().Error(err)
	s.ErrorIs(err, models.ErrResolutionConflict)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// gatedStore holds creation open until released so tests can cancel callers
// mid-flight.
type gatedStore struct {
	mu        sync.Mutex
	entered   chan struct{}
	release   chan struct{}
	linked    id.EntityID
	createErr error
}

func newGatedStore() *gatedStore {
	return &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) FindEntityByHandle(context.Context, id.HandleID) (id.EntityID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.linked.IsNil() {
		return id.EntityID{}, sentinel.ErrNotFound
	}
	return g.linked, nil
}

func (g *gatedStore) CreateEntityForHandle(ctx context.Context, _ id.HandleID, entity models.Entity) (id.EntityID, error) {
	close(g.entered)
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = ctx.Err()
	g.linked = entity.ID
	return entity.ID, nil
}

func (s *ResolverSuite) TestCancelledCallerDoesNotFailSharedCreation() {
	gated := newGatedStore()
	r := resolver.New(gated)
	handle := newHandle()

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(firstCtx, handle)
		firstErr <- err
	}()
	<-gated.entered

	type result struct {
		entityID id.EntityID
		err      error
	}
	second := make(chan result, 1)
	go func() {
		entityID, err := r.Resolve(context.Background(), handle)
		second <- result{entityID, err}
	}()

	cancel()
	s.ErrorIs(<-firstErr, context.Canceled)

	close(gated.release)
	got := <-second
	s.Require().NoError(got.err)
	s.False(got.entityID.IsNil())

	gated.mu.Lock()
	defer gated.mu.Unlock()
	s.NoError(gated.createErr)
	s.Equal(gated.linked, got.entityID)
}

type failingStore struct{}

func (failingStore) FindEntityByHandle(context.Context, id.HandleID) (id.EntityID, error) {
	return id.EntityID{}, errors.New("connection reset")
}

func (failingStore) CreateEntityForHandle(context.Context, id.HandleID, models.Entity) (id.EntityID, error) {
	return id.EntityID{}, errors.New("connection reset")
}

func (s *ResolverSuite) TestStoreFailureIsStorageFailure() {
	_, err := resolver.New(failingStore{}).Resolve(context.Background(), newHandle())
	s.ErrorIs(err, models.ErrStorageFailure)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// -----------------------------------------------------------------------------
// Cache
// -----------------------------------------------------------------------------

type mapCache struct {
	mu      sync.Mutex
	entries map[id.HandleID]id.EntityID
	err  error
	gets    int
}

func (c *mapCache) Get(_ context.Context, handle id.HandleID) (id.EntityID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return id.EntityID{}, false, c.err
	}
	e, ok := c.entries[handle]
	return e, ok, nil
}

func (c *mapCache) Set(_ context.Context, handle id.HandleID, entityID id.EntityID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[handle] = entityID
	return nil
}

func (s *ResolverSuite) TestCachePopulatedAndServed() {
	ctx := context.Background()
	cache := &mapCache{entries: map[id.HandleID]id.EntityID{}}
	r := resolver.New(s.store, resolver.WithCache(cache))
	handle := newHandle()

	created, err := r.Resolve(ctx, handle)
	s.Require().NoError(err)
	s.Equal(created, cache.entries[handle])

	// A cached link is trusted without touching the store.
	other := id.NewEntityID()
	cache.entries[handle] = other
	got, found, err := r.Lookup(ctx, handle)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(other, got)
}

func (s *ResolverSuite) TestCacheErrorsFallBackToStore() {
	ctx := context.Background()
	cache := &mapCache{entries: map[id.HandleID]id.EntityID{}, err: errors.New("redis down")}
	r := resolver.New(s.store, resolver.WithCache(cache))
	handle := newHandle()

	first, err := r.Resolve(ctx, handle)
	s.Require().NoError(err)
	second, err := r.Resolve(ctx, handle)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *ResolverSuite) TestFailingCacheIsBypassedOnceBreakerOpens() {
	ctx := context.Background()
	cache := &mapCache{entries: map[id.HandleID]id.EntityID{}, err: errors.New("redis down")}
	breaker := circuit.New("bridge-cache", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	r := resolver.New(s.store, resolver.WithCache(resolver.NewBreakerCache(cache, breaker, nil)))
	handle := newHandle()

	created, err := r.Resolve(ctx, handle)
	s.Require().NoError(err)
	for range 4 {
		got, err := r.Resolve(ctx, handle)
		s.Require().NoError(err)
		s.Equal(created, got)
	}
	// The first resolution's failed read and write open the breaker.
	s.True(breaker.IsOpen())
	s.Equal(1, cache.gets)
}
