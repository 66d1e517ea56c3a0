// Package resolver materializes canonical entities for client handles.
//
// Resolution is idempotent: the first call for a handle creates the entity and
// links the bridge in one transaction; every later call, including ones that
// raced the first, returns that same entity id.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"masterdata/internal/masterdata/metrics"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
	"masterdata/pkg/requestcontext"
)

// Store is the bridge persistence the resolver needs.
type Store interface {
	FindEntityByHandle(ctx context.Context, handle id.HandleID) (id.EntityID, error)
	// CreateEntityForHandle stores entity and links handle to it atomically.
	// It returns sentinel.ErrAlreadyUsed, storing nothing, when the handle is
	// already linked.
	CreateEntityForHandle(ctx context.Context, handle id.HandleID, entity models.Entity) (id.EntityID, error)
}

// Cache is an optional read-through cache of handle -> entity links. Links
// never change once made, so entries need no invalidation.
type Cache interface {
	Get(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error)
	Set(ctx context.Context, handle id.HandleID, entityID id.EntityID) error
}

type Resolver struct {
	store   Store
	cache   Cache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

func New(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("masterdata/resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the canonical entity for handle, creating it on first use.
func (r *Resolver) Resolve(ctx context.Context, handle id.HandleID) (id.EntityID, error) {
	if handle.IsNil() {
		return id.EntityID{}, dErrors.New(dErrors.CodeInvalidInput, "handle is required")
	}
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("handle_id", handle.String()),
	))
	defer span.End()
	defer r.metrics.ObserveResolve(time.Now())

	entityID, found, err := r.lookup(ctx, handle)
	if err != nil {
		span.RecordError(err)
		return id.EntityID{}, err
	}
	if found {
		return entityID, nil
	}

	// Collapse concurrent first resolutions in this process; the unique bridge
	// key handles races across processes. The shared creation outlives any
	// single caller's cancellation; each caller still honours its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(handle.String(), func() (any, error) {
		return r.create(flightCtx, handle)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return id.EntityID{}, ctx.Err()
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		return id.EntityID{}, res.Err
	}
	entityID = res.Val.(id.EntityID)
	r.remember(ctx, handle, entityID)
	return entityID, nil
}

// Lookup returns the entity linked to handle without ever creating one.
func (r *Resolver) Lookup(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error) {
	if handle.IsNil() {
		return id.EntityID{}, false, dErrors.New(dErrors.CodeInvalidInput, "handle is required")
	}
	return r.lookup(ctx, handle)
}

func (r *Resolver) lookup(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error) {
	if r.cache != nil {
		entityID, ok, err := r.cache.Get(ctx, handle)
		if err != nil {
			r.logger.WarnContext(ctx, "bridge cache read failed", "handle_id", handle.String(), "error", err)
		} else if ok {
			r.metrics.IncrementResolution("cache")
			return entityID, true, nil
		}
	}
	entityID, err := r.store.FindEntityByHandle(ctx, handle)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.EntityID{}, false, nil
	}
	if err != nil {
		return id.EntityID{}, false, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to read entity bridge")
	}
	r.metrics.IncrementResolution("store")
	r.remember(ctx, handle, entityID)
	return entityID, true, nil
}

func (r *Resolver) create(ctx context.Context, handle id.HandleID) (id.EntityID, error) {
	// A previous flight may have linked the handle after our fast path missed.
	if entityID, err := r.store.FindEntityByHandle(ctx, handle); err == nil {
		return entityID, nil
	}

	entity := models.Entity{
		ID:        id.NewEntityID(),
		Reference: models.ReferenceFor(handle),
		CreatedAt: requestcontext.Now(ctx),
	}
	entityID, err := r.store.CreateEntityForHandle(ctx, handle, entity)
	if err == nil {
		r.metrics.IncrementResolution("created")
		r.logger.InfoContext(ctx, "canonical entity created",
			"entity_id", entityID.String(),
			"handle_id", handle.String(),
			"reference", entity.Reference,
		)
		return entityID, nil
	}
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return id.EntityID{}, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to create canonical entity")
	}

	// Lost the race: adopt the winner rather than creating again.
	winner, err := r.store.FindEntityByHandle(ctx, handle)
	if err != nil {
		return id.EntityID{}, dErrors.Wrap(errors.Join(models.ErrResolutionConflict, err), dErrors.CodeConflict, "entity bridge changed during resolution")
	}
	r.metrics.IncrementResolution("adopted")
	r.logger.InfoContext(ctx, "adopted concurrently created entity",
		"entity_id", winner.String(),
		"handle_id", handle.String(),
	)
	return winner, nil
}

func (r *Resolver) remember(ctx context.Context, handle id.HandleID, entityID id.EntityID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, handle, entityID); err != nil {
		r.logger.WarnContext(ctx, "bridge cache write failed", "handle_id", handle.String(), "error", err)
	}
}
