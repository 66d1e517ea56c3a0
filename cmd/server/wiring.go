package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"masterdata/internal/masterdata/documents"
	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/handler"
	mdmetrics "masterdata/internal/masterdata/metrics"
	"masterdata/internal/masterdata/normalizer"
	"masterdata/internal/masterdata/outbox"
	"masterdata/internal/masterdata/resolver"
	"masterdata/internal/masterdata/service"
	"masterdata/internal/masterdata/store"
	"masterdata/internal/masterdata/validator"
	"masterdata/internal/platform/config"
	"masterdata/internal/platform/logger"
	"masterdata/internal/platform/postgres"
	"masterdata/internal/platform/redis"
	"masterdata/pkg/platform/circuit"
)

// entityStore is what both storage backends provide.
type entityStore interface {
	service.Store
	resolver.Store
	validator.Store
	outbox.Store
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *mdmetrics.Metrics

	db       *sql.DB
	store    entityStore
	tx       txRunner
	relayTx  outbox.TxRunner
	redis    *redis.Client
	docStore documents.Store
	closers  []func() error
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		logger:   logger.New(cfg.LogLevel),
		registry: reg,
		metrics:  mdmetrics.New(reg),
	}
	if err := a.openStorage(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		a.logger.WarnContext(ctx, "no database configured; using in-memory store")
		a.store = store.NewInMemory()
		a.tx = store.NewShardedTx(a.cfg.Writes.TxTimeout)
		a.docStore = documents.NewInMemoryStore()
		return nil
	}
	db, err := postgres.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	pgTx := store.NewPostgresTx(db, a.cfg.Writes.TxTimeout)
	a.store = store.NewPostgres(db)
	a.tx = pgTx
	a.relayTx = pgTx
	a.docStore = documents.NewPostgresStore(db)
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	if client != nil {
		a.redis = client
		a.closers = append(a.closers, client.Close)
	}
	return nil
}

// handler builds the write engine, validator and document registry and
// returns the HTTP surface over them.
func (a *app) handler() *handler.Handler {
	reg := fields.Default()

	resolverOpts := []resolver.Option{resolver.WithLogger(a.logger), resolver.WithMetrics(a.metrics)}
	if a.redis != nil {
		cache := resolver.NewBreakerCache(
			resolver.NewRedisCache(a.redis.Client, a.cfg.Redis.BridgeTTL),
			circuit.New("bridge-cache"),
			a.logger,
		)
		resolverOpts = append(resolverOpts, resolver.WithCache(cache))
	}
	res := resolver.New(a.store, resolverOpts...)

	var blobs documents.BlobStore = documents.NewMemoryBlobs()
	if a.cfg.Documents.BlobRoot != "" {
		blobs = documents.NewFileBlobs(a.cfg.Documents.BlobRoot)
	}
	docs := documents.New(a.docStore, a.store, blobs,
		documents.WithLogger(a.logger),
		documents.WithMetrics(a.metrics),
		documents.WithMaxSize(a.cfg.Documents.MaxSize),
		documents.WithFields(reg),
	)

	writes := service.New(a.store, a.tx, res,
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
		service.WithDocuments(docs),
		service.WithFields(reg),
	)
	v := validator.New(a.store,
		validator.WithLogger(a.logger),
		validator.WithMetrics(a.metrics),
		validator.WithFields(reg),
	)
	return handler.New(writes, v, docs, a.logger,
		normalizer.NewGLEIF(reg), normalizer.NewNationalRegistry(reg),
	).WithMaxUpload(a.cfg.Documents.MaxSize)
}

func (a *app) requireDB() error {
	if a.db == nil {
		return errors.New("database.url is required for this command")
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close resources: %w", errors.Join(errs...))
	}
	return nil
}
