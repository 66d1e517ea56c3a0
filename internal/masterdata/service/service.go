// Package service is the master data write engine: it routes field writes
// through the catalog, resolves client handles, arbitrates against the current
// provenance and commits value, provenance and audit event as one unit.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/metrics"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,TxRunner,EntityResolver,DocumentLookup

// Store is the persistence the write engine needs. Implementations return
// pkg/platform/sentinel errors for infrastructure facts.
type Store interface {
	FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	// LockEntity serializes units of work on one entity until the enclosing
	// transaction ends.
	LockEntity(ctx context.Context, entityID id.EntityID) error
	FindRow(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error)
	ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error)
	CreateRow(ctx context.Context, row *models.Row) error
	// ApplyWrite commits value, provenance, audit event and outbox message
	// together and returns the sealed audit event.
	ApplyWrite(ctx context.Context, w models.FieldWrite) (models.AuditEvent, error)
	ListAuditEvents(ctx context.Context, entityID id.EntityID, fields []models.FieldNo) ([]models.AuditEvent, error)
}

// TxRunner scopes a unit of work. Stores join the transaction through ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntityResolver maps client handles to canonical entities.
type EntityResolver interface {
	Resolve(ctx context.Context, handle id.HandleID) (id.EntityID, error)
	Lookup(ctx context.Context, handle id.HandleID) (id.EntityID, bool, error)
}

// DocumentLookup reads document registry entries so attachments can be
// checked against their declared owner.
type DocumentLookup interface {
	Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
}

// Service orchestrates field writes and reads.
type Service struct {
	store     Store
	tx        TxRunner
	resolver  EntityResolver
	documents DocumentLookup
	fields    *fields.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDocuments enables ownership checks on AttachDocument.
func WithDocuments(d DocumentLookup) Option {
	return func(s *Service) { s.documents = d }
}

// WithFields overrides the embedded field catalog.
func WithFields(r *fields.Registry) Option {
	return func(s *Service) { s.fields = r }
}

func New(store Store, tx TxRunner, resolver EntityResolver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tx:       tx,
		resolver: resolver,
		logger:   slog.Default(),
		tracer:   otel.Tracer("masterdata/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fields == nil {
		s.fields = fields.Default()
	}
	return s
}
