package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/outbox"
	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/sentinel"
)

// backend is the full store surface exercised by the contract suite.
type backend interface {
	FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	LockEntity(ctx context.Context, entityID id.EntityID) error
	CreateEntity(ctx context.Context, entity models.Entity) error
	FindEntityByHandle(ctx context.Context, handle id.HandleID) (id.EntityID, error)
	RegisterHandle(ctx context.Context, handle id.HandleID) error
	CreateEntityForHandle(ctx context.Context, handle id.HandleID, entity models.Entity) (id.EntityID, error)
	FindRow(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error)
	ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error)
	CreateRow(ctx context.Context, row *models.Row) error
	ApplyWrite(ctx context.Context, w models.FieldWrite) (models.AuditEvent, error)
	ListAuditEvents(ctx context.Context, entityID id.EntityID, fields []models.FieldNo) ([]models.AuditEvent, error)
	outbox.Store
}

// contractSuite holds behaviour both stores must share. Concrete suites set
// store in SetupTest.
type contractSuite struct {
	suite.Suite
	store backend
	now   time.Time
}

func (s *contractSuite) newEntity() id.EntityID {
	entity := models.Entity{ID: id.NewEntityID(), Reference: "LE-CONTRACT", CreatedAt: s.now}
	s.Require().NoError(s.store.CreateEntity(context.Background(), entity))
	return entity.ID
}

func (s *contractSuite) write(entityID id.EntityID, target models.FieldTarget, value string, source models.Source, old *string) models.AuditEvent {
	s.now = s.now.Add(time.Second)
	event, err := s.store.ApplyWrite(context.Background(), models.FieldWrite{
		EntityID: entityID,
		Target:   target,
		NewValue: value,
		Provenance: models.Provenance{
			FieldNo: target.FieldNo, Source: source, EvidenceID: "ev-1",
			Confidence: models.Confidence(0.9), RecordedAt: s.now,
		},
		Audit: models.AuditEvent{
			ID: id.NewAuditEventID(), EntityID: entityID, RowID: target.RowID, FieldNo: target.FieldNo,
			OldValue: old, NewValue: value, Source: source, EvidenceID: "ev-1", ActorID: "actor-1",
			Confidence: models.Confidence(0.9), Timestamp: s.now,
		},
	})
	s.Require().NoError(err)
	return event
}

var legalName = models.FieldTarget{FieldNo: 3, Kind: models.KindIdentity, Column: "legal_name"}

// -----------------------------------------------------------------------------
// Singleton rows
// -----------------------------------------------------------------------------

func (s *contractSuite) TestSingletonRowCreatedLazily() {
	ctx := context.Background()
	entityID := s.newEntity()

	_, err := s.store.FindRow(ctx, entityID, models.KindIdentity, nil)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.write(entityID, legalName, "Acme Corp", models.SourceUserInput, nil)

	row, err := s.store.FindRow(ctx, entityID, models.KindIdentity, nil)
	s.Require().NoError(err)
	v, ok := row.Value("legal_name")
	s.True(ok)
	s.Equal("Acme Corp", v)
	p, ok := row.ProvenanceOf(3)
	s.Require().True(ok)
	s.Equal(models.SourceUserInput, p.Source)
	s.Require().NotNil(p.Confidence)
	s.InDelta(0.9, *p.Confidence, 1e-9)

	_, err = s.store.FindRow(ctx, entityID, models.KindRegisteredAddress, nil)
	s.ErrorIs(err, sentinel.ErrNotFound, "other singleton kinds stay absent")
}

func (s *contractSuite) TestProvenanceMergesPerField() {
	ctx := context.Background()
	entityID := s.newEntity()
	lei := models.FieldTarget{FieldNo: 2, Kind: models.KindIdentity, Column: "lei"}

	s.write(entityID, legalName, "Acme Corp", models.SourceUserInput, nil)
	s.write(entityID, lei, "5493001KJTIIGC8Y1R12", models.SourceGLEIF, nil)

	row, err := s.store.FindRow(ctx, entityID, models.KindIdentity, nil)
	s.Require().NoError(err)
	nameProv, _ := row.ProvenanceOf(3)
	leiProv, _ := row.ProvenanceOf(2)
	s.Equal(models.SourceUserInput, nameProv.Source)
	s.Equal(models.SourceGLEIF, leiProv.Source)
	s.Len(row.Values, 2)
}

func (s *contractSuite) TestSingletonKindsKeepSeparateProvenance() {
	ctx := context.Background()
	entityID := s.newEntity()
	city := models.FieldTarget{FieldNo: 12, Kind: models.KindRegisteredAddress, Column: "city"}

	s.write(entityID, legalName, "Acme Corp", models.SourceUserInput, nil)
	s.write(entityID, city, "Dublin", models.SourceNationalRegistry, nil)

	identity, err := s.store.FindRow(ctx, entityID, models.KindIdentity, nil)
	s.Require().NoError(err)
	address, err := s.store.FindRow(ctx, entityID, models.KindRegisteredAddress, nil)
	s.Require().NoError(err)
	s.Len(identity.Provenance, 1)
	s.Len(address.Provenance, 1)
	_, ok := address.ProvenanceOf(3)
	s.False(ok)
}

// -----------------------------------------------------------------------------
// Repeating rows
// -----------------------------------------------------------------------------

func (s *contractSuite) TestRepeatingRows() {
	ctx := context.Background()
	entityID := s.newEntity()

	first, second := id.NewRowID(), id.NewRowID()
	s.Require().NoError(s.store.CreateRow(ctx, models.NewRow(entityID, models.KindTraders, &first, s.now)))
	s.Require().NoError(s.store.CreateRow(ctx, models.NewRow(entityID, models.KindTraders, &second, s.now.Add(time.Second))))

	name := models.FieldTarget{FieldNo: 30, Kind: models.KindTraders, Column: "trader_name", RowID: &second}
	s.write(entityID, name, "Jane Doe", models.SourceUserInput, nil)

	rows, err := s.store.ListRows(ctx, entityID, models.KindTraders)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(first, *rows[0].ID)
	s.Empty(rows[0].Provenance, "provenance is scoped to its row")
	v, _ := rows[1].Value("trader_name")
	s.Equal("Jane Doe", v)
	_, ok := rows[1].ProvenanceOf(30)
	s.True(ok)
}

func (s *contractSuite) TestWriteToMissingRowFails() {
	ctx := context.Background()
	entityID := s.newEntity()
	missing := id.NewRowID()

	_, err := s.store.ApplyWrite(ctx, models.FieldWrite{
		EntityID:   entityID,
		Target:     models.FieldTarget{FieldNo: 30, Kind: models.KindTraders, Column: "trader_name", RowID: &missing},
		NewValue:   "x",
		Provenance: models.Provenance{FieldNo: 30, Source: models.SourceUserInput, RecordedAt: s.now},
		Audit:      models.AuditEvent{ID: id.NewAuditEventID(), EntityID: entityID, FieldNo: 30, NewValue: "x", Timestamp: s.now},
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	events, err := s.store.ListAuditEvents(ctx, entityID, []models.FieldNo{30})
	s.Require().NoError(err)
	s.Empty(events, "failed writes leave no audit event")
	pending, err := s.store.FetchUnpublished(ctx, 100)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *contractSuite) TestCreateRowForUnknownEntity() {
	rowID := id.NewRowID()
	err := s.store.CreateRow(context.Background(), models.NewRow(id.NewEntityID(), models.KindStakeholders, &rowID, s.now))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// -----------------------------------------------------------------------------
// Audit chain and outbox
// -----------------------------------------------------------------------------

func (s *contractSuite) TestAuditChain() {
	ctx := context.Background()
	entityID := s.newEntity()

	s.write(entityID, legalName, "Acme", models.SourceNationalRegistry, nil)
	old := "Acme"
	s.write(entityID, legalName, "Acme Corp", models.SourceGLEIF, &old)

	events, err := s.store.ListAuditEvents(ctx, entityID, []models.FieldNo{3})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(int64(1), events[0].Seq)
	s.Nil(events[0].OldValue)
	s.Require().NotNil(events[1].OldValue)
	s.Equal("Acme", *events[1].OldValue)
	s.Equal(models.SourceGLEIF, events[1].Source)
	s.NoError(models.VerifyChain(events))

	pending, err := s.store.FetchUnpublished(ctx, 100)
	s.Require().NoError(err)
	s.Len(pending, 2)
}

func (s *contractSuite) TestOutboxMarkPublished() {
	ctx := context.Background()
	entityID := s.newEntity()
	s.write(entityID, legalName, "Acme", models.SourceUserInput, nil)

	pending, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{pending[0].ID}, s.now))

	pending, err = s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

// -----------------------------------------------------------------------------
// Entities and bridges
// -----------------------------------------------------------------------------

func (s *contractSuite) TestBridgeLinking() {
	ctx := context.Background()
	handle := id.HandleID(id.NewEntityID())

	_, err := s.store.FindEntityByHandle(ctx, handle)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.RegisterHandle(ctx, handle))
	_, err = s.store.FindEntityByHandle(ctx, handle)
	s.ErrorIs(err, sentinel.ErrNotFound, "registered handle has no entity yet")

	winner := models.Entity{ID: id.NewEntityID(), Reference: models.ReferenceFor(handle), CreatedAt: s.now}
	linked, err := s.store.CreateEntityForHandle(ctx, handle, winner)
	s.Require().NoError(err)
	s.Equal(winner.ID, linked)

	loser := models.Entity{ID: id.NewEntityID(), Reference: models.ReferenceFor(handle), CreatedAt: s.now}
	_, err = s.store.CreateEntityForHandle(ctx, handle, loser)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	_, err = s.store.FindEntity(ctx, loser.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound), "losing entity is not stored")

	found, err := s.store.FindEntityByHandle(ctx, handle)
	s.Require().NoError(err)
	s.Equal(winner.ID, found)
}

func (s *contractSuite) TestLockEntity() {
	ctx := context.Background()
	s.ErrorIs(s.store.LockEntity(ctx, id.NewEntityID()), sentinel.ErrNotFound)
	s.NoError(s.store.LockEntity(ctx, s.newEntity()))
}
