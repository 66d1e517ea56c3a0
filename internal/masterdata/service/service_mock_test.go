package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/service"
	"masterdata/internal/masterdata/service/mocks"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockDeps struct {
	store    *mocks.MockStore
	tx       *mocks.MockTxRunner
	resolver *mocks.MockEntityResolver
	svc      *service.Service
}

func newMockDeps(t *testing.T) mockDeps {
	ctrl := gomock.NewController(t)
	d := mockDeps{
		store:    mocks.NewMockStore(ctrl),
		tx:       mocks.NewMockTxRunner(ctrl),
		resolver: mocks.NewMockEntityResolver(ctrl),
	}
	d.svc = service.New(d.store, d.tx, d.resolver)
	return d
}

func runInline(d mockDeps) {
	d.tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) },
	).AnyTimes()
}

// Structural failures are reported before the resolver, the transaction or
// the store are touched; the mocks carry no expectations.
func TestStructuralPreconditionsTouchNothing(t *testing.T) {
	rowID := id.NewRowID()
	user := models.ProvenanceInput{Source: models.SourceUserInput}
	ref := models.ForHandle(id.HandleID(uuid.New()))

	tests := []struct {
		name    string
		fieldNo models.FieldNo
		rowID   *id.RowID
		in      models.ProvenanceInput
		want    error
	}{
		{"unknown field", 999, nil, user, models.ErrUnknownField},
		{"field without column", 90, nil, user, models.ErrUnmappedField},
		{"document-only field", 8, nil, user, models.ErrDocumentOnlyField},
		{"repeating field without row", 30, nil, user, models.ErrMissingRowID},
		{"singleton field with row", 3, &rowID, user, models.ErrUnexpectedRowID},
		{"unknown source", 3, nil, models.ProvenanceInput{Source: "FAX"}, models.ErrUnknownSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMockDeps(t)
			ok, err := d.svc.UpdateField(context.Background(), ref, tt.fieldNo, "v", tt.in, tt.rowID)
			require.Error(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestConfidenceOutOfRange(t *testing.T) {
	d := newMockDeps(t)
	_, err := d.svc.UpdateField(context.Background(), models.ForEntity(id.NewEntityID()), 3, "v",
		models.ProvenanceInput{Source: models.SourceGLEIF, Confidence: models.Confidence(1.5)}, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestWriteRetriesSerializationConflicts(t *testing.T) {
	entityID := id.NewEntityID()

	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		d := newMockDeps(t)
		runInline(d)
		d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(nil).Times(3)
		d.store.EXPECT().FindRow(gomock.Any(), entityID, models.KindIdentity, gomock.Nil()).Return(nil, sentinel.ErrNotFound).Times(3)
		gomock.InOrder(
			d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).Return(models.AuditEvent{}, sentinel.ErrConflict),
			d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).Return(models.AuditEvent{}, sentinel.ErrConflict),
			d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).Return(models.AuditEvent{Seq: 1}, nil),
		)

		ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme",
			models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		d := newMockDeps(t)
		runInline(d)
		d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(nil).Times(3)
		d.store.EXPECT().FindRow(gomock.Any(), entityID, models.KindIdentity, gomock.Nil()).Return(nil, sentinel.ErrNotFound).Times(3)
		d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).Return(models.AuditEvent{}, sentinel.ErrConflict).Times(3)

		ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme",
			models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
		assert.False(t, ok)
		assert.ErrorIs(t, err, models.ErrStorageFailure)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestLockConflictExhaustionIsConflict(t *testing.T) {
	entityID := id.NewEntityID()
	d := newMockDeps(t)
	runInline(d)
	d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(sentinel.ErrConflict).Times(3)

	ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrStorageFailure)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestLockOnMissingEntityIsNotFound(t *testing.T) {
	entityID := id.NewEntityID()
	d := newMockDeps(t)
	runInline(d)
	d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(sentinel.ErrNotFound)

	_, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	assert.ErrorIs(t, err, models.ErrEntityNotFound)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestWriteStorageFailureIsNotRetried(t *testing.T) {
	entityID := id.NewEntityID()
	d := newMockDeps(t)
	runInline(d)
	d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(nil)
	d.store.EXPECT().FindRow(gomock.Any(), entityID, models.KindIdentity, gomock.Nil()).Return(nil, sentinel.ErrNotFound)
	d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).Return(models.AuditEvent{}, errors.New("disk full"))

	ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrStorageFailure)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestDeniedWriteDoesNotApply(t *testing.T) {
	entityID := id.NewEntityID()
	d := newMockDeps(t)
	runInline(d)

	row := models.NewRow(entityID, models.KindIdentity, nil, testTime)
	row.Values["legal_name"] = "Acme Corp"
	row.Provenance[3] = models.Provenance{FieldNo: 3, Source: models.SourceUserInput}

	d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(nil)
	d.store.EXPECT().FindRow(gomock.Any(), entityID, models.KindIdentity, gomock.Nil()).Return(row, nil)

	ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 3, "Acme Corp V2",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcceptedWriteCarriesPreviousValue(t *testing.T) {
	entityID := id.NewEntityID()
	d := newMockDeps(t)
	runInline(d)

	row := models.NewRow(entityID, models.KindIdentity, nil, testTime)
	row.Values["lei"] = "5493001KJTIIGC8Y1R1"
	row.Provenance[2] = models.Provenance{FieldNo: 2, Source: models.SourceNationalRegistry}

	d.store.EXPECT().LockEntity(gomock.Any(), entityID).Return(nil)
	d.store.EXPECT().FindRow(gomock.Any(), entityID, models.KindIdentity, gomock.Nil()).Return(row, nil)
	d.store.EXPECT().ApplyWrite(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w models.FieldWrite) (models.AuditEvent, error) {
			assert.Equal(t, "lei", w.Target.Column)
			assert.Equal(t, models.SourceGLEIF, w.Provenance.Source)
			require.NotNil(t, w.Audit.OldValue)
			assert.Equal(t, "5493001KJTIIGC8Y1R1", *w.Audit.OldValue)
			assert.Equal(t, "5493001KJTIIGC8Y1R12", w.Audit.NewValue)
			return w.Audit, nil
		})

	ok, err := d.svc.UpdateField(context.Background(), models.ForEntity(entityID), 2, "5493001KJTIIGC8Y1R12",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolverFailureSurfaces(t *testing.T) {
	d := newMockDeps(t)
	handle := id.HandleID(uuid.New())
	conflict := dErrors.Wrap(models.ErrResolutionConflict, dErrors.CodeConflict, "winner vanished")
	d.resolver.EXPECT().Resolve(gomock.Any(), handle).Return(id.EntityID{}, conflict)

	_, err := d.svc.UpdateField(context.Background(), models.ForHandle(handle), 3, "Acme",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	assert.ErrorIs(t, err, models.ErrResolutionConflict)
}

func TestNilReferenceRejected(t *testing.T) {
	d := newMockDeps(t)
	_, err := d.svc.UpdateField(context.Background(), models.ForEntity(id.EntityID{}), 3, "Acme",
		models.ProvenanceInput{Source: models.SourceGLEIF}, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
