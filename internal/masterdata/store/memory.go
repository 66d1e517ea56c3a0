package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/outbox"
	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/sentinel"
)

type rowKey struct {
	entity id.EntityID
	kind   models.ProfileKind
	row    id.RowID
}

type auditKey struct {
	entity id.EntityID
	field  models.FieldNo
}

// InMemoryStore keeps entities, bridges, rows, audit chains and the outbox in
// process memory. Every mutating method validates before touching state, so a
// failed call leaves nothing behind.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[id.EntityID]models.Entity
	bridges  map[id.HandleID]*id.EntityID
	rows     map[rowKey]*models.Row
	audit    map[auditKey][]models.AuditEvent
	outbox   []outbox.Message
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		entities: make(map[id.EntityID]models.Entity),
		bridges:  make(map[id.HandleID]*id.EntityID),
		rows:     make(map[rowKey]*models.Row),
		audit:    make(map[auditKey][]models.AuditEvent),
	}
}

func keyFor(entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) rowKey {
	k := rowKey{entity: entityID, kind: kind}
	if rowID != nil {
		k.row = *rowID
	}
	return k
}

// -----------------------------------------------------------------------------
// Entities and bridges
// -----------------------------------------------------------------------------

func (s *InMemoryStore) FindEntity(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// LockEntity only checks existence; serialization comes from the tx runner.
func (s *InMemoryStore) LockEntity(ctx context.Context, entityID id.EntityID) error {
	_, err := s.FindEntity(ctx, entityID)
	return err
}

func (s *InMemoryStore) FindEntityByHandle(_ context.Context, handle id.HandleID) (id.EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	linked, ok := s.bridges[handle]
	if !ok || linked == nil {
		return id.EntityID{}, sentinel.ErrNotFound
	}
	return *linked, nil
}

// RegisterHandle records a handle with no entity yet. Idempotent.
func (s *InMemoryStore) RegisterHandle(_ context.Context, handle id.HandleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bridges[handle]; !ok {
		s.bridges[handle] = nil
	}
	return nil
}

// CreateEntityForHandle stores entity and points handle at it unless the
// handle already points elsewhere, in which case it returns
// sentinel.ErrAlreadyUsed and stores nothing.
func (s *InMemoryStore) CreateEntityForHandle(_ context.Context, handle id.HandleID, entity models.Entity) (id.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if linked := s.bridges[handle]; linked != nil {
		return id.EntityID{}, sentinel.ErrAlreadyUsed
	}
	if _, exists := s.entities[entity.ID]; exists {
		return id.EntityID{}, sentinel.ErrAlreadyUsed
	}
	s.entities[entity.ID] = entity
	entityID := entity.ID
	s.bridges[handle] = &entityID
	return entityID, nil
}

// CreateEntity stores an entity that has no handle.
func (s *InMemoryStore) CreateEntity(_ context.Context, entity models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.entities[entity.ID] = entity
	return nil
}

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

// FindRow returns a copy of the row, or sentinel.ErrNotFound.
func (s *InMemoryStore) FindRow(_ context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[keyFor(entityID, kind, rowID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return row.Clone(), nil
}

// ListRows returns copies of every row of kind, oldest first.
func (s *InMemoryStore) ListRows(_ context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Row
	for k, row := range s.rows {
		if k.entity == entityID && k.kind == kind {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return rowIDString(out[i]) < rowIDString(out[j])
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func rowIDString(r *models.Row) string {
	if r.ID == nil {
		return ""
	}
	return r.ID.String()
}

// CreateRow inserts an empty repeating row.
func (s *InMemoryStore) CreateRow(_ context.Context, row *models.Row) error {
	if row == nil || row.ID == nil {
		return fmt.Errorf("create row: repeating rows need an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[row.EntityID]; !ok {
		return sentinel.ErrNotFound
	}
	k := keyFor(row.EntityID, row.Kind, row.ID)
	if _, exists := s.rows[k]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.rows[k] = row.Clone()
	return nil
}

// -----------------------------------------------------------------------------
// Writes and audit
// -----------------------------------------------------------------------------

// ApplyWrite sets the column value, replaces the field's provenance slot,
// seals and appends the audit event and queues the outbox message. It returns
// the sealed event.
func (s *InMemoryStore) ApplyWrite(_ context.Context, w models.FieldWrite) (models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[w.EntityID]; !ok {
		return models.AuditEvent{}, sentinel.ErrNotFound
	}
	k := keyFor(w.EntityID, w.Target.Kind, w.Target.RowID)
	row, exists := s.rows[k]
	if !exists && w.Target.RowID != nil {
		return models.AuditEvent{}, fmt.Errorf("row %s: %w", w.Target.RowID, sentinel.ErrNotFound)
	}

	ak := auditKey{entity: w.EntityID, field: w.Target.FieldNo}
	chain := s.audit[ak]
	var prev *models.AuditEvent
	if len(chain) > 0 {
		prev = &chain[len(chain)-1]
	}
	event := models.Seal(w.Audit, prev)
	msg, err := outbox.NewFieldChanged(w.Target, event)
	if err != nil {
		return models.AuditEvent{}, err
	}

	// Nothing below can fail.
	if !exists {
		row = models.NewRow(w.EntityID, w.Target.Kind, nil, w.Provenance.RecordedAt)
		s.rows[k] = row
	}
	row.Values[w.Target.Column] = w.NewValue
	row.Provenance[w.Target.FieldNo] = w.Provenance
	row.UpdatedAt = w.Provenance.RecordedAt
	s.audit[ak] = append(chain, event)
	s.outbox = append(s.outbox, msg)
	return event, nil
}

// ListAuditEvents returns the entity's audit events for fields, oldest first
// per field. An empty fields slice returns every field.
func (s *InMemoryStore) ListAuditEvents(_ context.Context, entityID id.EntityID, fields []models.FieldNo) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[models.FieldNo]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	var out []models.AuditEvent
	for k, chain := range s.audit {
		if k.entity != entityID || (len(want) > 0 && !want[k.field]) {
			continue
		}
		out = append(out, chain...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FieldNo != out[j].FieldNo {
			return out[i].FieldNo < out[j].FieldNo
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Outbox
// -----------------------------------------------------------------------------

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outbox.Message
	for _, m := range s.outbox {
		if m.PublishedAt != nil {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, msgID := range ids {
		marked[msgID] = true
	}
	for i := range s.outbox {
		if marked[s.outbox[i].ID] && s.outbox[i].PublishedAt == nil {
			t := at
			s.outbox[i].PublishedAt = &t
		}
	}
	return nil
}
