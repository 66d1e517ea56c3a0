package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "masterdata/pkg/domain"
)

// FieldNo is the stable numeric key of a catalog field.
type FieldNo int

// Entity is the golden-record anchor all field values attach to.
type Entity struct {
	ID        id.EntityID
	Reference string
	CreatedAt time.Time
}

// ReferenceFor derives the human-facing reference of an entity materialized
// from handle. Stable for a given handle; not guaranteed unique.
func ReferenceFor(handle id.HandleID) string {
	hex := strings.ReplaceAll(uuid.UUID(handle).String(), "-", "")
	return "LE-" + strings.ToUpper(hex[:12])
}

// Bridge links a client-facing handle to its canonical entity.
type Bridge struct {
	HandleID id.HandleID
	EntityID id.EntityID
	LinkedAt time.Time
}

// RefKind says how an EntityRef should be interpreted.
type RefKind int

const (
	// RefEntity addresses a canonical entity directly.
	RefEntity RefKind = iota
	// RefHandle addresses a client handle that may not be materialized yet.
	RefHandle
)

func (k RefKind) String() string {
	if k == RefHandle {
		return "handle"
	}
	return "entity"
}

// EntityRef is either a canonical entity id or a client handle.
type EntityRef struct {
	ID   uuid.UUID
	Kind RefKind
}

// ForEntity addresses a canonical entity.
func ForEntity(entityID id.EntityID) EntityRef {
	return EntityRef{ID: uuid.UUID(entityID), Kind: RefEntity}
}

// ForHandle addresses a client handle.
func ForHandle(handle id.HandleID) EntityRef {
	return EntityRef{ID: uuid.UUID(handle), Kind: RefHandle}
}

// Row is one stored profile row. Singleton rows have a nil ID. Values are keyed
// by column; Provenance is keyed by field number and scoped to this row.
type Row struct {
	ID         *id.RowID
	EntityID   id.EntityID
	Kind       ProfileKind
	Values     map[string]string
	Provenance map[FieldNo]Provenance
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRow returns an empty row with initialized maps.
func NewRow(entityID id.EntityID, kind ProfileKind, rowID *id.RowID, now time.Time) *Row {
	return &Row{
		ID:         rowID,
		EntityID:   entityID,
		Kind:       kind,
		Values:     make(map[string]string),
		Provenance: make(map[FieldNo]Provenance),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Value returns the stored value of column. A nil row has no values.
func (r *Row) Value(column string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.Values[column]
	return v, ok
}

// ProvenanceOf returns the current attribution of field, if any.
func (r *Row) ProvenanceOf(field FieldNo) (Provenance, bool) {
	if r == nil {
		return Provenance{}, false
	}
	p, ok := r.Provenance[field]
	return p, ok
}

// Clone deep-copies the row so callers can't mutate store state.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	out := *r
	if r.ID != nil {
		rowID := *r.ID
		out.ID = &rowID
	}
	out.Values = make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	out.Provenance = make(map[FieldNo]Provenance, len(r.Provenance))
	for k, v := range r.Provenance {
		out.Provenance[k] = v
	}
	return &out
}
