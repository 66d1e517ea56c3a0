package domain

import (
	"github.com/google/uuid"

	dErrors "masterdata/pkg/domain-errors"
)

// Typed identifiers keep entity, handle, row and document ids from being
// swapped at call sites. All of them are UUIDs on the wire and in storage.
type (
	EntityID     uuid.UUID
	HandleID     uuid.UUID
	RowID        uuid.UUID
	DocumentID   uuid.UUID
	AuditEventID uuid.UUID
)

func (id EntityID) String() string     { return uuid.UUID(id).String() }
func (id HandleID) String() string     { return uuid.UUID(id).String() }
func (id RowID) String() string        { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id AuditEventID) String() string { return uuid.UUID(id).String() }

func (id EntityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id HandleID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RowID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewEntityID, NewRowID and friends mint random (v4) identifiers.
func NewEntityID() EntityID         { return EntityID(uuid.New()) }
func NewRowID() RowID               { return RowID(uuid.New()) }
func NewDocumentID() DocumentID     { return DocumentID(uuid.New()) }
func NewAuditEventID() AuditEventID { return AuditEventID(uuid.New()) }

// ParseEntityID parses a non-nil entity id.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "entity ID")
	return EntityID(u), err
}

// ParseHandleID parses a non-nil client handle id.
func ParseHandleID(s string) (HandleID, error) {
	u, err := parseUUID(s, "handle ID")
	return HandleID(u), err
}

// ParseRowID parses a non-nil repeating row id.
func ParseRowID(s string) (RowID, error) {
	u, err := parseUUID(s, "row ID")
	return RowID(u), err
}

// ParseDocumentID parses a non-nil document id.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document ID")
	return DocumentID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
