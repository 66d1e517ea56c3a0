package models

import (
	"time"

	id "masterdata/pkg/domain"
)

// Provenance is the current attribution of one field in one row. It is
// overwritten on every accepted write; history lives in the audit log.
type Provenance struct {
	FieldNo    FieldNo
	Source     Source
	EvidenceID string
	VerifiedBy string
	Confidence *float64
	RecordedAt time.Time
}

// ProvenanceInput is what a caller asserts about an incoming value.
type ProvenanceInput struct {
	Source     Source
	EvidenceID string
	VerifiedBy string
	Confidence *float64
	ActorID    string
	Reason     string
}

// Confidence returns a pointer to c for optional confidence fields.
func Confidence(c float64) *float64 {
	return &c
}

// Candidate is a proposed value from a specific source. Never persisted.
type Candidate struct {
	FieldNo    FieldNo  `json:"field_no"`
	Value      string   `json:"value"`
	Source     Source   `json:"source"`
	EvidenceID string   `json:"evidence_id"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FieldTarget is the routing of a write resolved from the field catalog.
type FieldTarget struct {
	FieldNo FieldNo
	Kind    ProfileKind
	Column  string
	RowID   *id.RowID
}

// FieldWrite is one accepted write: the new column value, the provenance entry
// replacing that column's slot, and the audit event recording the change.
// Stores apply all three or none.
type FieldWrite struct {
	EntityID   id.EntityID
	Target     FieldTarget
	NewValue   string
	Provenance Provenance
	Audit      AuditEvent
}
