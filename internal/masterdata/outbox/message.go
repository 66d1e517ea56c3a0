// Package outbox defines the change-feed records written alongside accepted
// field writes and the relay that publishes them.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"masterdata/internal/masterdata/models"
)

const (
	AggregateEntity  = "entity"
	EventFieldChange = "field.changed"
)

// Message is one outbox row.
type Message struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// FieldChanged is the published payload of an accepted write.
type FieldChanged struct {
	EventID    string   `json:"event_id"`
	EntityID   string   `json:"entity_id"`
	RowID      string   `json:"row_id,omitempty"`
	Kind       string   `json:"kind"`
	Column     string   `json:"column"`
	FieldNo    int      `json:"field_no"`
	Seq        int64    `json:"seq"`
	OldValue   *string  `json:"old_value"`
	NewValue   string   `json:"new_value"`
	Source     string   `json:"source"`
	EvidenceID string   `json:"evidence_id,omitempty"`
	ActorID    string   `json:"actor_id,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Timestamp  string   `json:"timestamp"`
	Hash       string   `json:"hash"`
}

// NewFieldChanged builds the outbox message for a sealed audit event.
func NewFieldChanged(target models.FieldTarget, e models.AuditEvent) (Message, error) {
	payload := FieldChanged{
		EventID:    e.ID.String(),
		EntityID:   e.EntityID.String(),
		Kind:       string(target.Kind),
		Column:     target.Column,
		FieldNo:    int(e.FieldNo),
		Seq:        e.Seq,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		Source:     string(e.Source),
		EvidenceID: e.EvidenceID,
		ActorID:    e.ActorID,
		Reason:     e.Reason,
		Confidence: e.Confidence,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Hash:       e.Hash,
	}
	if e.RowID != nil {
		payload.RowID = e.RowID.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal field change: %w", err)
	}
	return Message{
		ID:            uuid.New(),
		AggregateType: AggregateEntity,
		AggregateID:   e.EntityID.String(),
		EventType:     EventFieldChange,
		Payload:       body,
		CreatedAt:     e.Timestamp,
	}, nil
}
