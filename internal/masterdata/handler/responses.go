package handler

import (
	"time"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/service"
	"masterdata/internal/masterdata/validator"
	dErrors "masterdata/pkg/domain-errors"
)

// WriteResponse reports whether a write was accepted.
type WriteResponse struct {
	Applied bool `json:"applied"`
}

type ProvenanceResponse struct {
	Source     string    `json:"source"`
	EvidenceID string    `json:"evidence_id"`
	VerifiedBy string    `json:"verified_by,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type FieldResponse struct {
	EntityID   string              `json:"entity_id"`
	FieldNo    int                 `json:"field_no"`
	Key        string              `json:"key"`
	RowID      string              `json:"row_id,omitempty"`
	Value      *string             `json:"value"`
	Provenance *ProvenanceResponse `json:"provenance,omitempty"`
}

type EventResponse struct {
	Seq        int64     `json:"seq"`
	RowID      string    `json:"row_id,omitempty"`
	OldValue   *string   `json:"old_value"`
	NewValue   string    `json:"new_value"`
	Source     string    `json:"source"`
	EvidenceID string    `json:"evidence_id"`
	ActorID    string    `json:"actor_id"`
	Reason     string    `json:"reason,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Hash       string    `json:"hash"`
}

type HistoryResponse struct {
	FieldNo int             `json:"field_no"`
	Events  []EventResponse `json:"events"`
}

type OutcomeResponse struct {
	FieldNo int    `json:"field_no"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

type CandidatesResponse struct {
	Results []OutcomeResponse `json:"results"`
}

type EvaluationResponse struct {
	Action        string  `json:"action"`
	Reason        string  `json:"reason"`
	Rule          int     `json:"rule,omitempty"`
	CurrentValue  *string `json:"current_value,omitempty"`
	CurrentSource string  `json:"current_source,omitempty"`
	NewRecord     bool    `json:"new_record"`
}

type RowCreatedResponse struct {
	RowID string `json:"row_id"`
	Kind  string `json:"kind"`
}

type RowResponse struct {
	RowID  string            `json:"row_id,omitempty"`
	Values map[string]string `json:"values"`
}

type RowsResponse struct {
	Rows []RowResponse `json:"rows"`
}

type ValidationResponse struct {
	Valid   bool               `json:"valid"`
	Modules []validator.Result `json:"modules"`
}

type DocumentCreatedResponse struct {
	DocumentID string `json:"document_id"`
}

type DocumentResponse struct {
	DocumentID  string    `json:"document_id"`
	EntityID    string    `json:"entity_id"`
	RowID       string    `json:"row_id,omitempty"`
	FieldNo     int       `json:"field_no"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromFieldValue(fv service.FieldValue) FieldResponse {
	resp := FieldResponse{
		EntityID: fv.EntityID.String(),
		FieldNo:  int(fv.FieldNo),
		Key:      fv.Key,
	}
	if fv.RowID != nil {
		resp.RowID = fv.RowID.String()
	}
	if fv.Present {
		v := fv.Value
		resp.Value = &v
	}
	if p := fv.Provenance; p != nil {
		resp.Provenance = &ProvenanceResponse{
			Source:     string(p.Source),
			EvidenceID: p.EvidenceID,
			VerifiedBy: p.VerifiedBy,
			Confidence: p.Confidence,
			RecordedAt: p.RecordedAt,
		}
	}
	return resp
}

func FromHistory(fieldNo models.FieldNo, events []models.AuditEvent) HistoryResponse {
	resp := HistoryResponse{FieldNo: int(fieldNo), Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		er := EventResponse{
			Seq:        e.Seq,
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
			Source:     string(e.Source),
			EvidenceID: e.EvidenceID,
			ActorID:    e.ActorID,
			Reason:     e.Reason,
			Confidence: e.Confidence,
			Timestamp:  e.Timestamp,
			Hash:       e.Hash,
		}
		if e.RowID != nil {
			er.RowID = e.RowID.String()
		}
		resp.Events = append(resp.Events, er)
	}
	return resp
}

// FromOutcomes renders per-candidate results. Only coded errors expose their
// message.
func FromOutcomes(outcomes []service.CandidateOutcome) CandidatesResponse {
	resp := CandidatesResponse{Results: make([]OutcomeResponse, 0, len(outcomes))}
	for _, o := range outcomes {
		or := OutcomeResponse{FieldNo: int(o.FieldNo), Applied: o.Applied}
		if o.Err != nil {
			code := dErrors.CodeOf(o.Err)
			or.Error = string(code)
			if code != dErrors.CodeInternal {
				or.Error = o.Err.Error()
			}
		}
		resp.Results = append(resp.Results, or)
	}
	return resp
}

func FromEvaluation(e service.Evaluation) EvaluationResponse {
	resp := EvaluationResponse{
		Action:       string(e.Action),
		Reason:       e.Reason,
		Rule:         e.Rule,
		CurrentValue: e.CurrentValue,
		NewRecord:    e.NewRecord,
	}
	if e.CurrentSource != nil {
		resp.CurrentSource = string(*e.CurrentSource)
	}
	return resp
}

func FromRows(rows []*models.Row) RowsResponse {
	resp := RowsResponse{Rows: make([]RowResponse, 0, len(rows))}
	for _, row := range rows {
		rr := RowResponse{Values: row.Values}
		if row.ID != nil {
			rr.RowID = row.ID.String()
		}
		resp.Rows = append(resp.Rows, rr)
	}
	return resp
}

func FromDocument(d *models.Document) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:  d.ID.String(),
		EntityID:    d.EntityID.String(),
		FieldNo:     int(d.FieldNo),
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Size:        d.Size,
		Checksum:    d.Checksum,
		UploadedBy:  d.UploadedBy,
		CreatedAt:   d.CreatedAt,
	}
	if d.OwnerRowID != nil {
		resp.RowID = d.OwnerRowID.String()
	}
	return resp
}
