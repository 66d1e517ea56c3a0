package handler

import (
	"strings"

	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
)

// OverrideRequest is the body of a manual override.
type OverrideRequest struct {
	Value  string `json:"value"`
	Reason string `json:"reason"`
	RowID  string `json:"row_id,omitempty"`

	rowID *id.RowID
}

func (r *OverrideRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	rowID, err := parseRowID(r.RowID)
	if err != nil {
		return err
	}
	r.rowID = rowID
	return nil
}

// AttachDocumentRequest links a previously uploaded document to a field.
type AttachDocumentRequest struct {
	DocumentID string `json:"document_id"`
	EvidenceID string `json:"evidence_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RowID      string `json:"row_id,omitempty"`

	documentID id.DocumentID
	rowID      *id.RowID
}

func (r *AttachDocumentRequest) Validate() error {
	documentID, err := id.ParseDocumentID(strings.TrimSpace(r.DocumentID))
	if err != nil {
		return err
	}
	r.documentID = documentID
	if r.EvidenceID == "" {
		r.EvidenceID = "document:" + documentID.String()
	}
	rowID, err := parseRowID(r.RowID)
	if err != nil {
		return err
	}
	r.rowID = rowID
	return nil
}

// CandidatesRequest is a batch of source candidates for one entity.
type CandidatesRequest struct {
	Candidates []models.Candidate `json:"candidates"`
	RowID      string             `json:"row_id,omitempty"`

	rowID *id.RowID
}

func (r *CandidatesRequest) Validate() error {
	if len(r.Candidates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "candidates are required")
	}
	rowID, err := parseRowID(r.RowID)
	if err != nil {
		return err
	}
	r.rowID = rowID
	return nil
}

// EvaluateRequest is a single candidate to dry-run.
type EvaluateRequest struct {
	FieldNo    models.FieldNo `json:"field_no"`
	Value      string         `json:"value"`
	Source     models.Source  `json:"source"`
	EvidenceID string         `json:"evidence_id"`
	Confidence *float64       `json:"confidence,omitempty"`
	RowID      string         `json:"row_id,omitempty"`

	rowID *id.RowID
}

func (r *EvaluateRequest) Validate() error {
	if r.FieldNo <= 0 {
		return dErrors.New(dErrors.CodeValidation, "field_no must be positive")
	}
	rowID, err := parseRowID(r.RowID)
	if err != nil {
		return err
	}
	r.rowID = rowID
	return nil
}

func (r *EvaluateRequest) candidate() models.Candidate {
	return models.Candidate{
		FieldNo:    r.FieldNo,
		Value:      r.Value,
		Source:     r.Source,
		EvidenceID: r.EvidenceID,
		Confidence: r.Confidence,
	}
}

func parseRowID(raw string) (*id.RowID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rowID, err := id.ParseRowID(raw)
	if err != nil {
		return nil, err
	}
	return &rowID, nil
}
