package service

import (
	"context"

	"masterdata/internal/masterdata/arbitration"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
)

// Action is the dry-run verdict of EvaluateFieldCandidate.
type Action string

const (
	ActionNoChange      Action = "NO_CHANGE"
	ActionProposeUpdate Action = "PROPOSE_UPDATE"
	ActionBlocked       Action = "BLOCKED"
)

// Evaluation describes what a candidate write would do.
type Evaluation struct {
	Action        Action
	Reason        string
	Rule          int
	CurrentValue  *string
	CurrentSource *models.Source
	// NewRecord is true when the handle has no canonical entity yet.
	NewRecord bool
}

// EvaluateFieldCandidate reports what ApplyCandidate would do without writing
// anything or materializing an entity.
func (s *Service) EvaluateFieldCandidate(ctx context.Context, ref models.EntityRef, c models.Candidate, rowID *id.RowID) (Evaluation, error) {
	def, err := s.route(c.FieldNo, rowID, valuePath)
	if err != nil {
		return Evaluation{}, err
	}
	if !c.Source.IsKnown() {
		return Evaluation{}, validationErr(models.ErrUnknownSource, "source %q is not recognised", c.Source)
	}

	entityID, found, err := s.lookupForRead(ctx, ref)
	if err != nil {
		return Evaluation{}, err
	}
	if !found {
		d := arbitration.Decide(nil, c.Source, false)
		return Evaluation{Action: ActionProposeUpdate, Reason: "new record", Rule: d.Rule, NewRecord: true}, nil
	}

	row, err := s.loadRow(ctx, entityID, def, rowID)
	if err != nil {
		return Evaluation{}, err
	}
	var eval Evaluation
	current, hasValue := row.Value(def.Column)
	if hasValue {
		eval.CurrentValue = &current
	}
	var existing *models.Provenance
	if p, ok := row.ProvenanceOf(def.No); ok {
		existing = &p
		src := p.Source
		eval.CurrentSource = &src
	}

	d := arbitration.Decide(existing, c.Source, hasValue && current == c.Value)
	eval.Reason = d.Reason
	eval.Rule = d.Rule
	switch d.Outcome {
	case arbitration.NoChange:
		eval.Action = ActionNoChange
	case arbitration.Allow:
		eval.Action = ActionProposeUpdate
	default:
		eval.Action = ActionBlocked
	}
	return eval, nil
}

// FieldValue is the current state of one field.
type FieldValue struct {
	EntityID   id.EntityID
	FieldNo    models.FieldNo
	Key        string
	RowID      *id.RowID
	Value      string
	Present    bool
	Provenance *models.Provenance
}

// GetField returns the stored value and current provenance of a field.
// An unwritten field is returned with Present false.
func (s *Service) GetField(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo, rowID *id.RowID) (FieldValue, error) {
	def, err := s.route(fieldNo, rowID, readPath)
	if err != nil {
		return FieldValue{}, err
	}
	if _, err := s.store.FindEntity(ctx, entityID); err != nil {
		return FieldValue{}, s.entityErr(err, entityID)
	}
	row, err := s.loadRow(ctx, entityID, def, rowID)
	if err != nil {
		return FieldValue{}, err
	}
	fv := FieldValue{EntityID: entityID, FieldNo: def.No, Key: def.Key, RowID: rowID}
	fv.Value, fv.Present = row.Value(def.Column)
	if p, ok := row.ProvenanceOf(def.No); ok {
		fv.Provenance = &p
	}
	return fv, nil
}

// History returns the audit events of one field, oldest first.
func (s *Service) History(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo) ([]models.AuditEvent, error) {
	if _, err := s.fields.Lookup(fieldNo); err != nil {
		return nil, validationErr(models.ErrUnknownField, "field %d is not in the catalog", fieldNo)
	}
	if _, err := s.store.FindEntity(ctx, entityID); err != nil {
		return nil, s.entityErr(err, entityID)
	}
	events, err := s.store.ListAuditEvents(ctx, entityID, []models.FieldNo{fieldNo})
	if err != nil {
		return nil, storageErr(err, "failed to read history")
	}
	return events, nil
}

// VerifyHistory checks the hash chain of one field's audit events.
func (s *Service) VerifyHistory(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo) error {
	events, err := s.History(ctx, entityID, fieldNo)
	if err != nil {
		return err
	}
	if err := models.VerifyChain(events); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "audit history failed verification")
	}
	return nil
}
