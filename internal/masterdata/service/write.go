package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"masterdata/internal/masterdata/arbitration"
	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/sentinel"
	"masterdata/pkg/platform/tx"
	"masterdata/pkg/requestcontext"
)

// maxWriteAttempts bounds retries of a write unit after a serialization
// conflict.
const maxWriteAttempts = 3

// UpdateField writes value into fieldNo of the referenced entity if the
// arbitration policy allows it. It returns true when the value is stored
// (accepted or already identical) and false when arbitration denied it.
// Denial is not an error.
func (s *Service) UpdateField(ctx context.Context, ref models.EntityRef, fieldNo models.FieldNo, value string, in models.ProvenanceInput, rowID *id.RowID) (bool, error) {
	def, err := s.route(fieldNo, rowID, valuePath)
	if err != nil {
		return false, err
	}
	if err := validateProvenance(in); err != nil {
		return false, err
	}
	return s.write(ctx, ref, def, value, in, rowID)
}

// ApplyCandidate writes a normalized candidate with its own source, evidence
// and confidence.
func (s *Service) ApplyCandidate(ctx context.Context, ref models.EntityRef, c models.Candidate, actorID string, rowID *id.RowID) (bool, error) {
	return s.UpdateField(ctx, ref, c.FieldNo, c.Value, models.ProvenanceInput{
		Source:     c.Source,
		EvidenceID: c.EvidenceID,
		Confidence: c.Confidence,
		ActorID:    actorID,
	}, rowID)
}

// ApplyManualOverride writes an operator correction. The reason is required
// and recorded in the audit event.
func (s *Service) ApplyManualOverride(ctx context.Context, ref models.EntityRef, fieldNo models.FieldNo, value, actorID, reason string, rowID *id.RowID) (bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, validationErr(models.ErrReasonRequired, "manual override of field %d requires a reason", fieldNo)
	}
	return s.UpdateField(ctx, ref, fieldNo, value, models.ProvenanceInput{
		Source:     models.SourceUserInput,
		VerifiedBy: actorID,
		Confidence: models.Confidence(1.0),
		ActorID:    actorID,
		Reason:     reason,
	}, rowID)
}

// CandidateOutcome is the result of one candidate in ApplyCandidates.
type CandidateOutcome struct {
	FieldNo models.FieldNo
	Applied bool
	Err     error
}

// ApplyCandidates applies candidates in order against one entity. Structural
// and provenance failures are reported per candidate; the handle is only
// materialized if at least one candidate passes both.
func (s *Service) ApplyCandidates(ctx context.Context, ref models.EntityRef, candidates []models.Candidate, actorID string, rowID *id.RowID) ([]CandidateOutcome, error) {
	outcomes := make([]CandidateOutcome, len(candidates))
	routable := false
	for i, c := range candidates {
		outcomes[i].FieldNo = c.FieldNo
		if _, err := s.route(c.FieldNo, rowID, valuePath); err != nil {
			outcomes[i].Err = err
			continue
		}
		if err := validateProvenance(models.ProvenanceInput{Source: c.Source, Confidence: c.Confidence}); err != nil {
			outcomes[i].Err = err
			continue
		}
		routable = true
	}
	if !routable {
		return outcomes, nil
	}

	entityID, err := s.resolveForWrite(ctx, ref)
	if err != nil {
		return nil, err
	}
	resolved := models.ForEntity(entityID)
	for i, c := range candidates {
		if outcomes[i].Err != nil {
			continue
		}
		outcomes[i].Applied, outcomes[i].Err = s.ApplyCandidate(ctx, resolved, c, actorID, rowID)
	}
	return outcomes, nil
}

// AttachDocument writes a document id into a document-only field. It is the
// only way such fields change.
func (s *Service) AttachDocument(ctx context.Context, ref models.EntityRef, fieldNo models.FieldNo, documentID id.DocumentID, in models.ProvenanceInput, rowID *id.RowID) (bool, error) {
	def, err := s.route(fieldNo, rowID, documentPath)
	if err != nil {
		return false, err
	}
	if documentID.IsNil() {
		return false, validationErr(models.ErrNotDocumentField, "document id is required")
	}
	if err := validateProvenance(in); err != nil {
		return false, err
	}
	entityID, err := s.resolveForWrite(ctx, ref)
	if err != nil {
		return false, err
	}
	if err := s.checkDocumentOwner(ctx, documentID, entityID, def, rowID); err != nil {
		return false, err
	}
	if in.EvidenceID == "" {
		in.EvidenceID = documentID.String()
	}
	return s.write(ctx, models.ForEntity(entityID), def, documentID.String(), in, rowID)
}

func (s *Service) checkDocumentOwner(ctx context.Context, documentID id.DocumentID, entityID id.EntityID, def fields.Definition, rowID *id.RowID) error {
	if s.documents == nil {
		return nil
	}
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return err
	}
	sameRow := (doc.OwnerRowID == nil && rowID == nil) ||
		(doc.OwnerRowID != nil && rowID != nil && *doc.OwnerRowID == *rowID)
	if doc.EntityID != entityID || doc.FieldNo != def.No || !sameRow {
		return validationErr(models.ErrNotDocumentField, "document %s was not uploaded for this field", documentID)
	}
	return nil
}

// write runs resolve -> lock -> read -> decide -> apply for one routed field.
func (s *Service) write(ctx context.Context, ref models.EntityRef, def fields.Definition, value string, in models.ProvenanceInput, rowID *id.RowID) (bool, error) {
	start := time.Now()
	defer s.metrics.ObserveWrite(start)

	ctx, span := s.tracer.Start(ctx, "service.write", trace.WithAttributes(
		attribute.Int("field_no", int(def.No)),
		attribute.String("source", string(in.Source)),
	))
	defer span.End()

	entityID, err := s.resolveForWrite(ctx, ref)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.String("entity_id", entityID.String()))
	if in.ActorID == "" {
		in.ActorID = requestcontext.ActorID(ctx)
	}

	var (
		decision arbitration.Decision
		event    models.AuditEvent
	)
	txCtx := tx.WithShardKey(ctx, entityID.String())
	err = s.retry(ctx, func() error {
		return s.tx.RunInTx(txCtx, func(ctx context.Context) error {
			if err := s.store.LockEntity(ctx, entityID); err != nil {
				if isNotFound(err) {
					return notFoundErr(models.ErrEntityNotFound, "entity %s not found", entityID)
				}
				return err
			}
			row, err := s.loadRow(ctx, entityID, def, rowID)
			if err != nil {
				return err
			}

			current, hasValue := row.Value(def.Column)
			var existing *models.Provenance
			if p, ok := row.ProvenanceOf(def.No); ok {
				existing = &p
			}
			decision = arbitration.Decide(existing, in.Source, hasValue && current == value)
			if !decision.Accepted() {
				return nil
			}

			now := requestcontext.Now(ctx)
			var old *string
			if hasValue {
				old = &current
			}
			event, err = s.store.ApplyWrite(ctx, models.FieldWrite{
				EntityID: entityID,
				Target:   target(def, rowID),
				NewValue: value,
				Provenance: models.Provenance{
					FieldNo:    def.No,
					Source:     in.Source,
					EvidenceID: in.EvidenceID,
					VerifiedBy: in.VerifiedBy,
					Confidence: in.Confidence,
					RecordedAt: now,
				},
				Audit: models.AuditEvent{
					ID:         id.NewAuditEventID(),
					EntityID:   entityID,
					RowID:      rowID,
					FieldNo:    def.No,
					OldValue:   old,
					NewValue:   value,
					Source:     in.Source,
					EvidenceID: in.EvidenceID,
					ActorID:    in.ActorID,
					Reason:     in.Reason,
					Confidence: in.Confidence,
					Timestamp:  now,
				},
			})
			if isNotFound(err) {
				return notFoundErr(models.ErrRowNotFound, "%s row %s not found", def.Kind, rowID)
			}
			return err
		})
	})
	if err != nil {
		err = storageErr(err, "failed to write field")
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "field write failed",
			"entity_id", entityID.String(),
			"field_no", int(def.No),
			"source", string(in.Source),
			"error", err,
		)
		return false, err
	}

	s.metrics.IncrementDecision(string(decision.Outcome), string(in.Source))
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome)))
	switch decision.Outcome {
	case arbitration.Allow:
		s.logger.InfoContext(ctx, "field write accepted",
			"log_type", "audit",
			"entity_id", entityID.String(),
			"field_no", int(def.No),
			"field", def.Key,
			"source", string(in.Source),
			"actor_id", in.ActorID,
			"seq", event.Seq,
			"rule", decision.Rule,
		)
		return true, nil
	case arbitration.NoChange:
		s.logger.DebugContext(ctx, "field write unchanged",
			"entity_id", entityID.String(),
			"field_no", int(def.No),
		)
		return true, nil
	default:
		s.logger.InfoContext(ctx, "field write denied",
			"entity_id", entityID.String(),
			"field_no", int(def.No),
			"field", def.Key,
			"source", string(in.Source),
			"reason", decision.Reason,
			"rule", decision.Rule,
		)
		return false, nil
	}
}

// retry reruns fn while it fails with a serialization conflict.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < maxWriteAttempts {
			s.metrics.IncrementWriteRetry()
			s.logger.WarnContext(ctx, "write conflict, retrying", "attempt", attempt, "error", err)
		}
	}
	return err
}
