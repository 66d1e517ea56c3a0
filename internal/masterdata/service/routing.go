package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
)

type writePath int

const (
	valuePath writePath = iota
	documentPath
	readPath
)

// route resolves fieldNo through the catalog and enforces the structural
// preconditions for the given path. It never touches storage.
func (s *Service) route(fieldNo models.FieldNo, rowID *id.RowID, path writePath) (fields.Definition, error) {
	def, err := s.fields.Lookup(fieldNo)
	if err != nil {
		return fields.Definition{}, validationErr(models.ErrUnknownField, "field %d is not in the catalog", fieldNo)
	}
	if !def.Mapped() {
		return fields.Definition{}, validationErr(models.ErrUnmappedField, "field %d (%s) has no storage column", def.No, def.Key)
	}
	switch {
	case path == valuePath && def.DocumentOnly:
		return fields.Definition{}, validationErr(models.ErrDocumentOnlyField, "field %d (%s) only accepts documents", def.No, def.Key)
	case path == documentPath && !def.DocumentOnly:
		return fields.Definition{}, validationErr(models.ErrNotDocumentField, "field %d (%s) does not accept documents", def.No, def.Key)
	}
	if def.Repeating && rowID == nil {
		return fields.Definition{}, validationErr(models.ErrMissingRowID, "field %d (%s) requires a row id", def.No, def.Key)
	}
	if !def.Repeating && rowID != nil {
		return fields.Definition{}, validationErr(models.ErrUnexpectedRowID, "field %d (%s) does not take a row id", def.No, def.Key)
	}
	return def, nil
}

func target(def fields.Definition, rowID *id.RowID) models.FieldTarget {
	return models.FieldTarget{FieldNo: def.No, Kind: def.Kind, Column: def.Column, RowID: rowID}
}

func validateProvenance(in models.ProvenanceInput) error {
	if !in.Source.IsKnown() {
		return validationErr(models.ErrUnknownSource, "source %q is not recognised", in.Source)
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1) {
		return dErrors.New(dErrors.CodeValidation, "confidence must be between 0 and 1")
	}
	return nil
}

// resolveForWrite returns the canonical entity for ref, materializing it when
// ref is a handle.
func (s *Service) resolveForWrite(ctx context.Context, ref models.EntityRef) (id.EntityID, error) {
	if ref.ID == uuid.Nil {
		return id.EntityID{}, dErrors.New(dErrors.CodeInvalidInput, "entity reference is required")
	}
	if ref.Kind == models.RefHandle {
		return s.resolver.Resolve(ctx, id.HandleID(ref.ID))
	}
	return id.EntityID(ref.ID), nil
}

// lookupForRead returns the canonical entity for ref without creating one.
// found is false when ref is a handle that has not been materialized.
func (s *Service) lookupForRead(ctx context.Context, ref models.EntityRef) (id.EntityID, bool, error) {
	if ref.ID == uuid.Nil {
		return id.EntityID{}, false, dErrors.New(dErrors.CodeInvalidInput, "entity reference is required")
	}
	if ref.Kind == models.RefHandle {
		return s.resolver.Lookup(ctx, id.HandleID(ref.ID))
	}
	entityID := id.EntityID(ref.ID)
	if _, err := s.store.FindEntity(ctx, entityID); err != nil {
		return id.EntityID{}, false, s.entityErr(err, entityID)
	}
	return entityID, true, nil
}

func (s *Service) entityErr(err error, entityID id.EntityID) error {
	if isNotFound(err) {
		return notFoundErr(models.ErrEntityNotFound, "entity %s not found", entityID)
	}
	return storageErr(err, "failed to load entity")
}

// loadRow reads the target row. A missing singleton row is not an error;
// a missing repeating row is.
func (s *Service) loadRow(ctx context.Context, entityID id.EntityID, def fields.Definition, rowID *id.RowID) (*models.Row, error) {
	row, err := s.store.FindRow(ctx, entityID, def.Kind, rowID)
	if err == nil {
		return row, nil
	}
	if isNotFound(err) {
		if rowID != nil {
			return nil, notFoundErr(models.ErrRowNotFound, "%s row %s not found", def.Kind, rowID)
		}
		return nil, nil
	}
	return nil, storageErr(err, "failed to load row")
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
