package service

import (
	"context"

	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/tx"
	"masterdata/pkg/requestcontext"
)

// CreateRow adds an empty row of a repeating kind and returns its id.
func (s *Service) CreateRow(ctx context.Context, ref models.EntityRef, kind models.ProfileKind) (id.RowID, error) {
	if _, err := models.ParseProfileKind(string(kind)); err != nil {
		return id.RowID{}, dErrors.Wrap(err, dErrors.CodeValidation, "unknown profile kind")
	}
	if !kind.Repeating() {
		return id.RowID{}, dErrors.New(dErrors.CodeValidation, string(kind)+" holds a single row per entity")
	}
	entityID, err := s.resolveForWrite(ctx, ref)
	if err != nil {
		return id.RowID{}, err
	}

	rowID := id.NewRowID()
	err = s.tx.RunInTx(tx.WithShardKey(ctx, entityID.String()), func(ctx context.Context) error {
		if err := s.store.LockEntity(ctx, entityID); err != nil {
			return s.entityErr(err, entityID)
		}
		return s.store.CreateRow(ctx, models.NewRow(entityID, kind, &rowID, requestcontext.Now(ctx)))
	})
	if err != nil {
		if isNotFound(err) {
			return id.RowID{}, notFoundErr(models.ErrEntityNotFound, "entity %s not found", entityID)
		}
		return id.RowID{}, storageErr(err, "failed to create row")
	}
	s.logger.InfoContext(ctx, "profile row created",
		"entity_id", entityID.String(),
		"kind", string(kind),
		"row_id", rowID.String(),
	)
	return rowID, nil
}

// ListRows returns every row of kind for the entity. Singleton kinds return
// zero or one row.
func (s *Service) ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error) {
	if _, err := models.ParseProfileKind(string(kind)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "unknown profile kind")
	}
	if _, err := s.store.FindEntity(ctx, entityID); err != nil {
		return nil, s.entityErr(err, entityID)
	}
	if !kind.Repeating() {
		row, err := s.store.FindRow(ctx, entityID, kind, nil)
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, storageErr(err, "failed to load row")
		}
		return []*models.Row{row}, nil
	}
	rows, err := s.store.ListRows(ctx, entityID, kind)
	if err != nil {
		return nil, storageErr(err, "failed to list rows")
	}
	return rows, nil
}
