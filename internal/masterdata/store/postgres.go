package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"masterdata/internal/masterdata/models"
	"masterdata/internal/masterdata/outbox"
	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/sentinel"
	txcontext "masterdata/pkg/platform/tx"
)

// PostgresStore persists master data in PostgreSQL. It is pure I/O: arbitration
// and routing happen in the service, which also owns the transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// inTx runs fn in the context transaction, or in a fresh one when absent.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	return NewPostgresTx(s.db, 0).RunInTx(ctx, fn)
}

var kindTables = map[models.ProfileKind]string{
	models.KindIdentity:          "entity_identity",
	models.KindRegisteredAddress: "entity_registered_address",
	models.KindTraders:           "entity_traders",
	models.KindStakeholders:      "entity_stakeholders",
}

func tableFor(kind models.ProfileKind) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("no table for profile kind %q", kind)
	}
	return pgx.Identifier{t}.Sanitize(), nil
}

func columnFor(kind models.ProfileKind, column string) (string, error) {
	if !kind.HasColumn(column) {
		return "", fmt.Errorf("column %q is not part of %s", column, kind)
	}
	return pgx.Identifier{column}.Sanitize(), nil
}

func provenanceRowID(rowID *id.RowID) uuid.UUID {
	if rowID == nil {
		return uuid.Nil
	}
	return uuid.UUID(*rowID)
}

// -----------------------------------------------------------------------------
// Entities and bridges
// -----------------------------------------------------------------------------

func (s *PostgresStore) FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	var e models.Entity
	var rawID uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, reference, created_at FROM canonical_entities WHERE id = $1`,
		uuid.UUID(entityID),
	).Scan(&rawID, &e.Reference, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", classify(err))
	}
	e.ID = id.EntityID(rawID)
	return &e, nil
}

// LockEntity takes a row lock on the entity for the rest of the context
// transaction. Without a transaction the lock is released immediately.
func (s *PostgresStore) LockEntity(ctx context.Context, entityID id.EntityID) error {
	var locked uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM canonical_entities WHERE id = $1 FOR UPDATE`,
		uuid.UUID(entityID),
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock entity: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) FindEntityByHandle(ctx context.Context, handle id.HandleID) (id.EntityID, error) {
	var entityID uuid.NullUUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT entity_id FROM entity_bridges WHERE handle_id = $1`,
		uuid.UUID(handle),
	).Scan(&entityID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !entityID.Valid) {
		return id.EntityID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.EntityID{}, fmt.Errorf("find bridge: %w", classify(err))
	}
	return id.EntityID(entityID.UUID), nil
}

// RegisterHandle records a handle with no entity yet. Idempotent.
func (s *PostgresStore) RegisterHandle(ctx context.Context, handle id.HandleID) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO entity_bridges (handle_id) VALUES ($1) ON CONFLICT (handle_id) DO NOTHING`,
		uuid.UUID(handle),
	)
	if err != nil {
		return fmt.Errorf("register handle: %w", classify(err))
	}
	return nil
}

// CreateEntityForHandle inserts entity and points handle at it in one
// transaction. If another writer already linked the handle, the insert is
// rolled back and sentinel.ErrAlreadyUsed is returned.
func (s *PostgresStore) CreateEntityForHandle(ctx context.Context, handle id.HandleID, entity models.Entity) (id.EntityID, error) {
	var linked uuid.UUID
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.CreateEntity(ctx, entity); err != nil {
			return err
		}
		err := s.execer(ctx).QueryRowContext(ctx, `
			INSERT INTO entity_bridges (handle_id, entity_id, linked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (handle_id) DO UPDATE SET
				entity_id = EXCLUDED.entity_id,
				linked_at = EXCLUDED.linked_at
			WHERE entity_bridges.entity_id IS NULL
			RETURNING entity_id
		`, uuid.UUID(handle), uuid.UUID(entity.ID), entity.CreatedAt).Scan(&linked)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrAlreadyUsed
		}
		if err != nil {
			return fmt.Errorf("link bridge: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return id.EntityID{}, err
	}
	return id.EntityID(linked), nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, entity models.Entity) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO canonical_entities (id, reference, created_at) VALUES ($1, $2, $3)`,
		uuid.UUID(entity.ID), entity.Reference, entity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", classify(err))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

func (s *PostgresStore) FindRow(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error) {
	if kind.Repeating() != (rowID != nil) {
		return nil, fmt.Errorf("find row: row id does not match kind %s", kind)
	}
	where := "entity_id = $1"
	args := []any{uuid.UUID(entityID)}
	if rowID != nil {
		where += " AND id = $2"
		args = append(args, uuid.UUID(*rowID))
	}
	rows, err := s.selectRows(ctx, entityID, kind, where, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows[0], nil
}

// ListRows returns every row of kind for the entity, oldest first.
func (s *PostgresStore) ListRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind) ([]*models.Row, error) {
	return s.selectRows(ctx, entityID, kind, "entity_id = $1", []any{uuid.UUID(entityID)})
}

func (s *PostgresStore) selectRows(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, where string, args []any) ([]*models.Row, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	columns := kind.Columns()
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	idColumn := "NULL::uuid"
	if kind.Repeating() {
		idColumn = "id"
	}
	query := fmt.Sprintf(`SELECT %s, %s, created_at, updated_at FROM %s WHERE %s ORDER BY created_at, %s`,
		idColumn, strings.Join(quoted, ", "), table, where, idColumn)

	result, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s rows: %w", kind, classify(err))
	}
	defer result.Close()

	var out []*models.Row
	for result.Next() {
		var rowID uuid.NullUUID
		values := make([]sql.NullString, len(columns))
		dest := make([]any, 0, len(columns)+3)
		dest = append(dest, &rowID)
		for i := range values {
			dest = append(dest, &values[i])
		}
		var createdAt, updatedAt time.Time
		dest = append(dest, &createdAt, &updatedAt)
		if err := result.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		var rid *id.RowID
		if rowID.Valid {
			r := id.RowID(rowID.UUID)
			rid = &r
		}
		row := models.NewRow(entityID, kind, rid, createdAt)
		row.UpdatedAt = updatedAt
		for i, c := range columns {
			if values[i].Valid {
				row.Values[c] = values[i].String
			}
		}
		out = append(out, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", kind, err)
	}
	if err := s.attachProvenance(ctx, entityID, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) attachProvenance(ctx context.Context, entityID id.EntityID, rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}
	byRow := make(map[uuid.UUID]*models.Row, len(rows))
	rowIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		key := provenanceRowID(r.ID)
		byRow[key] = r
		rowIDs = append(rowIDs, key.String())
	}
	result, err := s.execer(ctx).QueryContext(ctx, `
		SELECT row_id, field_no, source, evidence_id, verified_by, confidence, recorded_at
		FROM field_provenance
		WHERE entity_id = $1 AND kind = $2 AND row_id = ANY($3::uuid[])
	`, uuid.UUID(entityID), string(rows[0].Kind), pq.Array(rowIDs))
	if err != nil {
		return fmt.Errorf("select provenance: %w", classify(err))
	}
	defer result.Close()
	for result.Next() {
		var (
			rowID      uuid.UUID
			p          models.Provenance
			fieldNo    int
			source     string
			confidence sql.NullFloat64
		)
		if err := result.Scan(&rowID, &fieldNo, &source, &p.EvidenceID, &p.VerifiedBy, &confidence, &p.RecordedAt); err != nil {
			return fmt.Errorf("scan provenance: %w", err)
		}
		row, ok := byRow[rowID]
		if !ok {
			continue
		}
		p.FieldNo = models.FieldNo(fieldNo)
		p.Source = models.Source(source)
		if confidence.Valid {
			p.Confidence = models.Confidence(confidence.Float64)
		}
		p.RecordedAt = p.RecordedAt.UTC()
		row.Provenance[p.FieldNo] = p
	}
	return result.Err()
}

// CreateRow inserts an empty repeating row.
func (s *PostgresStore) CreateRow(ctx context.Context, row *models.Row) error {
	if row == nil || row.ID == nil || !row.Kind.Repeating() {
		return fmt.Errorf("create row: repeating rows need an id")
	}
	table, err := tableFor(row.Kind)
	if err != nil {
		return err
	}
	_, err = s.execer(ctx).ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, entity_id, created_at, updated_at) VALUES ($1, $2, $3, $3)`, table),
		uuid.UUID(*row.ID), uuid.UUID(row.EntityID), row.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert %s row: %w", row.Kind, classify(err))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Writes and audit
// -----------------------------------------------------------------------------

// ApplyWrite sets the column value, replaces the field's provenance slot,
// seals and appends the audit event and queues the outbox message, all in the
// context transaction (or a fresh one). It returns the sealed event.
func (s *PostgresStore) ApplyWrite(ctx context.Context, w models.FieldWrite) (models.AuditEvent, error) {
	table, err := tableFor(w.Target.Kind)
	if err != nil {
		return models.AuditEvent{}, err
	}
	column, err := columnFor(w.Target.Kind, w.Target.Column)
	if err != nil {
		return models.AuditEvent{}, err
	}

	var sealed models.AuditEvent
	err = s.inTx(ctx, func(ctx context.Context) error {
		now := w.Provenance.RecordedAt
		if w.Target.RowID == nil {
			query := fmt.Sprintf(`
				INSERT INTO %s (entity_id, %s, created_at, updated_at)
				VALUES ($1, $2, $3, $3)
				ON CONFLICT (entity_id) DO UPDATE SET
					%s = EXCLUDED.%s,
					updated_at = EXCLUDED.updated_at
			`, table, column, column, column)
			if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(w.EntityID), w.NewValue, now); err != nil {
				return fmt.Errorf("upsert %s value: %w", w.Target.Kind, classify(err))
			}
		} else {
			query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = $2 WHERE id = $3 AND entity_id = $4`, table, column)
			res, err := s.execer(ctx).ExecContext(ctx, query, w.NewValue, now, uuid.UUID(*w.Target.RowID), uuid.UUID(w.EntityID))
			if err != nil {
				return fmt.Errorf("update %s value: %w", w.Target.Kind, classify(err))
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update %s rows affected: %w", w.Target.Kind, err)
			}
			if affected == 0 {
				return fmt.Errorf("row %s: %w", w.Target.RowID, sentinel.ErrNotFound)
			}
		}

		p := w.Provenance
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO field_provenance (entity_id, kind, row_id, field_no, source, evidence_id, verified_by, confidence, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (entity_id, kind, row_id, field_no) DO UPDATE SET
				source = EXCLUDED.source,
				evidence_id = EXCLUDED.evidence_id,
				verified_by = EXCLUDED.verified_by,
				confidence = EXCLUDED.confidence,
				recorded_at = EXCLUDED.recorded_at
		`, uuid.UUID(w.EntityID), string(w.Target.Kind), provenanceRowID(w.Target.RowID), int(w.Target.FieldNo),
			string(p.Source), p.EvidenceID, p.VerifiedBy, p.Confidence, p.RecordedAt)
		if err != nil {
			return fmt.Errorf("upsert provenance: %w", classify(err))
		}

		prev, err := s.lastAuditEvent(ctx, w.EntityID, w.Target.FieldNo)
		if err != nil {
			return err
		}
		sealed = models.Seal(w.Audit, prev)
		if err := s.insertAuditEvent(ctx, sealed); err != nil {
			return err
		}

		msg, err := outbox.NewFieldChanged(w.Target, sealed)
		if err != nil {
			return err
		}
		return s.insertOutbox(ctx, msg)
	})
	if err != nil {
		return models.AuditEvent{}, err
	}
	return sealed, nil
}

func (s *PostgresStore) lastAuditEvent(ctx context.Context, entityID id.EntityID, fieldNo models.FieldNo) (*models.AuditEvent, error) {
	var prev models.AuditEvent
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT seq, hash FROM field_audit_events
		WHERE entity_id = $1 AND field_no = $2
		ORDER BY seq DESC
		LIMIT 1
	`, uuid.UUID(entityID), int(fieldNo)).Scan(&prev.Seq, &prev.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select last audit event: %w", classify(err))
	}
	return &prev, nil
}

func (s *PostgresStore) insertAuditEvent(ctx context.Context, e models.AuditEvent) error {
	var rowID *uuid.UUID
	if e.RowID != nil {
		r := uuid.UUID(*e.RowID)
		rowID = &r
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO field_audit_events (
			id, entity_id, row_id, field_no, seq, old_value, new_value, source,
			evidence_id, actor_id, reason, confidence, occurred_at, prev_hash, hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		uuid.UUID(e.ID), uuid.UUID(e.EntityID), rowID, int(e.FieldNo), e.Seq, e.OldValue, e.NewValue,
		string(e.Source), e.EvidenceID, e.ActorID, e.Reason, e.Confidence, e.Timestamp, e.PrevHash, e.Hash,
	)
	if err != nil {
		err = classify(err)
		// A concurrent writer took this seq; the caller retries the whole unit.
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return fmt.Errorf("append audit event: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the entity's audit events for fields, oldest first
// per field. An empty fields slice returns every field.
func (s *PostgresStore) ListAuditEvents(ctx context.Context, entityID id.EntityID, fields []models.FieldNo) ([]models.AuditEvent, error) {
	query := `
		SELECT id, row_id, field_no, seq, old_value, new_value, source,
			evidence_id, actor_id, reason, confidence, occurred_at, prev_hash, hash
		FROM field_audit_events
		WHERE entity_id = $1
	`
	args := []any{uuid.UUID(entityID)}
	if len(fields) > 0 {
		nos := make([]int64, len(fields))
		for i, f := range fields {
			nos[i] = int64(f)
		}
		query += ` AND field_no = ANY($2::int[])`
		args = append(args, pq.Array(nos))
	}
	query += ` ORDER BY field_no, seq`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", classify(err))
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var (
			e          models.AuditEvent
			eventID    uuid.UUID
			rowID      uuid.NullUUID
			fieldNo    int
			oldValue   sql.NullString
			source     string
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&eventID, &rowID, &fieldNo, &e.Seq, &oldValue, &e.NewValue, &source,
			&e.EvidenceID, &e.ActorID, &e.Reason, &confidence, &e.Timestamp, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.AuditEventID(eventID)
		e.EntityID = entityID
		e.FieldNo = models.FieldNo(fieldNo)
		e.Source = models.Source(source)
		e.Timestamp = e.Timestamp.UTC()
		if rowID.Valid {
			r := id.RowID(rowID.UUID)
			e.RowID = &r
		}
		if oldValue.Valid {
			v := oldValue.String
			e.OldValue = &v
		}
		if confidence.Valid {
			e.Confidence = models.Confidence(confidence.Float64)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Outbox
// -----------------------------------------------------------------------------

func (s *PostgresStore) insertOutbox(ctx context.Context, msg outbox.Message) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", classify(err))
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished messages, oldest first.
// Rows are locked with SKIP LOCKED so concurrent relays split the backlog.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Message, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", classify(err))
	}
	defer rows.Close()

	var out []outbox.Message
	for rows.Next() {
		var m outbox.Message
		if err := rows.Scan(&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, msgID := range ids {
		raw[i] = msgID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[]) AND published_at IS NULL`,
		at, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", classify(err))
	}
	return nil
}
