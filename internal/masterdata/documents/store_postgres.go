package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	"masterdata/pkg/platform/sentinel"
)

// PostgresStore persists document metadata in the documents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, entity_id, owner_row_id, field_no, file_name, content_type,
	size_bytes, checksum, storage_key, uploaded_by, created_at`

func (s *PostgresStore) Save(ctx context.Context, doc *models.Document) error {
	var owner *uuid.UUID
	if doc.OwnerRowID != nil {
		u := uuid.UUID(*doc.OwnerRowID)
		owner = &u
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(doc.ID), uuid.UUID(doc.EntityID), owner, int(doc.FieldNo),
		doc.FileName, doc.ContentType, doc.Size, doc.Checksum, doc.StorageKey,
		doc.UploadedBy, doc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return sentinel.ErrAlreadyUsed
			case "23503":
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, uuid.UUID(documentID))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE entity_id = $1
		ORDER BY created_at, id`, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc      models.Document
		docID    uuid.UUID
		entityID uuid.UUID
		owner    uuid.NullUUID
		fieldNo  int
	)
	if err := row.Scan(&docID, &entityID, &owner, &fieldNo, &doc.FileName, &doc.ContentType,
		&doc.Size, &doc.Checksum, &doc.StorageKey, &doc.UploadedBy, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.ID = id.DocumentID(docID)
	doc.EntityID = id.EntityID(entityID)
	doc.FieldNo = models.FieldNo(fieldNo)
	if owner.Valid {
		rowID := id.RowID(owner.UUID)
		doc.OwnerRowID = &rowID
	}
	return &doc, nil
}
