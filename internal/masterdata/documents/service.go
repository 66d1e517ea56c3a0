// Package documents is the registry for files attached to document-only
// fields. It validates uploads, streams bytes to a blob store and records
// owner-scoped metadata. Field writes only ever see the returned id.
package documents

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/metrics"
	"masterdata/internal/masterdata/models"
	id "masterdata/pkg/domain"
	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/sentinel"
	"masterdata/pkg/requestcontext"
)

// DefaultMaxSize caps an upload when no WithMaxSize option is given.
const DefaultMaxSize int64 = 10 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/tiff":      true,
}

// Store persists document metadata.
type Store interface {
	Save(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	ListByEntity(ctx context.Context, entityID id.EntityID) ([]*models.Document, error)
}

// Owners checks that the entity and owner row of an upload exist.
type Owners interface {
	FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	FindRow(ctx context.Context, entityID id.EntityID, kind models.ProfileKind, rowID *id.RowID) (*models.Row, error)
}

// BlobStore receives file bytes. Keys are opaque to the caller.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// UploadInput describes one file for a document-only field.
type UploadInput struct {
	EntityID    id.EntityID
	RowID       *id.RowID
	FieldNo     models.FieldNo
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
	UploadedBy  string
}

type Service struct {
	store   Store
	owners  Owners
	blobs   BlobStore
	fields  *fields.Registry
	maxSize int64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithMaxSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

func WithFields(r *fields.Registry) Option {
	return func(s *Service) { s.fields = r }
}

func New(store Store, owners Owners, blobs BlobStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		owners:  owners,
		blobs:   blobs,
		maxSize: DefaultMaxSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fields == nil {
		s.fields = fields.Default()
	}
	return s
}

// Upload validates in, stores its bytes and records the document. The
// returned id is what AttachDocument writes into the field.
func (s *Service) Upload(ctx context.Context, in UploadInput) (id.DocumentID, error) {
	if err := s.validate(in); err != nil {
		return id.DocumentID{}, err
	}
	if err := s.checkOwner(ctx, in); err != nil {
		return id.DocumentID{}, err
	}

	docID := id.NewDocumentID()
	fileName := path.Base(strings.ReplaceAll(in.FileName, "\\", "/"))
	key := fmt.Sprintf("entities/%s/documents/%s/%s", in.EntityID, docID, fileName)

	hash, err := blake2b.New256(nil)
	if err != nil {
		return id.DocumentID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to init checksum")
	}
	limited := io.LimitReader(in.Content, s.maxSize+1)
	written, err := s.blobs.Put(ctx, key, io.TeeReader(limited, hash), in.ContentType)
	if err != nil {
		return id.DocumentID{}, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to store document")
	}
	if written != in.Size {
		s.discard(ctx, key)
		return id.DocumentID{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("declared size %d does not match received %d bytes", in.Size, written))
	}

	doc := &models.Document{
		ID:          docID,
		EntityID:    in.EntityID,
		OwnerRowID:  in.RowID,
		FieldNo:     in.FieldNo,
		FileName:    fileName,
		ContentType: in.ContentType,
		Size:        written,
		Checksum:    hex.EncodeToString(hash.Sum(nil)),
		StorageKey:  key,
		UploadedBy:  in.UploadedBy,
		CreatedAt:   requestcontext.Now(ctx).UTC(),
	}
	if doc.UploadedBy == "" {
		doc.UploadedBy = requestcontext.ActorID(ctx)
	}
	if err := s.store.Save(ctx, doc); err != nil {
		s.discard(ctx, key)
		return id.DocumentID{}, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to record document")
	}

	s.metrics.IncrementDocumentUploaded()
	s.logger.InfoContext(ctx, "document uploaded",
		"log_type", "audit",
		"document_id", docID.String(),
		"entity_id", in.EntityID.String(),
		"field_no", int(in.FieldNo),
		"size", written,
		"uploaded_by", doc.UploadedBy,
	)
	return docID, nil
}

// Get returns a registry entry.
func (s *Service) Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	doc, err := s.store.Get(ctx, documentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(models.ErrDocumentNotFound, dErrors.CodeNotFound, fmt.Sprintf("document %s not found", documentID))
	}
	if err != nil {
		return nil, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

// List returns every document recorded for an entity, oldest first.
func (s *Service) List(ctx context.Context, entityID id.EntityID) ([]*models.Document, error) {
	docs, err := s.store.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

func (s *Service) validate(in UploadInput) error {
	if in.EntityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	def, err := s.fields.Lookup(in.FieldNo)
	if err != nil {
		return dErrors.Wrap(models.ErrUnknownField, dErrors.CodeValidation, fmt.Sprintf("field %d is not in the catalog", in.FieldNo))
	}
	if !def.DocumentOnly {
		return dErrors.Wrap(models.ErrNotDocumentField, dErrors.CodeValidation, fmt.Sprintf("field %d (%s) does not accept documents", def.No, def.Key))
	}
	if def.Repeating && in.RowID == nil {
		return dErrors.Wrap(models.ErrMissingRowID, dErrors.CodeValidation, fmt.Sprintf("field %d (%s) requires a row id", def.No, def.Key))
	}
	if !def.Repeating && in.RowID != nil {
		return dErrors.Wrap(models.ErrUnexpectedRowID, dErrors.CodeValidation, fmt.Sprintf("field %d (%s) does not take a row id", def.No, def.Key))
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" || name == "." || name == ".." || strings.HasSuffix(name, "/") {
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	if !allowedContentTypes[in.ContentType] {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("content type %q is not accepted", in.ContentType))
	}
	if in.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if in.Size > s.maxSize {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxSize))
	}
	if in.Content == nil {
		return dErrors.New(dErrors.CodeValidation, "file content is required")
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, in UploadInput) error {
	if _, err := s.owners.FindEntity(ctx, in.EntityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(models.ErrEntityNotFound, dErrors.CodeNotFound, fmt.Sprintf("entity %s not found", in.EntityID))
		}
		return dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to load entity")
	}
	if in.RowID == nil {
		return nil
	}
	def, _ := s.fields.Lookup(in.FieldNo)
	if _, err := s.owners.FindRow(ctx, in.EntityID, def.Kind, in.RowID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(models.ErrRowNotFound, dErrors.CodeNotFound, fmt.Sprintf("%s row %s not found", def.Kind, in.RowID))
		}
		return dErrors.Wrap(errors.Join(models.ErrStorageFailure, err), dErrors.CodeInternal, "failed to load row")
	}
	return nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to discard blob", "key", key, "error", err)
	}
}
