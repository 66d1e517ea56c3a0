package models

import (
	"time"

	id "masterdata/pkg/domain"
)

// Document is a registry entry for an uploaded file. Only its ID is ever
// written into a document-only field.
type Document struct {
	ID          id.DocumentID
	EntityID    id.EntityID
	OwnerRowID  *id.RowID
	FieldNo     FieldNo
	FileName    string
	ContentType string
	Size        int64
	Checksum    string
	StorageKey  string
	UploadedBy  string
	CreatedAt   time.Time
}
