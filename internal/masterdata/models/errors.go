package models

import "errors"

// Domain error kinds. Services wrap these with a domain-errors code; callers
// match them with errors.Is.
var (
	ErrUnknownField       = errors.New("unknown field")
	ErrUnmappedField      = errors.New("field has no storage column")
	ErrDocumentOnlyField  = errors.New("field only accepts document references")
	ErrNotDocumentField   = errors.New("field does not accept document references")
	ErrMissingRowID       = errors.New("repeating field requires a row id")
	ErrUnexpectedRowID    = errors.New("singleton field must not receive a row id")
	ErrRowNotFound        = errors.New("row not found")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrReasonRequired     = errors.New("manual override requires a reason")
	ErrUnknownSource      = errors.New("unknown source")
	ErrResolutionConflict = errors.New("entity resolution conflict")
	ErrStorageFailure     = errors.New("storage failure")
)
