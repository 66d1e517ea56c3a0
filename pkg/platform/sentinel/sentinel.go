// Package sentinel names the infrastructure facts stores report. Services
// translate them into domain errors; they never reach HTTP responses as-is.
package sentinel

import "errors"

var (
	// ErrNotFound: the entity, row, bridge or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a concurrent transaction won (serialization failure or
	// deadlock). Callers may retry the whole unit of work.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a unique key, such as a handle or document id, is taken.
	ErrAlreadyUsed = errors.New("already used")
)
