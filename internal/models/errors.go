package models

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors shared by client and server.
var (
	// ErrVersionConflict indicates that the caller's version is stale; reload before retrying
	ErrVersionConflict = errors.New("version conflict")

	// ErrValidationFailed indicates that the backend rejected the payload
	ErrValidationFailed = errors.New("validation failed")

	// ErrTransport indicates that the realtime channel is not usable
	ErrTransport = errors.New("transport error")

	// ErrInvalidFieldValue indicates a value that does not fit the field type
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrEntityDeleted indicates a mutation attempt on a deleted entity
	ErrEntityDeleted = errors.New("entity is deleted")

	// ErrActionNotAllowed indicates a lifecycle action invalid in the current state
	ErrActionNotAllowed = errors.New("action not allowed in current state")

	// ErrNotFound indicates that the entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrDocumentStale indicates that the document lost its channel and must be reopened
	ErrDocumentStale = errors.New("document is stale")

	// ErrDocumentDestroyed indicates use of a document after Destroy
	ErrDocumentDestroyed = errors.New("document is destroyed")
)

// VersionConflictError carries the authoritative snapshot when the backend sent one.
type VersionConflictError struct {
	Snapshot *Entity
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: sent %d, current %d", e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrVersionConflict).
func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

// ValidationError is surfaced verbatim from the backend.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "validation failed: " + e.Message
	}
	return "validation failed: " + e.Message + " (" + strings.Join(e.Details, "; ") + ")"
}

// Unwrap allows errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// FieldValueError describes a value rejected before any network call.
type FieldValueError struct {
	Value   any
	FieldID string
	Type    FieldType
	Reason  string
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("invalid value for field %q (%s): %s", e.FieldID, e.Type, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidFieldValue).
func (e *FieldValueError) Unwrap() error {
	return ErrInvalidFieldValue
}
