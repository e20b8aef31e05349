package storage

import "errors"

// Common storage errors
var (
	// ErrEntityNotFound indicates that the entity was never created
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists indicates that an entity with this id already exists
	ErrEntityExists = errors.New("entity already exists")

	// ErrVersionMismatch indicates that the stored version differs from the expected one
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrContentTypeNotFound indicates that the content type was not found
	ErrContentTypeNotFound = errors.New("content type not found")
)
