package storage

import (
	"context"

	"github.com/iudanet/docsync/internal/models"
)

// EntityStorage defines persistence of entries and assets.
// Deleted entities stay in the storage as tombstones with DeletedVersion set.
type EntityStorage interface {
	// GetEntity retrieves the entity, tombstones included
	// Returns ErrEntityNotFound if entity doesn't exist
	GetEntity(ctx context.Context, ref models.Ref) (*models.Entity, error)

	// CreateEntity stores a new entity
	// Returns ErrEntityExists if an entity with the same ref exists
	CreateEntity(ctx context.Context, entity *models.Entity) error

	// UpdateEntity replaces the stored entity if its version equals expected
	// Returns ErrVersionMismatch if the stored version differs
	// Returns ErrEntityNotFound if entity doesn't exist
	UpdateEntity(ctx context.Context, entity *models.Entity, expected int64) error

	// ListEntities retrieves all non-deleted entities of one type ordered by id
	// Returns empty slice if no entities found
	ListEntities(ctx context.Context, space, env string, t models.EntityType) ([]models.Entity, error)
}

// ContentTypeStorage defines persistence of content type schemas.
type ContentTypeStorage interface {
	// GetContentType retrieves the schema by id
	// Returns ErrContentTypeNotFound if it doesn't exist
	GetContentType(ctx context.Context, space, env, id string) (*models.ContentType, error)

	// SaveContentType creates or replaces the schema
	SaveContentType(ctx context.Context, space, env string, ct models.ContentType) error
}

// Storage combines entity and schema persistence.
type Storage interface {
	EntityStorage
	ContentTypeStorage
}
