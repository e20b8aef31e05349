package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/server/storage"
)

const entityColumns = `
	space, environment, type, id, content_type, fields,
	version, published_version, archived_version, deleted_version,
	updated_by, created_at, updated_at`

// GetEntity retrieves the entity, tombstones included
// Returns ErrEntityNotFound if entity doesn't exist
func (s *Storage) GetEntity(ctx context.Context, ref models.Ref) (*models.Entity, error) {
	query := `SELECT` + entityColumns + `
		FROM entities
		WHERE space = ? AND environment = ? AND type = ? AND id = ?
	`

	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, ref.Space, ref.Environment, string(ref.Type), ref.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// CreateEntity stores a new entity
// Returns ErrEntityExists if an entity with the same ref exists
func (s *Storage) CreateEntity(ctx context.Context, entity *models.Entity) error {
	fields, err := marshalFields(entity.Fields)
	if err != nil {
		return err
	}

	query := `INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	sys := entity.Sys
	_, err = s.db.ExecContext(ctx, query,
		sys.Space,
		sys.Environment,
		string(sys.Type),
		sys.ID,
		sys.ContentType,
		fields,
		sys.Version,
		nullVersion(sys.PublishedVersion),
		nullVersion(sys.ArchivedVersion),
		nullVersion(sys.DeletedVersion),
		sys.UpdatedBy,
		sys.CreatedAt.UnixMilli(),
		sys.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrEntityExists
		}
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	return nil
}

// UpdateEntity replaces the stored entity if its version equals expected
// Returns ErrVersionMismatch if the stored version differs
// Returns ErrEntityNotFound if entity doesn't exist
func (s *Storage) UpdateEntity(ctx context.Context, entity *models.Entity, expected int64) error {
	fields, err := marshalFields(entity.Fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE entities
		SET content_type = ?, fields = ?, version = ?,
		    published_version = ?, archived_version = ?, deleted_version = ?,
		    updated_by = ?, updated_at = ?
		WHERE space = ? AND environment = ? AND type = ? AND id = ? AND version = ?
	`

	sys := entity.Sys
	result, err := s.db.ExecContext(ctx, query,
		sys.ContentType,
		fields,
		sys.Version,
		nullVersion(sys.PublishedVersion),
		nullVersion(sys.ArchivedVersion),
		nullVersion(sys.DeletedVersion),
		sys.UpdatedBy,
		sys.UpdatedAt.UnixMilli(),
		sys.Space,
		sys.Environment,
		string(sys.Type),
		sys.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Ничего не обновили: либо сущности нет, либо версия другая
	if _, err := s.GetEntity(ctx, sys.Ref()); err != nil {
		return err
	}
	return storage.ErrVersionMismatch
}

// ListEntities retrieves all non-deleted entities of one type ordered by id
// Returns empty slice if no entities found
func (s *Storage) ListEntities(ctx context.Context, space, env string, t models.EntityType) ([]models.Entity, error) {
	query := `SELECT` + entityColumns + `
		FROM entities
		WHERE space = ? AND environment = ? AND type = ? AND deleted_version IS NULL
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, space, env, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := make([]models.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return entities, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.Entity, error) {
	var (
		entity                       models.Entity
		typ, fields                  string
		published, archived, deleted sql.NullInt64
		createdAt, updatedAt         int64
	)

	err := row.Scan(
		&entity.Sys.Space,
		&entity.Sys.Environment,
		&typ,
		&entity.Sys.ID,
		&entity.Sys.ContentType,
		&fields,
		&entity.Sys.Version,
		&published,
		&archived,
		&deleted,
		&entity.Sys.UpdatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.Sys.Type = models.EntityType(typ)
	entity.Sys.PublishedVersion = versionFromNull(published)
	entity.Sys.ArchivedVersion = versionFromNull(archived)
	entity.Sys.DeletedVersion = versionFromNull(deleted)
	entity.Sys.CreatedAt = time.UnixMilli(createdAt).UTC()
	entity.Sys.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if err := json.Unmarshal([]byte(fields), &entity.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if entity.Fields == nil {
		entity.Fields = models.Fields{}
	}

	return &entity, nil
}

func marshalFields(fields models.Fields) (string, error) {
	if fields == nil {
		fields = models.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(data), nil
}

func nullVersion(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func versionFromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return models.VersionPtr(v.Int64)
}

// isConstraintError reports a primary key or unique violation.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
