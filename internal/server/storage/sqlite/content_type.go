package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/server/storage"
)

// GetContentType retrieves the schema by id
// Returns ErrContentTypeNotFound if it doesn't exist
func (s *Storage) GetContentType(ctx context.Context, space, env, id string) (*models.ContentType, error) {
	query := `
		SELECT id, name, fields
		FROM content_types
		WHERE space = ? AND environment = ? AND id = ?
	`

	var ct models.ContentType
	var fields string
	err := s.db.QueryRowContext(ctx, query, space, env, id).Scan(&ct.ID, &ct.Name, &fields)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrContentTypeNotFound
		}
		return nil, fmt.Errorf("failed to get content type: %w", err)
	}

	if err := json.Unmarshal([]byte(fields), &ct.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode content type fields: %w", err)
	}
	return &ct, nil
}

// SaveContentType creates or replaces the schema
func (s *Storage) SaveContentType(ctx context.Context, space, env string, ct models.ContentType) error {
	fields, err := json.Marshal(ct.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode content type fields: %w", err)
	}

	query := `
		INSERT INTO content_types (space, environment, id, name, fields, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (space, environment, id) DO UPDATE
		SET name = excluded.name, fields = excluded.fields, updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, space, env, ct.ID, ct.Name, string(fields), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save content type: %w", err)
	}
	return nil
}
