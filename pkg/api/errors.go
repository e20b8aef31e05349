package api

import (
	"fmt"

	"github.com/iudanet/docsync/internal/models"
)

// Коды ошибок, общие для REST и realtime канала
const (
	CodeVersionMismatch  = "VersionMismatch"
	CodeValidationFailed = "ValidationFailed"
	CodeNotFound         = "NotFound"
	CodeActionNotAllowed = "ActionNotAllowed"
	CodeInvalidOperation = "InvalidOperation"
	CodeBadRequest       = "BadRequest"
	CodeUnauthorized     = "Unauthorized"
	CodeRateLimited      = "RateLimitExceeded"
	CodeInternal         = "InternalServerError"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Code    string   `json:"code"`              // машинно-читаемый код ошибки
	Message string   `json:"message"`           // описание ошибки
	Details []string `json:"details,omitempty"` // детали валидации
	Version int64    `json:"version,omitempty"` // текущая версия сущности (для VersionMismatch)
}

// Err converts the envelope into a domain error.
// sent is the version the caller believed current; snapshot is attached to
// version conflicts when the backend supplied one.
func (e ErrorResponse) Err(sent int64, snapshot *models.Entity) error {
	switch e.Code {
	case CodeVersionMismatch:
		actual := e.Version
		if actual == 0 && snapshot != nil {
			actual = snapshot.Sys.Version
		}
		return &models.VersionConflictError{Expected: sent, Actual: actual, Snapshot: snapshot}
	case CodeValidationFailed:
		return &models.ValidationError{Message: e.Message, Details: e.Details}
	case CodeNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, e.Message)
	case CodeActionNotAllowed:
		return fmt.Errorf("%w: %s", models.ErrActionNotAllowed, e.Message)
	default:
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
}
