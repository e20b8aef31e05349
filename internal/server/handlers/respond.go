package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/server/storage"
	"github.com/iudanet/docsync/pkg/api"
)

// writeJSON отправляет успешный ответ в формате JSON
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет ответ с ошибкой в формате api.ErrorResponse
func sendError(w http.ResponseWriter, logger *slog.Logger, status int, resp api.ErrorResponse) {
	writeJSON(w, logger, status, resp)
}

// writeDomainError переводит доменную ошибку в HTTP статус и код ошибки
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		conflict   *models.VersionConflictError
		validation *models.ValidationError
	)

	switch {
	case errors.As(err, &conflict):
		sendError(w, logger, http.StatusConflict, api.ErrorResponse{
			Code:    api.CodeVersionMismatch,
			Message: conflict.Error(),
			Version: conflict.Actual,
		})
	case errors.As(err, &validation):
		sendError(w, logger, http.StatusUnprocessableEntity, api.ErrorResponse{
			Code:    api.CodeValidationFailed,
			Message: validation.Message,
			Details: validation.Details,
		})
	case errors.Is(err, models.ErrEntityDeleted):
		sendError(w, logger, http.StatusUnprocessableEntity, api.ErrorResponse{
			Code:    api.CodeValidationFailed,
			Message: "entity is deleted",
		})
	case errors.Is(err, models.ErrActionNotAllowed):
		sendError(w, logger, http.StatusBadRequest, api.ErrorResponse{
			Code:    api.CodeActionNotAllowed,
			Message: err.Error(),
		})
	case errors.Is(err, storage.ErrEntityNotFound), errors.Is(err, storage.ErrContentTypeNotFound), errors.Is(err, models.ErrNotFound):
		sendError(w, logger, http.StatusNotFound, api.ErrorResponse{
			Code:    api.CodeNotFound,
			Message: err.Error(),
		})
	default:
		logger.Error("request failed", slog.Any("error", err))
		sendError(w, logger, http.StatusInternalServerError, api.ErrorResponse{
			Code:    api.CodeInternal,
			Message: "internal server error",
		})
	}
}

func badRequest(w http.ResponseWriter, logger *slog.Logger, message string) {
	sendError(w, logger, http.StatusBadRequest, api.ErrorResponse{Code: api.CodeBadRequest, Message: message})
}
