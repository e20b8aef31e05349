package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/validation"
	"github.com/iudanet/docsync/pkg/api"
)

// TokenIssuer выпускает access токены
type TokenIssuer interface {
	Issue(user models.User) (string, int64, error)
}

// TokenHandler выдает токены для локальной разработки.
// Регистрируется только когда в конфигурации включены dev токены.
type TokenHandler struct {
	logger *slog.Logger
	issuer TokenIssuer
}

// NewTokenHandler создает новый handler dev токенов
func NewTokenHandler(logger *slog.Logger, issuer TokenIssuer) *TokenHandler {
	return &TokenHandler{
		logger: logger,
		issuer: issuer,
	}
}

// Issue обрабатывает POST /api/v1/auth/token
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request", slog.Any("error", err))
		badRequest(w, h.logger, "invalid request body")
		return
	}

	if err := validation.ValidateEntityID(req.UserID); err != nil {
		badRequest(w, h.logger, "invalid user_id: "+err.Error())
		return
	}

	token, expiresIn, err := h.issuer.Issue(models.User{ID: req.UserID, Name: req.Name})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		sendError(w, h.logger, http.StatusInternalServerError, api.ErrorResponse{Code: api.CodeInternal, Message: "failed to issue token"})
		return
	}

	h.logger.InfoContext(ctx, "dev token issued", "user_id", req.UserID)
	writeJSON(w, h.logger, http.StatusOK, api.TokenResponse{AccessToken: token, ExpiresIn: expiresIn})
}
