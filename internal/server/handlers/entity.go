package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/internal/server/jwt"
	"github.com/iudanet/docsync/internal/server/realtime"
	"github.com/iudanet/docsync/internal/server/storage"
	"github.com/iudanet/docsync/internal/validation"
	"github.com/iudanet/docsync/pkg/api"
)

//go:generate moq -out entity_mock.go . Mutator

// Mutator применяет изменения к сущности под блокировкой документа и
// рассылает их подписчикам realtime канала.
type Mutator interface {
	Mutate(ctx context.Context, ref models.Ref, user models.User, expected int64, fn realtime.MutateFunc) (models.Entity, error)
	ContentType(ctx context.Context, sys models.Sys) (models.ContentType, error)
	ApplyOps(ctx context.Context, cur models.Entity, ops []patch.Op) (models.Fields, error)
}

const basePath = "/api/v1/spaces/{space}/environments/{env}"

// EntityHandler обслуживает REST API сущностей и схем
type EntityHandler struct {
	logger  *slog.Logger
	storage storage.Storage
	mutator Mutator
	clock   clock.Clock
}

// NewEntityHandler создает новый handler сущностей
func NewEntityHandler(logger *slog.Logger, storage storage.Storage, mutator Mutator, clk clock.Clock) *EntityHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &EntityHandler{
		logger:  logger,
		storage: storage,
		mutator: mutator,
		clock:   clk,
	}
}

// Register регистрирует маршруты на mux
func (h *EntityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+basePath+"/content_types/{id}", h.GetContentType)
	mux.HandleFunc("PUT "+basePath+"/content_types/{id}", h.PutContentType)

	mux.HandleFunc("GET "+basePath+"/{collection}", h.List)
	mux.HandleFunc("GET "+basePath+"/{collection}/{id}", h.Get)
	mux.HandleFunc("PUT "+basePath+"/{collection}/{id}", h.Put)
	mux.HandleFunc("PATCH "+basePath+"/{collection}/{id}", h.Patch)
	mux.HandleFunc("DELETE "+basePath+"/{collection}/{id}", h.lifecycle(models.ActionDelete))
	mux.HandleFunc("PUT "+basePath+"/{collection}/{id}/published", h.lifecycle(models.ActionPublish))
	mux.HandleFunc("DELETE "+basePath+"/{collection}/{id}/published", h.lifecycle(models.ActionUnpublish))
	mux.HandleFunc("PUT "+basePath+"/{collection}/{id}/archived", h.lifecycle(models.ActionArchive))
	mux.HandleFunc("DELETE "+basePath+"/{collection}/{id}/archived", h.lifecycle(models.ActionUnarchive))
}

// refFromRequest собирает ссылку на сущность из параметров пути
func refFromRequest(r *http.Request) (models.Ref, error) {
	t, err := models.ParseEntityType(r.PathValue("collection"))
	if err != nil {
		return models.Ref{}, fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	return models.Ref{
		Space:       r.PathValue("space"),
		Environment: r.PathValue("env"),
		Type:        t,
		ID:          r.PathValue("id"),
	}, nil
}

// versionFromRequest читает X-Entity-Version. Отсутствующий заголовок дает 0.
func versionFromRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get(api.VersionHeader)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s header %q", api.VersionHeader, raw)
	}
	return v, nil
}

// List обрабатывает GET .../{collection}
// Удаленные сущности в листинг не попадают
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromRequest(r)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	entities, err := h.storage.ListEntities(ctx, ref.Space, ref.Environment, ref.Type)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list entities", slog.Any("error", err))
		writeDomainError(w, h.logger, err)
		return
	}

	resp := api.EntityList{Items: make([]api.Entity, 0, len(entities)), Total: len(entities)}
	for _, e := range entities {
		resp.Items = append(resp.Items, api.EntityFromModel(e))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Get обрабатывает GET .../{collection}/{id}
// Надгробия возвращаются как есть: состояние Deleted видно по sys
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromRequest(r)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	entity, err := h.storage.GetEntity(r.Context(), ref)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.EntityFromModel(*entity))
}

// Put обрабатывает PUT .../{collection}/{id}
// Без X-Entity-Version создает сущность, с заголовком заменяет поля целиком
func (h *EntityHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := jwt.UserFromContext(ctx)
	if !ok {
		sendError(w, h.logger, http.StatusUnauthorized, api.ErrorResponse{Code: api.CodeUnauthorized, Message: "unauthorized"})
		return
	}

	ref, err := refFromRequest(r)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	version, err := versionFromRequest(r)
	if err != nil {
		badRequest(w, h.logger, err.Error())
		return
	}

	var req api.EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode entity request", slog.Any("error", err))
		badRequest(w, h.logger, "invalid request body")
		return
	}
	fields := models.CloneFields(req.Fields)

	if version == 0 {
		created, err := h.create(ctx, ref, user, req.ContentType, fields)
		if err == nil {
			h.logger.InfoContext(ctx, "entity created", "ref", ref.String(), "user_id", user.ID)
			writeJSON(w, h.logger, http.StatusCreated, api.EntityFromModel(*created))
			return
		}
		if !errors.Is(err, storage.ErrEntityExists) {
			writeDomainError(w, h.logger, err)
			return
		}
		// сущность уже есть: PUT без версии это конфликт, его сообщит Mutate
	}

	updated, err := h.mutator.Mutate(ctx, ref, user, version, func(cur models.Entity) (models.Entity, []patch.Op, error) {
		if req.ContentType != "" && req.ContentType != cur.Sys.ContentType {
			return models.Entity{}, nil, &models.ValidationError{Message: "content type cannot be changed"}
		}
		if err := h.validate(ctx, cur.Sys, fields); err != nil {
			return models.Entity{}, nil, err
		}
		next := cur.Clone()
		next.Fields = fields
		return next, patch.ComputePatch(cur, next, patch.DiffOptions{}), nil
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.EntityFromModel(updated))
}

func (h *EntityHandler) create(ctx context.Context, ref models.Ref, user models.User, contentType string, fields models.Fields) (*models.Entity, error) {
	now := h.clock.Now().UTC()
	entity := &models.Entity{
		Sys: models.Sys{
			ID:          ref.ID,
			Type:        ref.Type,
			Space:       ref.Space,
			Environment: ref.Environment,
			ContentType: contentType,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
			UpdatedBy:   user.ID,
		},
		Fields: fields,
	}
	if ref.Type == models.EntityTypeAsset {
		entity.Sys.ContentType = ""
	} else if contentType == "" {
		return nil, &models.ValidationError{Message: "contentType is required"}
	}

	if err := validation.ValidateEntityID(ref.ID); err != nil {
		return nil, &models.ValidationError{Message: "invalid id", Details: []string{err.Error()}}
	}
	if err := h.validate(ctx, entity.Sys, fields); err != nil {
		return nil, err
	}
	if err := h.storage.CreateEntity(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// validate проверяет значения полей по схеме сущности
func (h *EntityHandler) validate(ctx context.Context, sys models.Sys, fields models.Fields) error {
	ct, err := h.mutator.ContentType(ctx, sys)
	if err != nil {
		return err
	}
	if details := validation.ValidateFields(ct, fields); len(details) > 0 {
		return &models.ValidationError{Message: "invalid field values", Details: details}
	}
	return nil
}

// Patch обрабатывает PATCH .../{collection}/{id}
// Применяет упорядоченный список операций атомарно
func (h *EntityHandler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := jwt.UserFromContext(ctx)
	if !ok {
		sendError(w, h.logger, http.StatusUnauthorized, api.ErrorResponse{Code: api.CodeUnauthorized, Message: "unauthorized"})
		return
	}

	ref, err := refFromRequest(r)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	version, err := versionFromRequest(r)
	if err != nil {
		badRequest(w, h.logger, err.Error())
		return
	}

	var req api.PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode patch request", slog.Any("error", err))
		badRequest(w, h.logger, "invalid request body")
		return
	}
	if len(req.Ops) == 0 {
		sendError(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Code: api.CodeInvalidOperation, Message: "no operations"})
		return
	}

	updated, err := h.mutator.Mutate(ctx, ref, user, version, func(cur models.Entity) (models.Entity, []patch.Op, error) {
		fields, err := h.mutator.ApplyOps(ctx, cur, req.Ops)
		if err != nil {
			return models.Entity{}, nil, err
		}
		next := cur.Clone()
		next.Fields = fields
		return next, req.Ops, nil
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.EntityFromModel(updated))
}

// lifecycle обрабатывает publish/unpublish/archive/unarchive/delete.
// Каждое действие требует версию и увеличивает ее на единицу.
func (h *EntityHandler) lifecycle(action models.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, ok := jwt.UserFromContext(ctx)
		if !ok {
			sendError(w, h.logger, http.StatusUnauthorized, api.ErrorResponse{Code: api.CodeUnauthorized, Message: "unauthorized"})
			return
		}

		ref, err := refFromRequest(r)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		version, err := versionFromRequest(r)
		if err != nil {
			badRequest(w, h.logger, err.Error())
			return
		}

		updated, err := h.mutator.Mutate(ctx, ref, user, version, func(cur models.Entity) (models.Entity, []patch.Op, error) {
			return h.transition(ctx, cur, action)
		})
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}

		h.logger.InfoContext(ctx, "lifecycle action applied",
			"action", action,
			"ref", ref.String(),
			"version", updated.Sys.Version,
			"state", models.DeriveState(updated.Sys),
		)
		writeJSON(w, h.logger, http.StatusOK, api.EntityFromModel(updated))
	}
}

// transition меняет sys согласно действию. Версия увеличивается в Mutate.
func (h *EntityHandler) transition(ctx context.Context, cur models.Entity, action models.Action) (models.Entity, []patch.Op, error) {
	state := models.DeriveState(cur.Sys)
	if !state.Allowed(action) {
		return models.Entity{}, nil, fmt.Errorf("%w: cannot %s an entity in state %s", models.ErrActionNotAllowed, action, state)
	}

	next := cur.Clone()
	switch action {
	case models.ActionPublish:
		ct, err := h.mutator.ContentType(ctx, cur.Sys)
		if err != nil {
			return models.Entity{}, nil, err
		}
		details := append(validation.ValidateFields(ct, cur.Fields), validation.MissingRequired(ct, cur.Fields)...)
		if len(details) > 0 {
			return models.Entity{}, nil, &models.ValidationError{Message: "entity cannot be published", Details: details}
		}
		// из архива публикация снимает архивацию в той же версии
		next.Sys.ArchivedVersion = nil
		next.Sys.PublishedVersion = models.VersionPtr(cur.Sys.Version)
	case models.ActionUnpublish:
		next.Sys.PublishedVersion = nil
	case models.ActionArchive:
		next.Sys.ArchivedVersion = models.VersionPtr(cur.Sys.Version)
	case models.ActionUnarchive:
		next.Sys.ArchivedVersion = nil
	case models.ActionDelete:
		next.Sys.DeletedVersion = models.VersionPtr(cur.Sys.Version)
	}
	return next, nil, nil
}

// GetContentType обрабатывает GET .../content_types/{id}
func (h *EntityHandler) GetContentType(w http.ResponseWriter, r *http.Request) {
	ct, err := h.storage.GetContentType(r.Context(), r.PathValue("space"), r.PathValue("env"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.ContentTypeFromModel(*ct))
}

// PutContentType обрабатывает PUT .../content_types/{id}
func (h *EntityHandler) PutContentType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ContentType
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode content type", slog.Any("error", err))
		badRequest(w, h.logger, "invalid request body")
		return
	}
	if req.ID == "" {
		req.ID = r.PathValue("id")
	}
	if req.ID != r.PathValue("id") {
		badRequest(w, h.logger, "content type id does not match the path")
		return
	}

	ct := req.ToModel()
	if details := validation.ValidateContentType(ct); len(details) > 0 {
		writeDomainError(w, h.logger, &models.ValidationError{Message: "invalid content type", Details: details})
		return
	}

	if err := h.storage.SaveContentType(ctx, r.PathValue("space"), r.PathValue("env"), ct); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.ContentTypeFromModel(ct))
}
