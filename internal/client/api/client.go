package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/pkg/api"
)

// DefaultEnvironment используется, если в Ref не указано окружение
const DefaultEnvironment = "master"

// ErrUnauthorized возвращается при 401 от сервера
var ErrUnauthorized = errors.New("unauthorized")

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token возвращает access token, с которым работает клиент
func (c *Client) Token() string {
	return c.token
}

// EntityPath строит путь REST ресурса сущности
func EntityPath(ref models.Ref) string {
	env := ref.Environment
	if env == "" {
		env = DefaultEnvironment
	}
	return fmt.Sprintf("/api/v1/spaces/%s/environments/%s/%s/%s",
		url.PathEscape(ref.Space), url.PathEscape(env), ref.Type.Collection(), url.PathEscape(ref.ID))
}

// GetEntity загружает текущий снапшот сущности
func (c *Client) GetEntity(ctx context.Context, ref models.Ref) (*models.Entity, error) {
	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodGet, EntityPath(ref), 0, nil, &resp); err != nil {
		return nil, fmt.Errorf("get entity %s: %w", ref.Key(), err)
	}
	e := resp.ToModel()
	return &e, nil
}

// ListEntities возвращает сущности одного типа в окружении
func (c *Client) ListEntities(ctx context.Context, space, env string, t models.EntityType) ([]models.Entity, error) {
	ref := models.Ref{Space: space, Environment: env, Type: t}
	path := EntityPath(ref)
	path = path[:len(path)-1] // без завершающего "/"

	var resp api.EntityList
	if err := c.doRequest(ctx, http.MethodGet, path, 0, nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Collection(), err)
	}

	out := make([]models.Entity, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, item.ToModel())
	}
	return out, nil
}

// CreateEntity создает сущность с заданным id (PUT без версии)
func (c *Client) CreateEntity(ctx context.Context, ref models.Ref, contentType string, fields models.Fields) (*models.Entity, error) {
	req := api.EntityRequest{Fields: fields, ContentType: contentType}
	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodPut, EntityPath(ref), 0, req, &resp); err != nil {
		return nil, fmt.Errorf("create entity %s: %w", ref.Key(), err)
	}
	e := resp.ToModel()
	return &e, nil
}

// PutEntity заменяет поля сущности целиком
func (c *Client) PutEntity(ctx context.Context, ref models.Ref, version int64, fields models.Fields) (*models.Entity, error) {
	req := api.EntityRequest{Fields: fields}
	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodPut, EntityPath(ref), version, req, &resp); err != nil {
		return nil, fmt.Errorf("put entity %s: %w", ref.Key(), err)
	}
	e := resp.ToModel()
	return &e, nil
}

// PatchEntity применяет список операций к сущности
func (c *Client) PatchEntity(ctx context.Context, ref models.Ref, version int64, ops []patch.Op) (*models.Entity, error) {
	req := api.PatchRequest{Ops: ops}
	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodPatch, EntityPath(ref), version, req, &resp); err != nil {
		return nil, fmt.Errorf("patch entity %s: %w", ref.Key(), err)
	}
	e := resp.ToModel()
	return &e, nil
}

// Publish публикует текущую версию сущности
func (c *Client) Publish(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
	return c.lifecycle(ctx, http.MethodPut, EntityPath(ref)+"/published", version, models.ActionPublish)
}

// Unpublish снимает сущность с публикации
func (c *Client) Unpublish(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
	return c.lifecycle(ctx, http.MethodDelete, EntityPath(ref)+"/published", version, models.ActionUnpublish)
}

// Archive архивирует сущность
func (c *Client) Archive(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
	return c.lifecycle(ctx, http.MethodPut, EntityPath(ref)+"/archived", version, models.ActionArchive)
}

// Unarchive возвращает сущность из архива в черновик
func (c *Client) Unarchive(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
	return c.lifecycle(ctx, http.MethodDelete, EntityPath(ref)+"/archived", version, models.ActionUnarchive)
}

// Delete удаляет сущность. Сервер оставляет надгробие с deletedVersion.
func (c *Client) Delete(ctx context.Context, ref models.Ref, version int64) (models.Sys, error) {
	return c.lifecycle(ctx, http.MethodDelete, EntityPath(ref), version, models.ActionDelete)
}

func (c *Client) lifecycle(ctx context.Context, method, path string, version int64, action models.Action) (models.Sys, error) {
	var resp api.Entity
	if err := c.doRequest(ctx, method, path, version, nil, &resp); err != nil {
		return models.Sys{}, fmt.Errorf("%s request failed: %w", action, err)
	}
	return resp.Sys.ToModel(), nil
}

// GetContentType загружает схему полей
func (c *Client) GetContentType(ctx context.Context, space, env, id string) (*models.ContentType, error) {
	var resp api.ContentType
	if err := c.doRequest(ctx, http.MethodGet, contentTypePath(space, env, id), 0, nil, &resp); err != nil {
		return nil, fmt.Errorf("get content type %s: %w", id, err)
	}
	ct := resp.ToModel()
	return &ct, nil
}

// PutContentType создает или заменяет схему полей
func (c *Client) PutContentType(ctx context.Context, space, env string, ct models.ContentType) error {
	if err := c.doRequest(ctx, http.MethodPut, contentTypePath(space, env, ct.ID), 0, api.ContentTypeFromModel(ct), nil); err != nil {
		return fmt.Errorf("put content type %s: %w", ct.ID, err)
	}
	return nil
}

// TokenPath is the development token endpoint.
const TokenPath = "/api/v1/auth/token"

// IssueToken запрашивает dev токен. Сервер отдает 404, если выдача выключена.
func (c *Client) IssueToken(ctx context.Context, userID, name string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	req := api.TokenRequest{UserID: userID, Name: name}
	if err := c.doRequest(ctx, http.MethodPost, TokenPath, 0, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/health", 0, nil, nil)
}

func contentTypePath(space, env, id string) string {
	if env == "" {
		env = DefaultEnvironment
	}
	return fmt.Sprintf("/api/v1/spaces/%s/environments/%s/content_types/%s",
		url.PathEscape(space), url.PathEscape(env), url.PathEscape(id))
}

// doRequest выполняет HTTP запрос. version > 0 отправляется в X-Entity-Version.
func (c *Client) doRequest(ctx context.Context, method, path string, version int64, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if version > 0 {
		req.Header.Set(api.VersionHeader, strconv.FormatInt(version, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody, version)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError переводит ответ с ошибкой в доменную ошибку
func statusError(status int, body []byte, sent int64) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Code == "" {
		errResp = api.ErrorResponse{Message: string(bytes.TrimSpace(body))}
		switch status {
		case http.StatusConflict:
			errResp.Code = api.CodeVersionMismatch
		case http.StatusUnprocessableEntity:
			errResp.Code = api.CodeValidationFailed
		case http.StatusNotFound:
			errResp.Code = api.CodeNotFound
		}
	}

	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, errResp.Message)
	}
	if errResp.Code == "" {
		return fmt.Errorf("request failed with status %d: %s", status, errResp.Message)
	}
	return fmt.Errorf("server error (%d): %w", status, errResp.Err(sent, nil))
}
