package api

import (
	"time"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
)

// VersionHeader carries the version the client believes is current.
const VersionHeader = "X-Entity-Version"

// Sys представляет серверные метаданные сущности на проводе
type Sys struct {
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	PublishedVersion *int64    `json:"publishedVersion,omitempty"`
	ArchivedVersion  *int64    `json:"archivedVersion,omitempty"`
	DeletedVersion   *int64    `json:"deletedVersion,omitempty"`
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	ContentType      string    `json:"contentType,omitempty"`
	Space            string    `json:"space"`
	Environment      string    `json:"environment"`
	UpdatedBy        string    `json:"updatedBy,omitempty"`
	Version          int64     `json:"version"`
}

// Entity представляет запись или ассет на проводе
type Entity struct {
	Fields map[string]map[string]any `json:"fields"`
	Sys    Sys                       `json:"sys"`
}

// EntityRequest тело PUT: поля целиком
type EntityRequest struct {
	Fields      map[string]map[string]any `json:"fields"`
	ContentType string                    `json:"contentType,omitempty"`
}

// PatchRequest тело PATCH: упорядоченный список операций
type PatchRequest struct {
	Ops []patch.Op `json:"ops"`
}

// EntityList представляет ответ на листинг коллекции
type EntityList struct {
	Items []Entity `json:"items"`
	Total int      `json:"total"`
}

// ContentType представляет схему полей на проводе
type ContentType struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Fields []models.Field `json:"fields"`
}

// SysFromModel конвертирует models.Sys в api.Sys
func SysFromModel(s models.Sys) Sys {
	c := s.Clone()
	return Sys{
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		PublishedVersion: c.PublishedVersion,
		ArchivedVersion:  c.ArchivedVersion,
		DeletedVersion:   c.DeletedVersion,
		ID:               c.ID,
		Type:             string(c.Type),
		ContentType:      c.ContentType,
		Space:            c.Space,
		Environment:      c.Environment,
		UpdatedBy:        c.UpdatedBy,
		Version:          c.Version,
	}
}

// ToModel конвертирует api.Sys в models.Sys
func (s Sys) ToModel() models.Sys {
	return models.Sys{
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		PublishedVersion: s.PublishedVersion,
		ArchivedVersion:  s.ArchivedVersion,
		DeletedVersion:   s.DeletedVersion,
		ID:               s.ID,
		Type:             models.EntityType(s.Type),
		ContentType:      s.ContentType,
		Space:            s.Space,
		Environment:      s.Environment,
		UpdatedBy:        s.UpdatedBy,
		Version:          s.Version,
	}.Clone()
}

// EntityFromModel конвертирует models.Entity в api.Entity
func EntityFromModel(e models.Entity) Entity {
	return Entity{
		Sys:    SysFromModel(e.Sys),
		Fields: models.CloneFields(e.Fields),
	}
}

// ToModel конвертирует api.Entity в models.Entity
func (e Entity) ToModel() models.Entity {
	return models.Entity{
		Sys:    e.Sys.ToModel(),
		Fields: models.CloneFields(e.Fields),
	}
}

// ContentTypeFromModel конвертирует models.ContentType в api.ContentType
func ContentTypeFromModel(ct models.ContentType) ContentType {
	return ContentType{ID: ct.ID, Name: ct.Name, Fields: append([]models.Field(nil), ct.Fields...)}
}

// ToModel конвертирует api.ContentType в models.ContentType
func (ct ContentType) ToModel() models.ContentType {
	return models.ContentType{ID: ct.ID, Name: ct.Name, Fields: append([]models.Field(nil), ct.Fields...)}
}
