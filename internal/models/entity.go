package models

import (
	"fmt"
	"strings"
	"time"
)

// EntityType различает два вида контента, у которых общий формат sys.
type EntityType string

const (
	EntityTypeEntry EntityType = "Entry"
	EntityTypeAsset EntityType = "Asset"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	return t == EntityTypeEntry || t == EntityTypeAsset
}

// Collection returns the REST collection segment for the type ("entries", "assets").
func (t EntityType) Collection() string {
	if t == EntityTypeAsset {
		return "assets"
	}
	return "entries"
}

// ParseEntityType принимает как имя типа ("Entry"), так и имя коллекции ("entries").
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(s) {
	case "entry", "entries":
		return EntityTypeEntry, nil
	case "asset", "assets":
		return EntityTypeAsset, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Ref identifies a single entity inside a space environment.
type Ref struct {
	Space       string     `json:"space"`
	Environment string     `json:"environment"`
	Type        EntityType `json:"type"`
	ID          string     `json:"id"`
}

// Key is the pool identity of the entity: (type, id).
func (r Ref) Key() string {
	return string(r.Type) + "/" + r.ID
}

// ChannelKey is the realtime channel name, "space!type!id".
func (r Ref) ChannelKey() string {
	return r.Space + "!" + string(r.Type) + "!" + r.ID
}

// ParseChannelKey is the inverse of ChannelKey. The environment is not part
// of the key and is left empty.
func ParseChannelKey(key string) (Ref, error) {
	parts := strings.Split(key, "!")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Ref{}, fmt.Errorf("invalid channel key %q", key)
	}
	t := EntityType(parts[1])
	if !t.Valid() {
		return Ref{}, fmt.Errorf("invalid channel key %q: unknown type", key)
	}
	return Ref{Space: parts[0], Type: t, ID: parts[2]}, nil
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", r.Space, r.Environment, r.Type, r.ID)
}

// Sys содержит серверные метаданные сущности.
// Version назначается бэкендом и растет на единицу при каждой успешной мутации.
type Sys struct {
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	PublishedVersion *int64     `json:"publishedVersion,omitempty"`
	ArchivedVersion  *int64     `json:"archivedVersion,omitempty"`
	DeletedVersion   *int64     `json:"deletedVersion,omitempty"`
	ID               string     `json:"id"`
	Type             EntityType `json:"type"`
	ContentType      string     `json:"contentType,omitempty"`
	Space            string     `json:"space"`
	Environment      string     `json:"environment"`
	UpdatedBy        string     `json:"updatedBy,omitempty"`
	Version          int64      `json:"version"`
}

// Clone returns a copy that shares no pointers with s.
func (s Sys) Clone() Sys {
	c := s
	c.PublishedVersion = cloneVersion(s.PublishedVersion)
	c.ArchivedVersion = cloneVersion(s.ArchivedVersion)
	c.DeletedVersion = cloneVersion(s.DeletedVersion)
	return c
}

// Ref builds the entity reference described by sys.
func (s Sys) Ref() Ref {
	return Ref{Space: s.Space, Environment: s.Environment, Type: s.Type, ID: s.ID}
}

// VersionPtr is a helper for optional version fields.
func VersionPtr(v int64) *int64 {
	return &v
}

func cloneVersion(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Fields maps fieldID -> locale -> value.
type Fields map[string]map[string]any

// Entity is a full snapshot of an entry or asset.
type Entity struct {
	Fields Fields `json:"fields"`
	Sys    Sys    `json:"sys"`
}

// Missing returns the placeholder for an entity that could not be loaded.
// It is distinguishable from a real entity through IsMissing.
func Missing(ref Ref) *Entity {
	return &Entity{
		Sys: Sys{
			ID:          ref.ID,
			Type:        ref.Type,
			Space:       ref.Space,
			Environment: ref.Environment,
			Version:     0,
		},
		Fields: Fields{},
	}
}

// IsMissing reports whether e is nil or the Missing placeholder.
func (e *Entity) IsMissing() bool {
	return e == nil || e.Sys.Version == 0
}

// Clone создает глубокую копию снапшота (поля копируются рекурсивно).
func (e Entity) Clone() Entity {
	return Entity{
		Sys:    e.Sys.Clone(),
		Fields: CloneFields(e.Fields),
	}
}

// CloneFields deep-copies a fields map.
func CloneFields(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for id, locales := range f {
		lc := make(map[string]any, len(locales))
		for loc, v := range locales {
			lc[loc] = CloneValue(v)
		}
		out[id] = lc
	}
	return out
}

// CloneValue deep-copies JSON-like values (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = CloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = CloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Tree renders the entity as a JSON-like tree {"sys": ..., "fields": ...}
// addressable by structural paths.
func (e Entity) Tree() map[string]any {
	fields := make(map[string]any, len(e.Fields))
	for id, locales := range e.Fields {
		lc := make(map[string]any, len(locales))
		for loc, v := range locales {
			lc[loc] = CloneValue(v)
		}
		fields[id] = lc
	}
	return map[string]any{
		"sys":    e.Sys.Map(),
		"fields": fields,
	}
}

// Map renders sys as a JSON-like map keyed by the wire field names.
// Optional versions are present only when set.
func (s Sys) Map() map[string]any {
	m := map[string]any{
		"id":          s.ID,
		"type":        string(s.Type),
		"space":       s.Space,
		"environment": s.Environment,
		"version":     s.Version,
		"createdAt":   s.CreatedAt,
		"updatedAt":   s.UpdatedAt,
	}
	if s.ContentType != "" {
		m["contentType"] = s.ContentType
	}
	if s.UpdatedBy != "" {
		m["updatedBy"] = s.UpdatedBy
	}
	if s.PublishedVersion != nil {
		m["publishedVersion"] = *s.PublishedVersion
	}
	if s.ArchivedVersion != nil {
		m["archivedVersion"] = *s.ArchivedVersion
	}
	if s.DeletedVersion != nil {
		m["deletedVersion"] = *s.DeletedVersion
	}
	return m
}

// FieldsFromTree converts the "fields" subtree back into Fields.
// Values that are not locale maps are dropped.
func FieldsFromTree(tree map[string]any) Fields {
	out := Fields{}
	raw, _ := tree["fields"].(map[string]any)
	for id, v := range raw {
		locales, ok := v.(map[string]any)
		if !ok {
			continue
		}
		lc := make(map[string]any, len(locales))
		for loc, lv := range locales {
			lc[loc] = CloneValue(lv)
		}
		out[id] = lc
	}
	return out
}
