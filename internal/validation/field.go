package validation

import (
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/iudanet/docsync/internal/models"
)

// LocalePattern определяет допустимый формат кода локали: "en", "en-US", "zh-Hant-TW"
var LocalePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// EntityIDPattern определяет допустимый формат идентификатора сущности
var EntityIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// FieldIDPattern определяет допустимый формат идентификатора поля
var FieldIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,63}$`)

const (
	// MaxSymbolLen максимальная длина Symbol (в символах)
	MaxSymbolLen = 256
	// MaxTextLen максимальная длина Text (в символах)
	MaxTextLen = 50000
	// maxSafeInteger наибольшее целое, точно представимое в JSON number
	maxSafeInteger = 1<<53 - 1
)

// ValidateFieldValue проверяет, что value подходит под тип поля.
// nil допустим для любого типа: это удаление значения.
// Возвращает *models.FieldValueError (errors.Is(err, models.ErrInvalidFieldValue)).
func ValidateFieldValue(field models.Field, value any) error {
	if value == nil {
		return nil
	}

	reason := check(field.Type, value)
	if reason == "" {
		return nil
	}
	return &models.FieldValueError{
		Value:   value,
		FieldID: field.ID,
		Type:    field.Type,
		Reason:  reason,
	}
}

func check(t models.FieldType, value any) string {
	switch t {
	case models.FieldTypeSymbol:
		return checkString(value, MaxSymbolLen)
	case models.FieldTypeText:
		return checkString(value, MaxTextLen)
	case models.FieldTypeInteger:
		n, ok := toFloat(value)
		if !ok {
			return "must be a number"
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "must be a finite number"
		}
		if n != math.Trunc(n) {
			return "must be an integer"
		}
		if math.Abs(n) > maxSafeInteger {
			return "integer out of range"
		}
	case models.FieldTypeNumber:
		n, ok := toFloat(value)
		if !ok {
			return "must be a number"
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "must be a finite number"
		}
	case models.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}
	case models.FieldTypeDate:
		s, ok := value.(string)
		if !ok {
			return "must be an ISO 8601 date string"
		}
		if !isDate(s) {
			return "must be an ISO 8601 date string"
		}
	case models.FieldTypeLocation:
		m, ok := value.(map[string]any)
		if !ok {
			return "must be an object with lat and lon"
		}
		lat, okLat := toFloat(m["lat"])
		lon, okLon := toFloat(m["lon"])
		if !okLat || !okLon {
			return "must be an object with lat and lon"
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return "coordinates out of range"
		}
	case models.FieldTypeLink:
		return checkLink(value)
	case models.FieldTypeArray:
		if _, ok := value.([]any); !ok {
			return "must be an array"
		}
	case models.FieldTypeObject:
		switch value.(type) {
		case map[string]any, []any:
		default:
			return "must be a JSON object or array"
		}
	case models.FieldTypeRichText:
		m, ok := value.(map[string]any)
		if !ok || m["nodeType"] != "document" {
			return "must be a rich text document"
		}
	default:
		return "unknown field type"
	}
	return ""
}

func checkString(value any, maxLen int) string {
	s, ok := value.(string)
	if !ok {
		return "must be a string"
	}
	if !utf8.ValidString(s) {
		return "must be valid UTF-8"
	}
	if utf8.RuneCountInString(s) > maxLen {
		return "too long"
	}
	return ""
}

func checkLink(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return "must be a link object"
	}
	sys, ok := m["sys"].(map[string]any)
	if !ok || sys["type"] != "Link" {
		return "must be a link object"
	}
	linkType, _ := sys["linkType"].(string)
	if _, err := models.ParseEntityType(linkType); err != nil {
		return "link type must be Entry or Asset"
	}
	if id, _ := sys["id"].(string); id == "" {
		return "link id is required"
	}
	return ""
}

// toFloat принимает float64 из JSON и целые типы Go.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func isDate(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
