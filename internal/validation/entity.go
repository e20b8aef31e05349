package validation

import (
	"fmt"
	"sort"

	"github.com/iudanet/docsync/internal/models"
)

// ValidateFields проверяет все значения полей по схеме ct.
// Возвращает список нарушений, пустой если все значения допустимы.
func ValidateFields(ct models.ContentType, fields models.Fields) []string {
	var details []string

	for _, id := range sortedKeys(fields) {
		field, ok := ct.Field(id)
		if !ok {
			details = append(details, fmt.Sprintf("unknown field %q", id))
			continue
		}
		locales := fields[id]
		for _, locale := range sortedKeys(locales) {
			if err := ValidateLocale(locale); err != nil {
				details = append(details, fmt.Sprintf("field %q: %v", id, err))
				continue
			}
			if err := ValidateFieldValue(field, locales[locale]); err != nil {
				details = append(details, fmt.Sprintf("%s: %v", locale, err))
			}
		}
	}
	return details
}

// MissingRequired lists required fields without a value in any locale.
func MissingRequired(ct models.ContentType, fields models.Fields) []string {
	var details []string
	for _, f := range ct.Fields {
		if !f.Required {
			continue
		}
		present := false
		for _, v := range fields[f.ID] {
			if v != nil && v != "" {
				present = true
				break
			}
		}
		if !present {
			details = append(details, fmt.Sprintf("required field %q is missing", f.ID))
		}
	}
	return details
}

// ValidateContentType проверяет схему: идентификаторы и типы полей, без дублей.
func ValidateContentType(ct models.ContentType) []string {
	var details []string
	if err := ValidateFieldID(ct.ID); err != nil {
		details = append(details, "content type id: "+err.Error())
	}

	seen := make(map[string]bool, len(ct.Fields))
	for _, f := range ct.Fields {
		if err := ValidateFieldID(f.ID); err != nil {
			details = append(details, err.Error())
			continue
		}
		if seen[f.ID] {
			details = append(details, fmt.Sprintf("duplicate field %q", f.ID))
		}
		seen[f.ID] = true
		if !knownTypes[f.Type] {
			details = append(details, fmt.Sprintf("field %q: unknown type %q", f.ID, f.Type))
		}
	}
	return details
}

var knownTypes = map[models.FieldType]bool{
	models.FieldTypeSymbol:   true,
	models.FieldTypeText:     true,
	models.FieldTypeRichText: true,
	models.FieldTypeInteger:  true,
	models.FieldTypeNumber:   true,
	models.FieldTypeBoolean:  true,
	models.FieldTypeDate:     true,
	models.FieldTypeLocation: true,
	models.FieldTypeObject:   true,
	models.FieldTypeLink:     true,
	models.FieldTypeArray:    true,
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
