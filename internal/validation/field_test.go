package validation

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/models"
)

func TestValidateFieldValue(t *testing.T) {
	link := func(linkType string) map[string]any {
		return map[string]any{"sys": map[string]any{"type": "Link", "linkType": linkType, "id": "x1"}}
	}

	tests := []struct {
		name      string
		fieldType models.FieldType
		value     any
		wantErr   bool
		reason    string
	}{
		{name: "nil removes any type", fieldType: models.FieldTypeInteger, value: nil},
		{name: "symbol - valid", fieldType: models.FieldTypeSymbol, value: "hello"},
		{name: "symbol - max length", fieldType: models.FieldTypeSymbol, value: strings.Repeat("я", MaxSymbolLen)},
		{name: "symbol - too long", fieldType: models.FieldTypeSymbol, value: strings.Repeat("a", MaxSymbolLen+1), wantErr: true, reason: "too long"},
		{name: "symbol - number", fieldType: models.FieldTypeSymbol, value: 42.0, wantErr: true, reason: "must be a string"},
		{name: "text - date value", fieldType: models.FieldTypeText, value: time.Now(), wantErr: true, reason: "must be a string"},
		{name: "text - invalid utf8", fieldType: models.FieldTypeText, value: "\xff", wantErr: true, reason: "UTF-8"},
		{name: "integer - valid", fieldType: models.FieldTypeInteger, value: 7.0},
		{name: "integer - go int", fieldType: models.FieldTypeInteger, value: 7},
		{name: "integer - fraction", fieldType: models.FieldTypeInteger, value: 7.5, wantErr: true, reason: "must be an integer"},
		{name: "integer - NaN", fieldType: models.FieldTypeInteger, value: math.NaN(), wantErr: true, reason: "finite"},
		{name: "integer - out of range", fieldType: models.FieldTypeInteger, value: math.Pow(2, 60), wantErr: true, reason: "out of range"},
		{name: "number - valid", fieldType: models.FieldTypeNumber, value: 3.14},
		{name: "number - infinity", fieldType: models.FieldTypeNumber, value: math.Inf(1), wantErr: true, reason: "finite"},
		{name: "number - string", fieldType: models.FieldTypeNumber, value: "3", wantErr: true, reason: "must be a number"},
		{name: "boolean - valid", fieldType: models.FieldTypeBoolean, value: false},
		{name: "boolean - string", fieldType: models.FieldTypeBoolean, value: "true", wantErr: true},
		{name: "date - day", fieldType: models.FieldTypeDate, value: "2026-03-01"},
		{name: "date - rfc3339", fieldType: models.FieldTypeDate, value: "2026-03-01T10:00:00Z"},
		{name: "date - garbage", fieldType: models.FieldTypeDate, value: "yesterday", wantErr: true},
		{name: "location - valid", fieldType: models.FieldTypeLocation, value: map[string]any{"lat": 52.5, "lon": 13.4}},
		{name: "location - out of range", fieldType: models.FieldTypeLocation, value: map[string]any{"lat": 91.0, "lon": 0.0}, wantErr: true, reason: "out of range"},
		{name: "link - entry", fieldType: models.FieldTypeLink, value: link("Entry")},
		{name: "link - unknown type", fieldType: models.FieldTypeLink, value: link("Space"), wantErr: true, reason: "link type"},
		{name: "array - valid", fieldType: models.FieldTypeArray, value: []any{"a"}},
		{name: "array - object", fieldType: models.FieldTypeArray, value: map[string]any{}, wantErr: true},
		{name: "object - map", fieldType: models.FieldTypeObject, value: map[string]any{"k": 1.0}},
		{name: "object - scalar", fieldType: models.FieldTypeObject, value: "x", wantErr: true},
		{name: "rich text - document", fieldType: models.FieldTypeRichText, value: map[string]any{"nodeType": "document", "content": []any{}}},
		{name: "rich text - paragraph", fieldType: models.FieldTypeRichText, value: map[string]any{"nodeType": "paragraph"}, wantErr: true},
		{name: "unknown type", fieldType: "Color", value: "red", wantErr: true, reason: "unknown field type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := models.Field{ID: "f", Type: tt.fieldType}
			err := ValidateFieldValue(field, tt.value)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidFieldValue))

			var fve *models.FieldValueError
			require.True(t, errors.As(err, &fve))
			assert.Equal(t, "f", fve.FieldID)
			assert.Equal(t, tt.fieldType, fve.Type)
			if tt.reason != "" {
				assert.Contains(t, fve.Reason, tt.reason)
			}
		})
	}
}

func TestValidateLocale(t *testing.T) {
	for _, ok := range []string{"en", "en-US", "zh-Hant-TW", "de"} {
		assert.NoError(t, ValidateLocale(ok), ok)
	}
	for _, bad := range []string{"", "EN", "en_US", "e", "en-"} {
		assert.Error(t, ValidateLocale(bad), bad)
	}
}

func TestValidateFieldID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
		errMsg  string
	}{
		{name: "valid - simple", id: "title"},
		{name: "valid - underscore and digits", id: "hero_image2"},
		{name: "invalid - empty", id: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "invalid - leading digit", id: "2title", wantErr: true, errMsg: "must start with a letter"},
		{name: "invalid - dash", id: "hero-image", wantErr: true, errMsg: "can only contain"},
		{name: "invalid - too long", id: "a" + strings.Repeat("b", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEntityID(t *testing.T) {
	valid := []string{"e1", "6f1c2f0e-8d1a-4a53-9c7e-2b3f0c4d5e6f", "hero.image_2"}
	for _, id := range valid {
		assert.NoError(t, ValidateEntityID(id), id)
	}

	invalid := []string{"", "a!b", "a/b", "with space", strings.Repeat("x", 65)}
	for _, id := range invalid {
		assert.Error(t, ValidateEntityID(id), id)
	}
}
