package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/models"
)

var postType = models.ContentType{
	ID:   "post",
	Name: "Post",
	Fields: []models.Field{
		{ID: "title", Type: models.FieldTypeSymbol, Localized: true, Required: true},
		{ID: "views", Type: models.FieldTypeInteger},
	},
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  models.Fields
		details []string
	}{
		{
			name:   "valid",
			fields: models.Fields{"title": {"en-US": "Hello", "de-DE": "Hallo"}, "views": {"en-US": 3.0}},
		},
		{
			name:   "empty",
			fields: models.Fields{},
		},
		{
			name:    "unknown field",
			fields:  models.Fields{"author": {"en-US": "x"}},
			details: []string{`unknown field "author"`},
		},
		{
			name:    "bad locale",
			fields:  models.Fields{"title": {"EN_us": "x"}},
			details: []string{`field "title": locale "EN_us" must look like en or en-US`},
		},
		{
			name:    "wrong type",
			fields:  models.Fields{"views": {"en-US": "many"}},
			details: []string{`en-US: invalid value for field "views" (Integer): must be a number`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.details, ValidateFields(postType, tt.fields))
		})
	}
}

func TestMissingRequired(t *testing.T) {
	assert.Empty(t, MissingRequired(postType, models.Fields{"title": {"en-US": "Hello"}}))
	assert.Equal(t, []string{`required field "title" is missing`}, MissingRequired(postType, models.Fields{}))
	assert.Len(t, MissingRequired(postType, models.Fields{"title": {"en-US": ""}}), 1)
	assert.Len(t, MissingRequired(postType, models.Fields{"title": {"en-US": nil}}), 1)
}

func TestValidateContentType(t *testing.T) {
	assert.Empty(t, ValidateContentType(postType))
	assert.Empty(t, ValidateContentType(models.AssetContentType))

	bad := models.ContentType{
		ID: "1post",
		Fields: []models.Field{
			{ID: "title", Type: models.FieldTypeSymbol},
			{ID: "title", Type: models.FieldTypeText},
			{ID: "body", Type: "Markdown"},
		},
	}
	details := ValidateContentType(bad)
	require.Len(t, details, 3)
	assert.Contains(t, details[0], "content type id")
	assert.Equal(t, `duplicate field "title"`, details[1])
	assert.Equal(t, `field "body": unknown type "Markdown"`, details[2])
}
