package models

// FieldType is the declared type of a content type field.
type FieldType string

const (
	FieldTypeSymbol   FieldType = "Symbol"
	FieldTypeText     FieldType = "Text"
	FieldTypeRichText FieldType = "RichText"
	FieldTypeInteger  FieldType = "Integer"
	FieldTypeNumber   FieldType = "Number"
	FieldTypeBoolean  FieldType = "Boolean"
	FieldTypeDate     FieldType = "Date"
	FieldTypeLocation FieldType = "Location"
	FieldTypeObject   FieldType = "Object"
	FieldTypeLink     FieldType = "Link"
	FieldTypeArray    FieldType = "Array"
)

// IsString reports whether values of this type are edited as plain strings.
// Such fields are synchronized with character-level insert/delete operations.
func (t FieldType) IsString() bool {
	return t == FieldTypeSymbol || t == FieldTypeText
}

// Field describes one field of a content type.
type Field struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Localized bool      `json:"localized"`
	Required  bool      `json:"required"`
}

// ContentType описывает схему полей записи.
type ContentType struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field looks up a field by id.
func (ct ContentType) Field(id string) (Field, bool) {
	for _, f := range ct.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// AssetContentType is the fixed schema shared by all assets.
var AssetContentType = ContentType{
	ID:   "asset",
	Name: "Asset",
	Fields: []Field{
		{ID: "title", Name: "Title", Type: FieldTypeSymbol, Localized: true},
		{ID: "description", Name: "Description", Type: FieldTypeText, Localized: true},
		{ID: "file", Name: "File", Type: FieldTypeObject, Localized: true},
	},
}
