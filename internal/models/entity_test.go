package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_ChannelKey(t *testing.T) {
	ref := Ref{Space: "s1", Environment: "master", Type: EntityTypeEntry, ID: "e1"}
	assert.Equal(t, "s1!Entry!e1", ref.ChannelKey())
	assert.Equal(t, "Entry/e1", ref.Key())

	parsed, err := ParseChannelKey(ref.ChannelKey())
	require.NoError(t, err)
	assert.Equal(t, "s1", parsed.Space)
	assert.Equal(t, EntityTypeEntry, parsed.Type)
	assert.Equal(t, "e1", parsed.ID)

	_, err = ParseChannelKey("s1!Thing!e1")
	assert.Error(t, err)
	_, err = ParseChannelKey("s1!Entry")
	assert.Error(t, err)
}

func TestParseEntityType(t *testing.T) {
	for _, in := range []string{"Entry", "entries", "ENTRY"} {
		got, err := ParseEntityType(in)
		require.NoError(t, err)
		assert.Equal(t, EntityTypeEntry, got)
	}
	got, err := ParseEntityType("assets")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeAsset, got)
	assert.Equal(t, "assets", got.Collection())

	_, err = ParseEntityType("page")
	assert.Error(t, err)
}

func TestEntity_Clone(t *testing.T) {
	original := Entity{
		Sys: Sys{ID: "e1", Version: 3, PublishedVersion: VersionPtr(2)},
		Fields: Fields{
			"tags": {"en-US": []any{"a", map[string]any{"k": "v"}}},
		},
	}

	clone := original.Clone()
	assert.Equal(t, original, clone)

	*clone.Sys.PublishedVersion = 7
	clone.Fields["tags"]["en-US"].([]any)[1].(map[string]any)["k"] = "changed"

	assert.Equal(t, int64(2), *original.Sys.PublishedVersion)
	assert.Equal(t, "v", original.Fields["tags"]["en-US"].([]any)[1].(map[string]any)["k"])
}

func TestMissing(t *testing.T) {
	ref := Ref{Space: "s1", Type: EntityTypeAsset, ID: "a1"}
	missing := Missing(ref)

	assert.True(t, missing.IsMissing())
	assert.Equal(t, "a1", missing.Sys.ID)

	var nilEntity *Entity
	assert.True(t, nilEntity.IsMissing())

	loaded := &Entity{Sys: Sys{Version: 1}}
	assert.False(t, loaded.IsMissing())
}

func TestEntity_Tree(t *testing.T) {
	e := Entity{
		Sys:    Sys{ID: "e1", Version: 4, ArchivedVersion: VersionPtr(3)},
		Fields: Fields{"title": {"en-US": "Hello"}},
	}

	tree := e.Tree()
	sys := tree["sys"].(map[string]any)
	assert.Equal(t, int64(4), sys["version"])
	assert.Equal(t, int64(3), sys["archivedVersion"])
	_, hasPublished := sys["publishedVersion"]
	assert.False(t, hasPublished)

	back := FieldsFromTree(tree)
	assert.Equal(t, e.Fields, back)
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &VersionConflictError{Expected: 3, Actual: 5}
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Contains(t, err.Error(), "sent 3, current 5")

	err = &ValidationError{Message: "bad", Details: []string{"title required"}}
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "title required")

	err = &FieldValueError{FieldID: "title", Type: FieldTypeSymbol, Reason: "expected string"}
	assert.True(t, errors.Is(err, ErrInvalidFieldValue))
}
