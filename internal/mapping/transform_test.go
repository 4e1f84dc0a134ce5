package mapping

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func rec(fields map[string]any) model.ConnectorRecord {
	return model.ConnectorRecord{ID: "1", Path: "src/1.json", Fields: fields}
}

func TestTransform_RenameExactOutput(t *testing.T) {
	out, err := Transform(rec(map[string]any{"title": "Hello"}), model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Hello"}, out)
}

func TestTransform_AbsentValueSkipped(t *testing.T) {
	out, err := Transform(rec(map[string]any{"title": "Hello"}), model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
		model.LocalMapping{SourceColumnID: "body", DestinationColumnID: "content"},
		model.LocalMapping{SourceColumnID: "author", DestinationColumnID: "meta.author"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Hello"}, out)
	assert.NotContains(t, out, "content")
	assert.NotContains(t, out, "meta", "no intermediate object for an absent value")
}

func TestTransform_PresentNullCopied(t *testing.T) {
	out, err := Transform(rec(map[string]any{"title": nil}), model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
	})

	require.NoError(t, err)
	v, ok := out["name"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestTransform_NestedDestination(t *testing.T) {
	out, err := Transform(rec(map[string]any{"price": json.Number("10"), "currency": "EUR"}), model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "price", DestinationColumnID: "pricing.amount"},
		model.LocalMapping{SourceColumnID: "currency", DestinationColumnID: "pricing.currency"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"pricing": map[string]any{"amount": json.Number("10"), "currency": "EUR"},
	}, out)
}

func TestTransform_SourceColumnIsFlatKey(t *testing.T) {
	// A dotted source column is a literal key, not a path.
	out, err := Transform(rec(map[string]any{
		"a.b": "flat",
		"a":   map[string]any{"b": "nested"},
	}), model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "a.b", DestinationColumnID: "out"},
	})

	require.NoError(t, err)
	assert.Equal(t, "flat", out["out"])
}

func TestTransform_WithTransformer(t *testing.T) {
	out, err := Transform(rec(map[string]any{"title": "hello"}), model.ColumnMappings{
		model.LocalMapping{
			SourceColumnID:      "title",
			DestinationColumnID: "name",
			Transformer:         &model.TransformerConfig{Type: "uppercase"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "HELLO", out["name"])
}

func TestTransform_TransformerFailure(t *testing.T) {
	_, err := Transform(rec(map[string]any{"count": "many"}), model.ColumnMappings{
		model.LocalMapping{
			SourceColumnID:      "count",
			DestinationColumnID: "n",
			Transformer:         &model.TransformerConfig{Type: "int"},
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "count"`)
}

func TestTransform_UnknownTransformer(t *testing.T) {
	_, err := Transform(rec(map[string]any{"title": "x"}), model.ColumnMappings{
		model.LocalMapping{
			SourceColumnID:      "title",
			DestinationColumnID: "name",
			Transformer:         &model.TransformerConfig{Type: "rot13"},
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transformer "rot13"`)
}

func TestTransform_ForeignKeyLookupFailsLoudly(t *testing.T) {
	mappings := model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
		model.ForeignKeyLookupMapping{
			SourceColumnID:         "author_id",
			DestinationColumnID:    "author",
			ReferencedDataFolderID: "authors",
			ReferencedColumnID:     "name",
		},
	}

	// Fails even when the source field is absent from the record.
	for _, fields := range []map[string]any{
		{"title": "x", "author_id": "a1"},
		{"title": "x"},
	} {
		out, err := Transform(rec(fields), mappings)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, model.ErrNotImplemented))
	}
}

func TestSetPath_Conflicts(t *testing.T) {
	obj := map[string]any{"a": "scalar"}

	err := SetPath(obj, "a.b", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already holds a string")

	assert.Error(t, SetPath(obj, "", 1))
	assert.Error(t, SetPath(obj, "x..y", 1))
}

func TestSetPath_NullIntermediateReplaced(t *testing.T) {
	obj := map[string]any{"a": nil}
	require.NoError(t, SetPath(obj, "a.b", 1))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, obj)
}

func TestMerge(t *testing.T) {
	base := map[string]any{
		"id":      "remote-1",
		"name":    "Old",
		"pricing": map[string]any{"amount": 5, "currency": "EUR"},
		"keep":    true,
	}
	overlay := map[string]any{
		"name":    "New",
		"pricing": map[string]any{"amount": 10},
	}

	merged := Merge(base, overlay)

	assert.Equal(t, map[string]any{
		"id":      "remote-1",
		"name":    "New",
		"pricing": map[string]any{"amount": 10, "currency": "EUR"},
		"keep":    true,
	}, merged)

	// Inputs untouched
	assert.Equal(t, "Old", base["name"])
	assert.Equal(t, 5, base["pricing"].(map[string]any)["amount"])
}

func TestTransform_CopiedObjectIsNotShared(t *testing.T) {
	fields := map[string]any{
		"meta": map[string]any{"a": 1},
		"tags": []any{"x"},
		"b":    2,
	}
	mappings := model.ColumnMappings{
		model.LocalMapping{SourceColumnID: "meta", DestinationColumnID: "info"},
		model.LocalMapping{SourceColumnID: "b", DestinationColumnID: "info.b"},
		model.LocalMapping{SourceColumnID: "tags", DestinationColumnID: "labels"},
	}

	out, err := Transform(rec(fields), mappings)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, out["info"])

	out["labels"].([]any)[0] = "changed"
	assert.Equal(t, map[string]any{"a": 1}, fields["meta"])
	assert.Equal(t, []any{"x"}, fields["tags"])
}

func TestMerge_ResultSharesNothing(t *testing.T) {
	base := map[string]any{"pricing": map[string]any{"amount": 5}, "tags": []any{"a"}}
	overlay := map[string]any{"extra": map[string]any{"k": "v"}}

	merged := Merge(base, overlay)
	merged["pricing"].(map[string]any)["amount"] = 99
	merged["tags"].([]any)[0] = "z"
	merged["extra"].(map[string]any)["k"] = "changed"

	assert.Equal(t, map[string]any{"amount": 5}, base["pricing"])
	assert.Equal(t, []any{"a"}, base["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, overlay["extra"])
}
