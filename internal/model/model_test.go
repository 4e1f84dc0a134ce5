package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnMappings_JSONTagged(t *testing.T) {
	ms := ColumnMappings{
		LocalMapping{
			SourceColumnID:      "title",
			DestinationColumnID: "name",
			Transformer:         &TransformerConfig{Type: "uppercase"},
		},
		ForeignKeyLookupMapping{
			SourceColumnID:         "author_id",
			DestinationColumnID:    "author",
			ReferencedDataFolderID: "authors",
			ReferencedColumnID:     "name",
		},
	}

	data, err := json.Marshal(ms)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"local"`)
	assert.Contains(t, string(data), `"type":"foreign_key_lookup"`)

	var decoded ColumnMappings
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ms, decoded)
}

func TestColumnMappings_MissingTypeIsLocal(t *testing.T) {
	var ms ColumnMappings
	require.NoError(t, json.Unmarshal([]byte(`[{"source_column_id":"a","destination_column_id":"b"}]`), &ms))

	require.Len(t, ms, 1)
	assert.Equal(t, MappingKindLocal, ms[0].Kind())
	assert.Equal(t, "a", ms[0].SourceColumn())
	assert.Equal(t, "b", ms[0].DestinationColumn())
}

func TestColumnMappings_UnknownTypeRejected(t *testing.T) {
	var ms ColumnMappings
	err := json.Unmarshal([]byte(`[{"type":"formula","source_column_id":"a"}]`), &ms)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "formula"`)
}

func TestColumnMappings_Null(t *testing.T) {
	ms := ColumnMappings{LocalMapping{SourceColumnID: "a", DestinationColumnID: "b"}}
	require.NoError(t, json.Unmarshal([]byte(`null`), &ms))
	assert.Nil(t, ms)
}

func TestDestinationID(t *testing.T) {
	p := Pending("cms/x.json")
	assert.True(t, p.IsPending())
	assert.False(t, p.IsPublished())
	assert.Equal(t, "cms/x.json", p.Value())
	assert.Equal(t, "pending(cms/x.json)", p.String())

	r := Published("remote-1")
	assert.True(t, r.IsPublished())
	assert.Equal(t, DestinationPublished, r.Kind())

	assert.NotEqual(t, Pending("a"), Published("a"), "same value, different variants")
}

func TestDestinationID_JSON(t *testing.T) {
	for _, d := range []DestinationID{Pending("cms/x.json"), Published("remote-1")} {
		data, err := json.Marshal(d)
		require.NoError(t, err)

		var decoded DestinationID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, d, decoded)
	}

	var bad DestinationID
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"draft","value":"x"}`), &bad))
}

func TestParseDestinationID(t *testing.T) {
	d, err := ParseDestinationID("published", "r1")
	require.NoError(t, err)
	assert.Equal(t, Published("r1"), d)

	_, err = ParseDestinationID("", "r1")
	assert.Error(t, err)
}

func TestConnectorRecord_Identity(t *testing.T) {
	assert.Equal(t, Published("r1"), ConnectorRecord{ID: "r1", Path: "a.json"}.Identity())
	assert.Equal(t, Pending("a.json"), ConnectorRecord{ID: "a.json", Path: "a.json", Pending: true}.Identity())
}

func TestSchemaSpec_IDColumn(t *testing.T) {
	var nilSpec *SchemaSpec
	assert.Equal(t, "id", nilSpec.IDColumn())
	assert.Equal(t, "id", (&SchemaSpec{}).IDColumn())
	assert.Equal(t, "videoId", (&SchemaSpec{IDColumnRemoteID: "videoId"}).IDColumn())
}
