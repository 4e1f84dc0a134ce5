package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MappingKind discriminates ColumnMapping variants on the wire.
type MappingKind string

const (
	MappingKindLocal            MappingKind = "local"
	MappingKindForeignKeyLookup MappingKind = "foreign_key_lookup"
)

// ColumnMapping is a sealed interface.
// Only LocalMapping and ForeignKeyLookupMapping implement it; consumers switch
// over the concrete types and must treat any other value as an error.
type ColumnMapping interface {
	Kind() MappingKind
	SourceColumn() string
	DestinationColumn() string
	columnMapping() // Sealed
}

// TransformerConfig names a value transformer applied to a local mapping.
type TransformerConfig struct {
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

// LocalMapping copies a source field to a destination path, optionally
// transforming the value on the way.
type LocalMapping struct {
	SourceColumnID      string             `json:"source_column_id"`
	DestinationColumnID string             `json:"destination_column_id"`
	Transformer         *TransformerConfig `json:"transformer,omitempty"`
}

func (LocalMapping) columnMapping() {}

// Kind returns MappingKindLocal.
func (LocalMapping) Kind() MappingKind { return MappingKindLocal }

// SourceColumn returns the flat source field key.
func (m LocalMapping) SourceColumn() string { return m.SourceColumnID }

// DestinationColumn returns the destination dot-path.
func (m LocalMapping) DestinationColumn() string { return m.DestinationColumnID }

// ForeignKeyLookupMapping dereferences a source value through another data
// folder. It is reserved and not implemented: transforming a record with it
// fails with ErrNotImplemented.
type ForeignKeyLookupMapping struct {
	SourceColumnID         string `json:"source_column_id"`
	DestinationColumnID    string `json:"destination_column_id"`
	ReferencedDataFolderID string `json:"referenced_data_folder_id"`
	ReferencedColumnID     string `json:"referenced_column_id"`
}

func (ForeignKeyLookupMapping) columnMapping() {}

// Kind returns MappingKindForeignKeyLookup.
func (ForeignKeyLookupMapping) Kind() MappingKind { return MappingKindForeignKeyLookup }

// SourceColumn returns the flat source field key.
func (m ForeignKeyLookupMapping) SourceColumn() string { return m.SourceColumnID }

// DestinationColumn returns the destination dot-path.
func (m ForeignKeyLookupMapping) DestinationColumn() string { return m.DestinationColumnID }

// ColumnMappings is an ordered list of column mappings with a tagged JSON form:
//
//	[{"type":"local","source_column_id":"title","destination_column_id":"name"}]
type ColumnMappings []ColumnMapping

type taggedLocal struct {
	Type MappingKind `json:"type"`
	LocalMapping
}

type taggedForeignKeyLookup struct {
	Type MappingKind `json:"type"`
	ForeignKeyLookupMapping
}

// MarshalJSON encodes each mapping with its "type" discriminator.
func (ms ColumnMappings) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(ms))
	for i, m := range ms {
		switch v := m.(type) {
		case LocalMapping:
			out = append(out, taggedLocal{Type: MappingKindLocal, LocalMapping: v})
		case ForeignKeyLookupMapping:
			out = append(out, taggedForeignKeyLookup{Type: MappingKindForeignKeyLookup, ForeignKeyLookupMapping: v})
		default:
			return nil, fmt.Errorf("column mapping [%d]: unsupported variant %T", i, m)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes tagged mappings. A missing "type" means "local".
// Unknown types are rejected rather than dropped.
func (ms *ColumnMappings) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ms = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("column mappings: %w", err)
	}

	result := make(ColumnMappings, 0, len(raw))
	for i, item := range raw {
		var head struct {
			Type MappingKind `json:"type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("column mapping [%d]: %w", i, err)
		}

		switch head.Type {
		case MappingKindLocal, "":
			var m LocalMapping
			if err := json.Unmarshal(item, &m); err != nil {
				return fmt.Errorf("column mapping [%d]: %w", i, err)
			}
			result = append(result, m)
		case MappingKindForeignKeyLookup:
			var m ForeignKeyLookupMapping
			if err := json.Unmarshal(item, &m); err != nil {
				return fmt.Errorf("column mapping [%d]: %w", i, err)
			}
			result = append(result, m)
		default:
			return fmt.Errorf("column mapping [%d]: unknown type %q", i, head.Type)
		}
	}

	*ms = result
	return nil
}
