// Package mapping converts one record's field map into another shape using
// column mappings.
//
// Source columns are flat keys into the record's fields. Destination columns
// are dot-paths; intermediate objects are created as needed. Absent source
// values are skipped entirely so the output never contains fields the sync has
// no data for. A present null is copied as null.
package mapping

import (
	"fmt"
	"strings"

	"github.com/roach88/foldersync/internal/model"
)

// Transform applies mappings in order to rec and returns the new field map.
//
// Foreign key lookup mappings fail with model.ErrNotImplemented. They are
// never dropped: a silently skipped field would corrupt the destination
// without any signal.
func Transform(rec model.ConnectorRecord, mappings model.ColumnMappings) (map[string]any, error) {
	out := make(map[string]any)

	for i, m := range mappings {
		switch mm := m.(type) {
		case model.LocalMapping:
			value, present := rec.Fields[mm.SourceColumnID]
			if !present {
				continue
			}

			if mm.Transformer != nil {
				transformed, err := ApplyTransformer(*mm.Transformer, value)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", mm.SourceColumnID, err)
				}
				value = transformed
			}

			if err := SetPath(out, mm.DestinationColumnID, value); err != nil {
				return nil, fmt.Errorf("column %q: %w", mm.SourceColumnID, err)
			}

		case model.ForeignKeyLookupMapping:
			return nil, fmt.Errorf("column %q: foreign key lookup via %q: %w",
				mm.SourceColumnID, mm.ReferencedDataFolderID, model.ErrNotImplemented)

		default:
			return nil, fmt.Errorf("column mapping [%d]: unsupported variant %T", i, m)
		}
	}

	return out, nil
}

// SetPath stores a deep copy of value in obj at a dot-path, creating
// intermediate objects. It fails when an intermediate segment already holds a
// non-object value.
func SetPath(obj map[string]any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty destination path")
	}

	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("destination path %q has an empty segment", path)
		}
	}

	current := obj
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists || next == nil {
			child := make(map[string]any)
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("destination path %q: segment %q already holds a %T", path, part, next)
		}
		current = child
	}

	current[parts[len(parts)-1]] = deepCopy(value)
	return nil
}

// Merge returns base with overlay deep-merged on top. Nested objects are
// merged key by key; any other overlay value replaces the base value.
// The result shares no objects or arrays with either input.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = deepCopy(v)
	}

	for k, ov := range overlay {
		overlayObj, overlayIsObj := ov.(map[string]any)
		baseObj, baseIsObj := out[k].(map[string]any)
		if overlayIsObj && baseIsObj {
			out[k] = Merge(baseObj, overlayObj)
			continue
		}
		out[k] = deepCopy(ov)
	}

	return out
}

// deepCopy copies nested objects and arrays. Scalars are returned as is.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = deepCopy(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = deepCopy(elem)
		}
		return out
	default:
		return val
	}
}
