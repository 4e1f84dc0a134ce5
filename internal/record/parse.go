// Package record parses stored files into ConnectorRecords and encodes field
// maps back into file content.
//
// JSON numbers are decoded as json.Number so integers and decimals survive a
// read-modify-write cycle byte-for-byte. YAML files (.yaml, .yml) are decoded
// with gopkg.in/yaml.v3.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/foldersync/internal/model"
)

// ParseError reports a file whose record identity cannot be established.
// It is fatal for a run: nothing downstream can be keyed without identity.
type ParseError struct {
	Path   string
	Column string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("parse %s: identifier column %q %s", e.Path, e.Column, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseOptions controls identifier extraction.
type ParseOptions struct {
	// IDColumn is the field holding the record identifier. Defaults to "id".
	IDColumn string

	// PendingPaths lists placeholder files committed by earlier runs. Such a
	// file without an identifier is identified by its path instead of failing.
	PendingPaths map[string]bool
}

// ParseFiles parses every file. The first identity failure aborts parsing.
// Two files carrying the same identifier are an identity failure.
func ParseFiles(files []model.FileContent, opts ParseOptions) ([]model.ConnectorRecord, error) {
	records := make([]model.ConnectorRecord, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		rec, err := ParseFile(f, opts)
		if err != nil {
			return nil, err
		}
		if !rec.Pending {
			if first, dup := seen[rec.ID]; dup {
				return nil, &ParseError{
					Path:   f.Path,
					Column: idColumn(opts),
					Reason: fmt.Sprintf("value %q is also used by %s", rec.ID, first),
				}
			}
			seen[rec.ID] = f.Path
		}
		records = append(records, rec)
	}
	return records, nil
}

func idColumn(opts ParseOptions) string {
	if opts.IDColumn == "" {
		return model.DefaultIDColumn
	}
	return opts.IDColumn
}

// ParseFile decodes one file and extracts its identifier.
func ParseFile(f model.FileContent, opts ParseOptions) (model.ConnectorRecord, error) {
	column := idColumn(opts)

	fields, err := DecodeFields(f.Path, f.Content)
	if err != nil {
		return model.ConnectorRecord{}, &ParseError{Path: f.Path, Reason: err.Error()}
	}

	raw, present := fields[column]
	if !present || raw == nil {
		if opts.PendingPaths[f.Path] {
			return model.ConnectorRecord{ID: f.Path, Path: f.Path, Fields: fields, Pending: true}, nil
		}
		if !present {
			return model.ConnectorRecord{}, &ParseError{Path: f.Path, Column: column, Reason: "is missing"}
		}
		return model.ConnectorRecord{}, &ParseError{Path: f.Path, Column: column, Reason: "is null"}
	}

	id, ok := identifierString(raw)
	if !ok {
		return model.ConnectorRecord{}, &ParseError{
			Path:   f.Path,
			Column: column,
			Reason: fmt.Sprintf("must be a string or number, got %T", raw),
		}
	}

	return model.ConnectorRecord{ID: id, Path: f.Path, Fields: fields}, nil
}

// identifierString accepts strings and numbers only.
func identifierString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// DecodeFields decodes file content into a field map, choosing the format
// from the file extension. The top-level value must be an object.
func DecodeFields(filePath, content string) (map[string]any, error) {
	if isYAML(filePath) {
		return decodeYAML(content)
	}
	return decodeJSON(content)
}

func decodeJSON(content string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON: trailing data after object")
	}
	if fields == nil {
		return nil, fmt.Errorf("top-level value must be an object")
	}
	return fields, nil
}

func decodeYAML(content string) (map[string]any, error) {
	var fields map[string]any
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	if err := dec.Decode(&fields); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty YAML document")
		}
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("top-level value must be a mapping")
	}
	normalized, err := normalizeYAML(fields)
	if err != nil {
		return nil, err
	}
	return normalized.(map[string]any), nil
}

// normalizeYAML converts map[any]any nodes (non-string keys) to map[string]any.
func normalizeYAML(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []any:
		for i, elem := range val {
			n, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	default:
		return val, nil
	}
}

func isYAML(filePath string) bool {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// IsRecordFile reports whether a path has a supported record extension.
func IsRecordFile(filePath string) bool {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Lookup reads a field by flat key first, then by dot-path through nested
// objects. Returns false when the value is absent.
func Lookup(fields map[string]any, column string) (any, bool) {
	if v, ok := fields[column]; ok {
		return v, true
	}
	if !strings.Contains(column, ".") {
		return nil, false
	}

	var current any = fields
	for _, part := range strings.Split(column, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
