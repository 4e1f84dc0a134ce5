package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/foldersync/internal/mapping"
	"github.com/roach88/foldersync/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrSyncNameEmpty       = "E100" // sync name is required
	ErrNoTableMappings     = "E101" // at least one table mapping required
	ErrFolderIDEmpty       = "E102" // source/destination folder id required
	ErrSameFolder          = "E103" // source and destination must differ
	ErrDuplicateSource     = "E104" // one table mapping per source folder
	ErrColumnIDEmpty       = "E105" // column ids must be non-empty
	ErrDestinationConflict = "E106" // destination paths collide
	ErrUnknownTransformer  = "E107" // transformer not registered
	ErrMatchingMissing     = "E108" // record matching required
	ErrMatchingNotMapped   = "E109" // matching column not covered by a column mapping
	ErrLookupIncomplete    = "E110" // lookup needs folder and column
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a sync definition against the configuration rules.
// Returns all errors found (does not fail-fast).
func Validate(def model.SyncDefinition) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrSyncNameEmpty,
		})
	}

	if len(def.TableMappings) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tables",
			Message: "at least one table mapping is required",
			Code:    ErrNoTableMappings,
		})
	}

	// Remote identity rows are keyed by source folder, so two table
	// mappings reading the same folder would overwrite each other's rows.
	sources := make(map[string]int)
	for i, tm := range def.TableMappings {
		field := fmt.Sprintf("tables[%d]", i)
		errs = append(errs, validateTableMapping(tm, field)...)

		if tm.SourceDataFolderID == "" {
			continue
		}
		if first, dup := sources[tm.SourceDataFolderID]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("source folder %q is already mapped by tables[%d]", tm.SourceDataFolderID, first),
				Code:    ErrDuplicateSource,
			})
			continue
		}
		sources[tm.SourceDataFolderID] = i
	}

	return errs
}

// validateTableMapping validates one table mapping.
func validateTableMapping(tm model.TableMapping, field string) []ValidationError {
	var errs []ValidationError

	if tm.SourceDataFolderID == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".source",
			Message: "source folder id is required",
			Code:    ErrFolderIDEmpty,
		})
	}
	if tm.DestinationDataFolderID == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".destination",
			Message: "destination folder id is required",
			Code:    ErrFolderIDEmpty,
		})
	}
	if tm.SourceDataFolderID != "" && tm.SourceDataFolderID == tm.DestinationDataFolderID {
		errs = append(errs, ValidationError{
			Field:   field + ".destination",
			Message: fmt.Sprintf("destination folder must differ from source %q", tm.SourceDataFolderID),
			Code:    ErrSameFolder,
		})
	}

	sourceCols := make(map[string]bool)
	destCols := make(map[string]bool)
	var destPaths []string

	for i, m := range tm.ColumnMappings {
		colField := fmt.Sprintf("%s.columns[%d]", field, i)

		if m.SourceColumn() == "" || m.DestinationColumn() == "" {
			errs = append(errs, ValidationError{
				Field:   colField,
				Message: "from and to are required and must be non-empty",
				Code:    ErrColumnIDEmpty,
			})
			continue
		}
		if hasEmptySegment(m.DestinationColumn()) {
			errs = append(errs, ValidationError{
				Field:   colField + ".to",
				Message: fmt.Sprintf("destination path %q has an empty segment", m.DestinationColumn()),
				Code:    ErrColumnIDEmpty,
			})
			continue
		}

		for _, other := range destPaths {
			if pathsConflict(other, m.DestinationColumn()) {
				errs = append(errs, ValidationError{
					Field:   colField + ".to",
					Message: fmt.Sprintf("destination path %q conflicts with %q", m.DestinationColumn(), other),
					Code:    ErrDestinationConflict,
				})
				break
			}
		}
		destPaths = append(destPaths, m.DestinationColumn())
		sourceCols[m.SourceColumn()] = true
		destCols[m.DestinationColumn()] = true

		switch mm := m.(type) {
		case model.LocalMapping:
			if mm.Transformer != nil && !mapping.HasTransformer(mm.Transformer.Type) {
				errs = append(errs, ValidationError{
					Field:   colField + ".transform",
					Message: fmt.Sprintf("unknown transformer %q", mm.Transformer.Type),
					Code:    ErrUnknownTransformer,
				})
			}
		case model.ForeignKeyLookupMapping:
			if mm.ReferencedDataFolderID == "" || mm.ReferencedColumnID == "" {
				errs = append(errs, ValidationError{
					Field:   colField + ".lookup",
					Message: "lookup requires folder and column",
					Code:    ErrLookupIncomplete,
				})
			}
		}
	}

	if tm.RecordMatching == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".match",
			Message: "record matching is required",
			Code:    ErrMatchingMissing,
		})
		return errs
	}

	if !sourceCols[tm.RecordMatching.SourceColumnID] {
		errs = append(errs, ValidationError{
			Field:   field + ".match.source",
			Message: fmt.Sprintf("matching column %q is not a mapped source column", tm.RecordMatching.SourceColumnID),
			Code:    ErrMatchingNotMapped,
		})
	}
	if !destCols[tm.RecordMatching.DestinationColumnID] {
		errs = append(errs, ValidationError{
			Field:   field + ".match.destination",
			Message: fmt.Sprintf("matching column %q is not a mapped destination column", tm.RecordMatching.DestinationColumnID),
			Code:    ErrMatchingNotMapped,
		})
	}

	return errs
}

func hasEmptySegment(path string) bool {
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return true
		}
	}
	return false
}

// pathsConflict reports whether two dot-paths are equal or one is a
// segment prefix of the other ("a" and "a.b").
func pathsConflict(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}
