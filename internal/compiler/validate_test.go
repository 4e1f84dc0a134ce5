package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func validDefinition() model.SyncDefinition {
	return model.SyncDefinition{
		Name: "blog",
		TableMappings: []model.TableMapping{{
			SourceDataFolderID:      "posts",
			DestinationDataFolderID: "cms",
			ColumnMappings: model.ColumnMappings{
				model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
				model.LocalMapping{
					SourceColumnID:      "price",
					DestinationColumnID: "pricing.amount",
					Transformer:         &model.TransformerConfig{Type: "cents_to_dollars"},
				},
			},
			RecordMatching: &model.RecordMatching{SourceColumnID: "title", DestinationColumnID: "name"},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := Validate(validDefinition())
	assert.Empty(t, errs, "valid definition should have no errors")
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.SyncDefinition)
		code   string
		field  string
	}{
		{
			name:   "empty name",
			mutate: func(d *model.SyncDefinition) { d.Name = "  " },
			code:   ErrSyncNameEmpty,
			field:  "name",
		},
		{
			name:   "no tables",
			mutate: func(d *model.SyncDefinition) { d.TableMappings = nil },
			code:   ErrNoTableMappings,
			field:  "tables",
		},
		{
			name:   "empty destination",
			mutate: func(d *model.SyncDefinition) { d.TableMappings[0].DestinationDataFolderID = "" },
			code:   ErrFolderIDEmpty,
			field:  "tables[0].destination",
		},
		{
			name:   "same folder",
			mutate: func(d *model.SyncDefinition) { d.TableMappings[0].DestinationDataFolderID = "posts" },
			code:   ErrSameFolder,
			field:  "tables[0].destination",
		},
		{
			name: "duplicate source",
			mutate: func(d *model.SyncDefinition) {
				second := d.TableMappings[0]
				second.DestinationDataFolderID = "archive"
				d.TableMappings = append(d.TableMappings, second)
			},
			code:  ErrDuplicateSource,
			field: "tables[1].source",
		},
		{
			name: "empty column id",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings = append(d.TableMappings[0].ColumnMappings,
					model.LocalMapping{SourceColumnID: "", DestinationColumnID: "x"})
			},
			code:  ErrColumnIDEmpty,
			field: "tables[0].columns[2]",
		},
		{
			name: "empty path segment",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings = append(d.TableMappings[0].ColumnMappings,
					model.LocalMapping{SourceColumnID: "x", DestinationColumnID: "a..b"})
			},
			code:  ErrColumnIDEmpty,
			field: "tables[0].columns[2].to",
		},
		{
			name: "duplicate destination",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings = append(d.TableMappings[0].ColumnMappings,
					model.LocalMapping{SourceColumnID: "subtitle", DestinationColumnID: "name"})
			},
			code:  ErrDestinationConflict,
			field: "tables[0].columns[2].to",
		},
		{
			name: "destination prefix conflict",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings = append(d.TableMappings[0].ColumnMappings,
					model.LocalMapping{SourceColumnID: "p", DestinationColumnID: "pricing"})
			},
			code:  ErrDestinationConflict,
			field: "tables[0].columns[2].to",
		},
		{
			name: "unknown transformer",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings[1] = model.LocalMapping{
					SourceColumnID:      "price",
					DestinationColumnID: "pricing.amount",
					Transformer:         &model.TransformerConfig{Type: "rot13"},
				}
			},
			code:  ErrUnknownTransformer,
			field: "tables[0].columns[1].transform",
		},
		{
			name: "incomplete lookup",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].ColumnMappings = append(d.TableMappings[0].ColumnMappings,
					model.ForeignKeyLookupMapping{SourceColumnID: "a", DestinationColumnID: "author"})
			},
			code:  ErrLookupIncomplete,
			field: "tables[0].columns[2].lookup",
		},
		{
			name:   "missing matching",
			mutate: func(d *model.SyncDefinition) { d.TableMappings[0].RecordMatching = nil },
			code:   ErrMatchingMissing,
			field:  "tables[0].match",
		},
		{
			name: "matching source not mapped",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].RecordMatching = &model.RecordMatching{SourceColumnID: "slug", DestinationColumnID: "name"}
			},
			code:  ErrMatchingNotMapped,
			field: "tables[0].match.source",
		},
		{
			name: "matching destination not mapped",
			mutate: func(d *model.SyncDefinition) {
				d.TableMappings[0].RecordMatching = &model.RecordMatching{SourceColumnID: "title", DestinationColumnID: "slug"}
			},
			code:  ErrMatchingNotMapped,
			field: "tables[0].match.destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			errs := Validate(def)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	def := model.SyncDefinition{
		TableMappings: []model.TableMapping{{}},
	}

	errs := Validate(def)
	assert.Equal(t, []string{
		ErrSyncNameEmpty,
		ErrFolderIDEmpty,
		ErrFolderIDEmpty,
		ErrMatchingMissing,
	}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "name", Message: "name is required", Code: ErrSyncNameEmpty}
	assert.Equal(t, "[E100] name: name is required", err.Error())
}
