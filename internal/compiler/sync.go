package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/foldersync/internal/model"
)

// CompileSync parses a CUE value into a SyncDefinition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the sync struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`sync: "blog": { tables: [...] }`)
//	def, err := CompileSync(v.LookupPath(cue.ParsePath(`sync."blog"`)))
//
// A table entry looks like:
//
//	{
//		source:      "posts"
//		destination: "cms"
//		columns: [
//			{from: "title", to: "name"},
//			{from: "price", to: "pricing.amount", transform: "cents_to_dollars"},
//			{from: "author_id", to: "author", lookup: {folder: "people", column: "name"}},
//		]
//		match: {source: "title", destination: "name"}
//	}
//
// CompileSync checks shape only. Use Validate for the semantic rules.
func CompileSync(v cue.Value) (*model.SyncDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &model.SyncDefinition{}

	// The sync name is the struct label, e.g. `sync: "blog": {...}`.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "tables",
			Message: "tables is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "tables",
			Message: "tables must be a list",
			Pos:     tablesVal.Pos(),
		}
	}

	def.TableMappings = []model.TableMapping{}
	for i := 0; iter.Next(); i++ {
		tm, err := parseTable(iter.Value(), fmt.Sprintf("tables[%d]", i))
		if err != nil {
			return nil, err
		}
		def.TableMappings = append(def.TableMappings, tm)
	}

	return def, nil
}

// CompileSyncs compiles every definition in the top-level "sync" struct of
// v, in declaration order. Errors are collected rather than returned on the
// first failure. A value without a "sync" struct yields no definitions.
func CompileSyncs(v cue.Value) ([]model.SyncDefinition, []error) {
	syncsVal := v.LookupPath(cue.ParsePath("sync"))
	if !syncsVal.Exists() {
		return nil, nil
	}

	iter, err := syncsVal.Fields()
	if err != nil {
		return nil, []error{&CompileError{
			Field:   "sync",
			Message: "sync must be a struct of named definitions",
			Pos:     syncsVal.Pos(),
		}}
	}

	var (
		defs []model.SyncDefinition
		errs []error
	)
	for iter.Next() {
		def, err := CompileSync(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, *def)
	}
	return defs, errs
}

// parseTable extracts one table mapping.
func parseTable(v cue.Value, field string) (model.TableMapping, error) {
	var tm model.TableMapping

	source, err := requiredString(v, "source", field)
	if err != nil {
		return tm, err
	}
	tm.SourceDataFolderID = source

	destination, err := requiredString(v, "destination", field)
	if err != nil {
		return tm, err
	}
	tm.DestinationDataFolderID = destination

	tm.ColumnMappings, err = parseColumns(v, field)
	if err != nil {
		return tm, err
	}

	matchVal := v.LookupPath(cue.ParsePath("match"))
	if matchVal.Exists() {
		matchField := field + ".match"
		src, err := requiredString(matchVal, "source", matchField)
		if err != nil {
			return tm, err
		}
		dst, err := requiredString(matchVal, "destination", matchField)
		if err != nil {
			return tm, err
		}
		tm.RecordMatching = &model.RecordMatching{SourceColumnID: src, DestinationColumnID: dst}
	}

	return tm, nil
}

// parseColumns extracts the ordered column mappings of a table.
func parseColumns(v cue.Value, field string) (model.ColumnMappings, error) {
	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".columns",
			Message: "columns is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := columnsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".columns",
			Message: "columns must be a list",
			Pos:     columnsVal.Pos(),
		}
	}

	mappings := model.ColumnMappings{}
	for i := 0; iter.Next(); i++ {
		m, err := parseColumn(iter.Value(), fmt.Sprintf("%s.columns[%d]", field, i))
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// parseColumn extracts one column mapping. A "lookup" block makes it a
// foreign key lookup; otherwise it is local, with an optional transformer.
func parseColumn(v cue.Value, field string) (model.ColumnMapping, error) {
	from, err := requiredString(v, "from", field)
	if err != nil {
		return nil, err
	}
	to, err := requiredString(v, "to", field)
	if err != nil {
		return nil, err
	}

	lookupVal := v.LookupPath(cue.ParsePath("lookup"))
	if lookupVal.Exists() {
		if v.LookupPath(cue.ParsePath("transform")).Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: "a lookup column cannot have a transform",
				Pos:     v.Pos(),
			}
		}
		folder, err := requiredString(lookupVal, "folder", field+".lookup")
		if err != nil {
			return nil, err
		}
		column, err := requiredString(lookupVal, "column", field+".lookup")
		if err != nil {
			return nil, err
		}
		return model.ForeignKeyLookupMapping{
			SourceColumnID:         from,
			DestinationColumnID:    to,
			ReferencedDataFolderID: folder,
			ReferencedColumnID:     column,
		}, nil
	}

	m := model.LocalMapping{SourceColumnID: from, DestinationColumnID: to}

	transformVal := v.LookupPath(cue.ParsePath("transform"))
	if transformVal.Exists() {
		cfg, err := parseTransform(transformVal, field+".transform")
		if err != nil {
			return nil, err
		}
		m.Transformer = cfg
	}
	return m, nil
}

// parseTransform accepts either a transformer name or
// {type: "...", options: {...}}.
func parseTransform(v cue.Value, field string) (*model.TransformerConfig, error) {
	if name, err := v.String(); err == nil {
		return &model.TransformerConfig{Type: name}, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: "transform must be a transformer name or {type, options}",
			Pos:     v.Pos(),
		}
	}

	name, err := requiredString(v, "type", field)
	if err != nil {
		return nil, err
	}
	cfg := &model.TransformerConfig{Type: name}

	optsVal := v.LookupPath(cue.ParsePath("options"))
	if optsVal.Exists() {
		var opts map[string]any
		if err := optsVal.Decode(&opts); err != nil {
			return nil, &CompileError{
				Field:   field + ".options",
				Message: fmt.Sprintf("options must be a struct: %v", err),
				Pos:     optsVal.Pos(),
			}
		}
		cfg.Options = opts
	}
	return cfg, nil
}

// requiredString reads a mandatory string field of v.
func requiredString(v cue.Value, name, parent string) (string, error) {
	field := parent + "." + name

	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", name),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", name),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}
