package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/foldersync/internal/record"
	"github.com/roach88/foldersync/internal/store"
	"github.com/roach88/foldersync/internal/testutil"
)

// AssertionContext provides the state assertions are evaluated against.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	SyncID   string
	Workbook *testutil.MemoryWorkbook
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Files    []string // final workbook paths, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Files) > 0 {
		fmt.Fprintf(&buf, "\nWorkbook files:\n")
		for _, p := range e.Files {
			fmt.Fprintf(&buf, "  %s\n", p)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFileEquals:
		return assertFileEquals(result, a)
	case AssertFileFields:
		return assertFileFields(result, a)
	case AssertFileAbsent:
		return assertFileAbsent(result, a)
	case AssertFileCount:
		return assertFileCount(result, a, actx)
	case AssertCommitCount:
		return assertCommitCount(result, a)
	case AssertRemoteMapping:
		return assertRemoteMapping(result, a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFileEquals(result *Result, a Assertion) error {
	content, ok := result.Files[a.Path]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("file %s", a.Path),
			Actual:   "no such file",
			Files:    sortedPaths(result.Files),
		}
	}
	if content != a.Content {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %q", a.Path, a.Content),
			Actual:   fmt.Sprintf("%q", content),
		}
	}
	return nil
}

func assertFileFields(result *Result, a Assertion) error {
	content, ok := result.Files[a.Path]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("record file %s", a.Path),
			Actual:   "no such file",
			Files:    sortedPaths(result.Files),
		}
	}

	fields, err := record.DecodeFields(a.Path, content)
	if err != nil {
		return fmt.Errorf("decode %s: %w", a.Path, err)
	}

	for _, key := range sortedKeys(a.Fields) {
		got, ok := record.Lookup(fields, key)
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s has field %s", a.Path, key),
				Actual:   fmt.Sprintf("fields %v", fields),
			}
		}
		if !valuesEqual(got, a.Fields[key]) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %v", a.Path, key, a.Fields[key]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

func assertFileAbsent(result *Result, a Assertion) error {
	if _, ok := result.Files[a.Path]; ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("no file %s", a.Path),
			Actual:   "file exists",
		}
	}
	return nil
}

func assertFileCount(result *Result, a Assertion, actx *AssertionContext) error {
	files := actx.Workbook.FolderFiles(a.Folder)
	if len(files) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d files in %s", a.Count, a.Folder),
			Actual:   fmt.Sprintf("%d files", len(files)),
			Files:    sortedPaths(result.Files),
		}
	}
	return nil
}

func assertCommitCount(result *Result, a Assertion) error {
	if result.Commits != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d commits", a.Count),
			Actual:   fmt.Sprintf("%d commits", result.Commits),
		}
	}
	return nil
}

// assertRemoteMapping checks the correlation row of a source record.
// "none" expects no row or a row without a destination.
func assertRemoteMapping(_ *Result, a Assertion, actx *AssertionContext) error {
	got, err := actx.Store.LookupRemoteMappings(actx.Ctx, actx.SyncID, a.Folder, []string{a.SourceID})
	if err != nil {
		return fmt.Errorf("lookup remote mapping: %w", err)
	}

	actual := "none"
	if dest := got[a.SourceID]; dest != nil {
		actual = dest.String()
	}
	if actual != a.Destination {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s/%s -> %s", a.Folder, a.SourceID, a.Destination),
			Actual:   actual,
		}
	}
	return nil
}

// valuesEqual compares a decoded record value with a YAML scenario value.
// Numbers are compared by their printed form since records decode them as
// json.Number and YAML as int or float64.
func valuesEqual(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
