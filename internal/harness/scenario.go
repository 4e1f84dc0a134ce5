package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/foldersync/internal/model"
)

// DefaultWorkbookID is the workbook used when a scenario names none.
const DefaultWorkbookID = "wb1"

// Scenario defines a sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files holding sync definitions.
	Specs []string `yaml:"specs"`

	// Sync names the definition to apply. May be omitted when the specs
	// define exactly one.
	Sync string `yaml:"sync,omitempty"`

	// Workbook is the workbook id. Defaults to DefaultWorkbookID.
	Workbook string `yaml:"workbook,omitempty"`

	// Folders are the data folders of the workbook.
	Folders []FolderSpec `yaml:"folders"`

	// Files seeds the workbook, path -> content.
	Files map[string]string `yaml:"files,omitempty"`

	// Steps run the sync in order. Each step may edit files first.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final workbook and store.
	Assertions []Assertion `yaml:"assertions"`
}

// FolderSpec declares a data folder.
type FolderSpec struct {
	ID string `yaml:"id"`

	// Name defaults to ID.
	Name string `yaml:"name,omitempty"`

	// Path defaults to ID.
	Path string `yaml:"path,omitempty"`

	Schema *model.SchemaSpec `yaml:"schema,omitempty"`
}

// Step edits workbook files and runs the sync once.
type Step struct {
	// Put writes files before the run, path -> content.
	Put map[string]string `yaml:"put,omitempty"`

	// Delete removes files before the run. Applied before Put.
	Delete []string `yaml:"delete,omitempty"`

	// Expect validates the run. If nil, the run must not fail fatally.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one run. Counts are
// summed over every table mapping of the sync; nil counts are not checked.
type ExpectClause struct {
	Created *int `yaml:"created,omitempty"`
	Updated *int `yaml:"updated,omitempty"`

	// Errors is the expected number of per-record errors.
	Errors *int `yaml:"errors,omitempty"`

	// ErrorContains lists substrings each matched by some per-record error.
	ErrorContains []string `yaml:"error_contains,omitempty"`

	// Fatal is a substring of the expected fatal error. Empty means the
	// run must succeed.
	Fatal string `yaml:"fatal,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is the file path (file_equals, file_fields, file_absent).
	Path string `yaml:"path,omitempty"`

	// Content is the exact file content (file_equals).
	Content string `yaml:"content,omitempty"`

	// Fields is a subset of the record's fields (file_fields).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Folder is a data folder id (file_count, remote_mapping).
	Folder string `yaml:"folder,omitempty"`

	// Count is the expected number (file_count, commit_count).
	Count int `yaml:"count,omitempty"`

	// SourceID is the source record's remote id (remote_mapping).
	SourceID string `yaml:"source_id,omitempty"`

	// Destination is the expected destination identifier formatted as
	// pending(path) or published(id), or "none" (remote_mapping).
	Destination string `yaml:"destination,omitempty"`
}

// Assertion types.
const (
	AssertFileEquals    = "file_equals"
	AssertFileFields    = "file_fields"
	AssertFileAbsent    = "file_absent"
	AssertFileCount     = "file_count"
	AssertCommitCount   = "commit_count"
	AssertRemoteMapping = "remote_mapping"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Folders) == 0 {
		return fmt.Errorf("folders list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	seen := make(map[string]bool)
	for i, f := range s.Folders {
		if f.ID == "" {
			return fmt.Errorf("folders[%d]: id is required", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("folders[%d]: duplicate folder id %q", i, f.ID)
		}
		seen[f.ID] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFileEquals, AssertFileAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertFileFields:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for file_fields", index)
		}
		if len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields is required for file_fields", index)
		}
	case AssertFileCount:
		if a.Folder == "" {
			return fmt.Errorf("assertions[%d]: folder is required for file_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for file_count", index)
		}
	case AssertCommitCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commit_count", index)
		}
	case AssertRemoteMapping:
		if a.Folder == "" || a.SourceID == "" || a.Destination == "" {
			return fmt.Errorf("assertions[%d]: folder, source_id and destination are required for remote_mapping", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
