package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/record"
)

// Snapshot captures what a scenario did: every step's counts and errors
// and the final workbook files. It is serialized as canonical JSON so
// identical runs produce identical bytes.
type Snapshot struct {
	ScenarioName string
	Steps        []StepResult
	Files        map[string]string
}

// toCanonicalMap converts the snapshot to plain maps and slices, the only
// shapes record.MarshalCanonical accepts.
func (s *Snapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		tables := make([]any, len(step.Tables))
		for j, t := range step.Tables {
			tables[j] = map[string]any{
				"source":      t.SourceDataFolderID,
				"destination": t.DestinationDataFolderID,
				"created":     t.RecordsCreated,
				"updated":     t.RecordsUpdated,
				"errors":      recordErrorList(t.Errors),
			}
		}
		stepMap := map[string]any{
			"step":   step.Step,
			"tables": tables,
		}
		if step.Fatal != "" {
			stepMap["fatal"] = step.Fatal
		}
		steps[i] = stepMap
	}

	files := make(map[string]any, len(s.Files))
	for p, content := range s.Files {
		files[p] = content
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"files":         files,
	}
}

func recordErrorList(errs []model.RecordError) []any {
	out := make([]any, len(errs))
	for i, e := range errs {
		m := map[string]any{
			"source_remote_id": e.SourceRemoteID,
			"error":            e.Error,
		}
		if e.Path != "" {
			m["path"] = e.Path
		}
		out[i] = m
	}
	return out
}

// MarshalSnapshot renders a result as canonical JSON followed by a newline.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Files:        result.Files,
	}
	out, err := record.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. Expectation failures
// and golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		for _, msg := range result.Errors {
			t.Error(msg)
		}
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	out, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)
	return nil
}
