package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func openScenarioStore(t *testing.T) (*store.Store, error) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	if err == nil {
		t.Cleanup(func() { st.Close() })
	}
	return st, err
}

func TestRun_CreateThenUpdate(t *testing.T) {
	result, err := Run(loadTestScenario(t, "create_then_update"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 2)
	created, updated, errs := result.Steps[0].Totals()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
	assert.Empty(t, errs)

	assert.Equal(t, 2, result.Commits)
	assert.Equal(t, `{"layout":"wide","name":"Hello","pricing":{"amount":19.99},"uid":"c-1"}`,
		result.Files["cms/existing.json"])
}

func TestRun_PartialFailure(t *testing.T) {
	result, err := Run(loadTestScenario(t, "partial_failure"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	_, _, errs := result.Steps[0].Totals()
	require.Len(t, errs, 1)
	assert.Equal(t, "2", errs[0].SourceRemoteID)
}

func TestRun_MissingFolderIsFatal(t *testing.T) {
	result, err := Run(loadTestScenario(t, "missing_folder"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Fatal, "folder=cms")
	assert.Empty(t, result.Steps[0].Tables)
}

func TestRun_ExpectMismatchFailsResult(t *testing.T) {
	s := loadTestScenario(t, "create_then_update")
	s.Steps[0].Expect = &ExpectClause{Created: intPtr(5), ErrorContains: []string{"boom"}}
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "steps[0]: expected 5 created, got 1")
	assert.Contains(t, result.Errors[1], `no record error contains "boom"`)
}

func TestRun_UnexpectedFatal(t *testing.T) {
	s := loadTestScenario(t, "missing_folder")
	s.Steps[0].Expect = nil
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected fatal error")
}

func TestRun_ExpectedFatalButSucceeded(t *testing.T) {
	s := loadTestScenario(t, "create_then_update")
	s.Steps = s.Steps[:1]
	s.Steps[0].Expect = &ExpectClause{Fatal: "NOT_FOUND"}
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "run succeeded")
}

func TestRun_UnknownSyncName(t *testing.T) {
	s := loadTestScenario(t, "create_then_update")
	s.Sync = "shop"

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sync "shop" not found`)
}

func TestRun_InvalidDefinitionIsRejected(t *testing.T) {
	path := writeScenario(t, `
name: invalid
description: "matching column is not mapped"
specs: [bad.cue]
folders: [{id: posts}, {id: cms}]
steps: [{}]
`)
	dir := filepath.Dir(path)
	writeFile(t, filepath.Join(dir, "bad.cue"), `
sync: "bad": {
	tables: [{
		source: "posts", destination: "cms"
		columns: [{from: "title", to: "name"}]
		match: {source: "slug", destination: "name"}
	}]
}
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBadConfiguration)
	assert.Contains(t, err.Error(), "E109")
}

func TestRun_RecordsRunHistory(t *testing.T) {
	s := loadTestScenario(t, "create_then_update")
	st, err := openScenarioStore(t)
	require.NoError(t, err)

	h := newHarness(st, s)
	def, err := loadDefinition(s)
	require.NoError(t, err)

	ctx := context.Background()
	sync, err := h.service.CreateSync(ctx, h.workbook.ID(), *def, Actor)
	require.NoError(t, err)
	assert.Equal(t, "sync-0001", sync.ID)

	result := NewResult()
	h.executeStep(ctx, 0, s.Steps[0], sync.ID, result)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	runs, err := st.ListRuns(ctx, sync.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-0001", runs[0].ID)
	assert.Equal(t, model.RunStatusSucceeded, runs[0].Status)
}

func TestCheckExpect_NilExpectRequiresSuccess(t *testing.T) {
	assert.Empty(t, checkExpect(StepResult{}, nil))
	assert.Len(t, checkExpect(StepResult{Fatal: "boom"}, nil), 1)
}

func TestCheckExpect_ErrorCount(t *testing.T) {
	sr := StepResult{Tables: []model.SyncTableMappingResult{
		{RecordsCreated: 1, Errors: []model.RecordError{{SourceRemoteID: "a", Error: "bad value"}}},
		{RecordsUpdated: 2},
	}}

	assert.Empty(t, checkExpect(sr, &ExpectClause{
		Created:       intPtr(1),
		Updated:       intPtr(2),
		Errors:        intPtr(1),
		ErrorContains: []string{"bad"},
	}))

	msgs := checkExpect(sr, &ExpectClause{Errors: intPtr(0)})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "expected 0 record errors, got 1")
}
