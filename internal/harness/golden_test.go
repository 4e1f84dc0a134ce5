package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"create_then_update", "partial_failure"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, loadTestScenario(t, name)))
		})
	}
}

func TestRunWithGolden_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "create_then_update")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalSnapshot(t *testing.T) {
	result := NewResult()
	result.Steps = []StepResult{
		{Step: 0, Tables: []model.SyncTableMappingResult{{
			SourceDataFolderID:      "posts",
			DestinationDataFolderID: "cms",
			RecordsCreated:          1,
			Errors: []model.RecordError{
				{SourceRemoteID: "2", Path: "cms/x.json", Error: "batch commit failed: <boom>"},
			},
		}}},
		{Step: 1, Tables: []model.SyncTableMappingResult{}, Fatal: "NOT_FOUND"},
	}
	result.Files = map[string]string{"cms/x.json": `{"a":1}`}

	out, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)

	want := `{"files":{"cms/x.json":"{\"a\":1}"},"scenario_name":"snap","steps":[` +
		`{"step":0,"tables":[{"created":1,"destination":"cms","errors":[{"error":"batch commit failed: <boom>","path":"cms/x.json","source_remote_id":"2"}],"source":"posts","updated":0}]},` +
		`{"fatal":"NOT_FOUND","step":1,"tables":[]}]}` + "\n"
	assert.Equal(t, want, string(out))
}
