package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogDefs = `package syncs

sync: "blog": {
	tables: [{
		source:      "posts"
		destination: "cms"
		columns: [
			{from: "title", to: "name"},
			{from: "price", to: "pricing.amount", transform: "cents_to_dollars"},
		]
		match: {source: "title", destination: "name"}
	}]
}
`

// writeDefs writes CUE files into a fresh directory and returns it.
func writeDefs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestCheck_Valid(t *testing.T) {
	dir := writeDefs(t, map[string]string{"blog.cue": blogDefs})

	stdout, _, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Equal(t, "1 sync(s) valid in 1 file(s)\n", stdout)
}

func TestCheck_ValidJSON(t *testing.T) {
	dir := writeDefs(t, map[string]string{"blog.cue": blogDefs})

	stdout, _, err := execute(t, "check", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"blog"}, resp.Data.Syncs)
}

func TestCheck_ValidationErrors(t *testing.T) {
	dir := writeDefs(t, map[string]string{"loop.cue": `package syncs

sync: "loop": {
	tables: [{
		source:      "posts"
		destination: "posts"
		columns: [{from: "title", to: "name"}]
	}]
}
`})

	stdout, _, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E030]")
	assert.Contains(t, stdout, "[E103 loop]")
}

func TestCheck_CompileErrorsAreCollected(t *testing.T) {
	dir := writeDefs(t, map[string]string{
		"blog.cue":   blogDefs,
		"broken.cue": "package syncs\n\nsync: \"broken\": {}\n",
	})

	stdout, _, err := execute(t, "check", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.Contains(t, stdout, ErrCodeCompileFailed)
}

func TestCheck_LoadFailures(t *testing.T) {
	tests := []struct {
		name     string
		dir      func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing directory",
			dir:      func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "no files",
			dir:      func(t *testing.T) string { return t.TempDir() },
			wantCode: ErrCodeNoFiles,
		},
		{
			name: "syntax error",
			dir: func(t *testing.T) string {
				return writeDefs(t, map[string]string{"bad.cue": "package syncs\n\nsync: {\n"})
			},
			wantCode: ErrCodeLoadFailed,
		},
		{
			name: "no syncs",
			dir: func(t *testing.T) string {
				return writeDefs(t, map[string]string{"empty.cue": "package syncs\n\nother: 1\n"})
			},
			wantCode: ErrCodeNoSyncs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "check", tt.dir(t), "--format", "json")
			require.Error(t, err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestLoadDefinitions_NestedFilesCounted(t *testing.T) {
	dir := writeDefs(t, map[string]string{"blog.cue": blogDefs})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "other.cue"), []byte("package other\n"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	result, errs := LoadDefinitions(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	require.Len(t, result.Syncs, 1)
	assert.Equal(t, "blog", result.Syncs[0].Name)
}
