package gitstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/engine"
	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/store"
	"github.com/roach88/foldersync/internal/testutil"
)

func TestEngineAgainstRepo(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	commit(t, r,
		file("posts/1.json", `{"id": "1", "title": "Hello"}`),
		file("posts/2.json", `{"id": "2", "title": "World"}`),
		file("cms/_schema.yaml", "idColumnRemoteId: uid\n"),
		file("cms/existing.yaml", "uid: c-1\nname: Hello\nlayout: wide\n"),
	)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	tm := model.TableMapping{
		SourceDataFolderID:      "posts",
		DestinationDataFolderID: "cms",
		ColumnMappings: model.ColumnMappings{
			model.LocalMapping{
				SourceColumnID:      "title",
				DestinationColumnID: "name",
			},
		},
		RecordMatching: &model.RecordMatching{SourceColumnID: "title", DestinationColumnID: "name"},
	}
	require.NoError(t, st.CreateSync(ctx, model.Sync{
		ID:            "s1",
		WorkbookID:    "wb1",
		Name:          "blog",
		TableMappings: []model.TableMapping{tm},
		CreatedAt:     testutil.DefaultEpoch,
		UpdatedAt:     testutil.DefaultEpoch,
	}))

	e := engine.New(st, r, r,
		engine.WithFileIDGenerator(testutil.NewSequenceGenerator("new")),
		engine.WithRunIDGenerator(testutil.NewSequenceGenerator("run")),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
	)

	results, err := e.RunSync(ctx, "s1", actor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].RecordsCreated)
	assert.Equal(t, 1, results[0].RecordsUpdated)
	assert.Empty(t, results[0].Errors)

	files, err := r.GetAllFileContentsByFolderID(ctx, "wb1", "cms", actor)
	require.NoError(t, err)
	assert.Equal(t, []model.FileContent{
		file("cms/existing.yaml", "layout: wide\nname: Hello\nuid: c-1\n"),
		file("cms/new-0001.json", `{"name":"World"}`),
	}, files)
	before := commitCount(t, r)

	// A second run rewrites identical content, so no commit is added.
	results, err = e.RunSync(ctx, "s1", actor)
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].RecordsCreated)
	assert.Equal(t, 2, results[0].RecordsUpdated)
	assert.Equal(t, before, commitCount(t, r))
}
