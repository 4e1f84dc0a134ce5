package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func TestMemoryWorkbook_FolderListing(t *testing.T) {
	wb := NewMemoryWorkbook("wb")
	wb.AddFolder("posts", "Posts", "posts")
	wb.AddFolder("postscript", "PS", "postscript")
	wb.PutFile("posts/b.json", `{"id":"b"}`)
	wb.PutFile("posts/a.json", `{"id":"a"}`)
	wb.PutFile("postscript/c.json", `{"id":"c"}`)

	files, err := wb.GetAllFileContentsByFolderID(context.Background(), "wb", "posts", model.Actor{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "posts/a.json", files[0].Path)
	assert.Equal(t, "posts/b.json", files[1].Path)
}

func TestMemoryWorkbook_NotFound(t *testing.T) {
	wb := NewMemoryWorkbook("wb")
	ctx := context.Background()

	_, err := wb.FetchDataFolder(ctx, "wb", "missing", model.Actor{})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = wb.FetchDataFolder(ctx, "other", "missing", model.Actor{})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	schema, err := wb.FetchSchemaSpec(ctx, "wb", "missing", model.Actor{})
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestMemoryWorkbook_CommitAllOrNothing(t *testing.T) {
	wb := NewMemoryWorkbook("wb")
	ctx := context.Background()
	boom := errors.New("boom")
	wb.FailNextCommits(boom)

	files := []model.FileContent{{Path: "a.json", Content: "{}"}, {Path: "b.json", Content: "{}"}}

	err := wb.CommitFilesToBranch(ctx, "wb", "main", files, "first")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, wb.Files())
	assert.Empty(t, wb.Commits())

	require.NoError(t, wb.CommitFilesToBranch(ctx, "wb", "main", files, "second"))
	assert.Len(t, wb.Files(), 2)

	commits := wb.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "second", commits[0].Message)
	assert.Equal(t, "main", commits[0].Branch)
}

func TestMemoryWorkbook_FailFetches(t *testing.T) {
	wb := NewMemoryWorkbook("wb")
	wb.AddFolder("posts", "Posts", "posts")
	ctx := context.Background()
	offline := errors.New("offline")

	wb.FailFetches(offline)
	_, err := wb.GetAllFileContentsByFolderID(ctx, "wb", "posts", model.Actor{})
	assert.ErrorIs(t, err, offline)
	_, err = wb.FetchSchemaSpec(ctx, "wb", "posts", model.Actor{})
	assert.ErrorIs(t, err, offline)

	folder, err := wb.FetchDataFolder(ctx, "wb", "posts", model.Actor{})
	require.NoError(t, err, "folder metadata is unaffected")
	assert.Equal(t, "posts", folder.Path)

	wb.FailFetches(nil)
	_, err = wb.GetAllFileContentsByFolderID(ctx, "wb", "posts", model.Actor{})
	assert.NoError(t, err)
}
