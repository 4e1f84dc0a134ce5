package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func TestPlaceholderPaths_RecordedPerFolder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordPlaceholders(ctx, "wb1", "cms", []string{"cms/a.json", "cms/b.json"}))
	require.NoError(t, s.RecordPlaceholders(ctx, "wb1", "cms", []string{"cms/a.json"}), "re-recording is a no-op")
	require.NoError(t, s.RecordPlaceholders(ctx, "wb1", "archive", []string{"archive/c.json"}))
	require.NoError(t, s.RecordPlaceholders(ctx, "wb2", "cms", []string{"cms/d.json"}))
	require.NoError(t, s.RecordPlaceholders(ctx, "wb1", "cms", nil))

	paths, err := s.PlaceholderPaths(ctx, "wb1", "cms")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"cms/a.json": true, "cms/b.json": true}, paths)

	paths, err = s.PlaceholderPaths(ctx, "wb1", "empty")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPlaceholderPaths_SurviveSyncDeletion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")

	require.NoError(t, s.RecordPlaceholders(ctx, "wb1", "cms", []string{"cms/a.json"}))
	require.NoError(t, s.DeleteSync(ctx, "s1"))

	paths, err := s.PlaceholderPaths(ctx, "wb1", "cms")
	require.NoError(t, err)
	assert.True(t, paths["cms/a.json"])
}

func TestMigrateToV2_BackfillsPendingMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	sync := createTestSync(t, s, "s1")
	require.NoError(t, s.UpsertRemoteMappings(ctx, "s1", sync.TableMappings[0], []model.RemoteMappingPair{
		{SourceRemoteID: "1", Destination: dest(model.Pending("cms/a.json"))},
		{SourceRemoteID: "2", Destination: dest(model.Published("r-2"))},
	}))
	_, err = s.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	paths, err := s.PlaceholderPaths(ctx, "wb1", "cms")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"cms/a.json": true}, paths)
}
