package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foldersync/internal/model"
)

func TestInsertMatchKeys_SkipsUnmatchable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")

	records := []model.ConnectorRecord{
		rec("1", map[string]any{"title": "A"}),
		rec("2", map[string]any{}),                    // missing
		rec("3", map[string]any{"title": nil}),        // null
		rec("4", map[string]any{"title": ""}),         // empty
		rec("5", map[string]any{"title": float64(7)}), // non-string
		rec("6", map[string]any{"title": "B"}),
	}

	n, err := s.InsertMatchKeys(ctx, "s1", "posts", records, "title")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := s.ListMatchKeys(ctx, "s1", "posts")
	require.NoError(t, err)
	assert.Equal(t, []model.MatchKey{
		{SyncID: "s1", DataFolderID: "posts", MatchID: "A", RemoteID: "1"},
		{SyncID: "s1", DataFolderID: "posts", MatchID: "B", RemoteID: "6"},
	}, keys)
}

func TestInsertMatchKeys_Dedup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")

	records := []model.ConnectorRecord{rec("1", map[string]any{"title": "A"})}

	n, err := s.InsertMatchKeys(ctx, "s1", "posts", records, "title")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.InsertMatchKeys(ctx, "s1", "posts", records, "title")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "duplicate tuple is a no-op")

	keys, err := s.ListMatchKeys(ctx, "s1", "posts")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestInsertMatchKeys_NestedColumn(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")

	records := []model.ConnectorRecord{rec("1", map[string]any{"meta": map[string]any{"slug": "a"}})}

	n, err := s.InsertMatchKeys(ctx, "s1", "cms", records, "meta.slug")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClearMatchKeys_ScopedToSync(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")
	createTestSync(t, s, "s2")

	records := []model.ConnectorRecord{rec("1", map[string]any{"title": "A"})}
	_, err := s.InsertMatchKeys(ctx, "s1", "posts", records, "title")
	require.NoError(t, err)
	_, err = s.InsertMatchKeys(ctx, "s2", "posts", records, "title")
	require.NoError(t, err)

	require.NoError(t, s.ClearMatchKeys(ctx, "s1"))

	k1, err := s.ListMatchKeys(ctx, "s1", "posts")
	require.NoError(t, err)
	assert.Empty(t, k1)

	k2, err := s.ListMatchKeys(ctx, "s2", "posts")
	require.NoError(t, err)
	assert.Len(t, k2, 1)
}

func TestCorrelateMatchKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")

	_, err := s.InsertMatchKeys(ctx, "s1", "posts", []model.ConnectorRecord{
		rec("1", map[string]any{"title": "A"}),
		rec("2", map[string]any{"title": "B"}),
		rec("3", map[string]any{"title": "C"}),
	}, "title")
	require.NoError(t, err)

	_, err = s.InsertMatchKeys(ctx, "s1", "cms", []model.ConnectorRecord{
		rec("r-b2", map[string]any{"name": "B"}),
		rec("r-a", map[string]any{"name": "A"}),
		rec("r-b1", map[string]any{"name": "B"}),
		rec("r-x", map[string]any{"name": "a"}), // case differs: no match
	}, "name")
	require.NoError(t, err)

	pairs, err := s.CorrelateMatchKeys(ctx, "s1", "posts", "cms")
	require.NoError(t, err)
	assert.Equal(t, []MatchPair{
		{SourceRemoteID: "1", DestinationRemoteID: "r-a"},
		{SourceRemoteID: "2", DestinationRemoteID: "r-b1"},
	}, pairs)
}

func TestCorrelateMatchKeys_IgnoresOtherSyncs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSync(t, s, "s1")
	createTestSync(t, s, "s2")

	_, err := s.InsertMatchKeys(ctx, "s1", "posts", []model.ConnectorRecord{rec("1", map[string]any{"title": "A"})}, "title")
	require.NoError(t, err)
	_, err = s.InsertMatchKeys(ctx, "s2", "cms", []model.ConnectorRecord{rec("r-a", map[string]any{"name": "A"})}, "name")
	require.NoError(t, err)

	pairs, err := s.CorrelateMatchKeys(ctx, "s1", "posts", "cms")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}
