package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/foldersync/internal/model"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testTableMapping() model.TableMapping {
	return model.TableMapping{
		SourceDataFolderID:      "posts",
		DestinationDataFolderID: "cms",
		ColumnMappings: model.ColumnMappings{
			model.LocalMapping{SourceColumnID: "title", DestinationColumnID: "name"},
		},
		RecordMatching: &model.RecordMatching{SourceColumnID: "title", DestinationColumnID: "name"},
	}
}

// createTestSync inserts a sync with one table mapping and returns it.
func createTestSync(t *testing.T, s *Store, id string) model.Sync {
	t.Helper()
	sync := model.Sync{
		ID:            id,
		WorkbookID:    "wb1",
		Name:          "sync-" + id,
		TableMappings: []model.TableMapping{testTableMapping()},
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
	}
	if err := s.CreateSync(context.Background(), sync); err != nil {
		t.Fatalf("CreateSync() failed: %v", err)
	}
	return sync
}

func rec(id string, fields map[string]any) model.ConnectorRecord {
	return model.ConnectorRecord{ID: id, Path: id + ".json", Fields: fields}
}
