package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
)

// RunSync runs every table mapping of a sync in order while holding the
// sync's lock for the whole sequence.
//
// The first fatal error stops the sequence; results of the table mappings
// that already ran are returned alongside it.
func (e *Engine) RunSync(ctx context.Context, syncID string, actor model.Actor) ([]model.SyncTableMappingResult, error) {
	unlock, err := e.acquire(ctx, syncID)
	if err != nil {
		return nil, fmt.Errorf("sync %s: acquire lock: %w", syncID, err)
	}
	defer unlock()

	sync, err := e.store.GetSync(ctx, syncID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, newNotFoundError(syncID, "", "sync", err)
		}
		return nil, fmt.Errorf("sync %s: %w", syncID, err)
	}

	results := make([]model.SyncTableMappingResult, 0, len(sync.TableMappings))
	for i, tm := range sync.TableMappings {
		result, err := e.runAndRecord(ctx, sync.ID, tm, sync.WorkbookID, actor)
		if err != nil {
			return results, fmt.Errorf("table mapping [%d] %s -> %s: %w",
				i, tm.SourceDataFolderID, tm.DestinationDataFolderID, err)
		}
		results = append(results, *result)
	}

	return results, nil
}
