package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/foldersync/internal/mapping"
	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/record"
)

// side is one data folder of a table mapping as loaded for a run.
type side struct {
	folder  *model.DataFolder
	schema  *model.SchemaSpec
	records []model.ConnectorRecord
}

// pendingWrite is one file of the batch and the source record behind it.
type pendingWrite struct {
	sourceRemoteID string
	file           model.FileContent
	created        bool
}

// SyncTableMapping copies the records of tm's source data folder into its
// destination data folder.
//
// Fatal errors (*SyncError, or a wrapped store error) abort the run before
// anything is committed. Per-record failures are collected in the result and
// the run continues past them. The sync's lock is held for the whole run and
// the run is appended to the sync's history.
func (e *Engine) SyncTableMapping(ctx context.Context, syncID string, tm model.TableMapping, workbookID string, actor model.Actor) (*model.SyncTableMappingResult, error) {
	unlock, err := e.acquire(ctx, syncID)
	if err != nil {
		return nil, fmt.Errorf("sync %s: acquire lock: %w", syncID, err)
	}
	defer unlock()

	if _, err := e.store.GetSync(ctx, syncID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, newNotFoundError(syncID, "", "sync", err)
		}
		return nil, fmt.Errorf("sync %s: %w", syncID, err)
	}

	return e.runAndRecord(ctx, syncID, tm, workbookID, actor)
}

// runAndRecord runs one table mapping and appends it to the run history.
// The caller holds the sync's lock.
func (e *Engine) runAndRecord(ctx context.Context, syncID string, tm model.TableMapping, workbookID string, actor model.Actor) (*model.SyncTableMappingResult, error) {
	log := e.logger.With(
		"sync_id", syncID,
		"source", tm.SourceDataFolderID,
		"destination", tm.DestinationDataFolderID,
	)

	started := e.clock.Now()
	log.Info("table mapping run started")

	result, err := e.syncTableMapping(ctx, log, syncID, tm, workbookID, actor)
	if err != nil {
		log.Error("table mapping run aborted", "error", err)
	} else {
		log.Info("table mapping run finished",
			"created", result.RecordsCreated,
			"updated", result.RecordsUpdated,
			"errors", len(result.Errors),
		)
	}

	e.recordRun(ctx, log, syncID, tm, started, result, err)
	return result, err
}

func (e *Engine) syncTableMapping(ctx context.Context, log *slog.Logger, syncID string, tm model.TableMapping, workbookID string, actor model.Actor) (*model.SyncTableMappingResult, error) {
	// 1. Load both data folders and their schemas.
	src, err := e.loadSide(ctx, syncID, workbookID, tm.SourceDataFolderID, actor)
	if err != nil {
		return nil, err
	}
	dst, err := e.loadSide(ctx, syncID, workbookID, tm.DestinationDataFolderID, actor)
	if err != nil {
		return nil, err
	}

	if tm.RecordMatching == nil {
		return nil, newBadConfigurationError(syncID, "table mapping has no record matching rule")
	}
	if tm.SourceDataFolderID == tm.DestinationDataFolderID {
		return nil, newBadConfigurationError(syncID, "source and destination data folder are the same")
	}

	// 2. Match keys are rebuilt from scratch on every run.
	if err := e.store.ClearMatchKeys(ctx, syncID); err != nil {
		return nil, err
	}

	// 3. Fetch and parse both sides concurrently. Placeholders committed by
	// any sync into the destination may still lack an identifier.
	pendingPaths, err := e.store.PlaceholderPaths(ctx, workbookID, tm.DestinationDataFolderID)
	if err != nil {
		return nil, err
	}
	correlatedPending, err := e.store.PendingPaths(ctx, syncID, tm.SourceDataFolderID)
	if err != nil {
		return nil, err
	}
	maps.Copy(pendingPaths, correlatedPending)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src.records, err = e.fetchRecords(gctx, syncID, workbookID, src, record.ParseOptions{
			IDColumn: src.schema.IDColumn(),
		}, actor)
		return err
	})
	g.Go(func() error {
		var err error
		dst.records, err = e.fetchRecords(gctx, syncID, workbookID, dst, record.ParseOptions{
			IDColumn:     dst.schema.IDColumn(),
			PendingPaths: pendingPaths,
		}, actor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("records fetched", "source_records", len(src.records), "destination_records", len(dst.records))

	// 4. Rebuild match keys for both sides.
	srcKeys, err := e.store.InsertMatchKeys(ctx, syncID, tm.SourceDataFolderID, src.records, tm.RecordMatching.SourceColumnID)
	if err != nil {
		return nil, err
	}
	dstKeys, err := e.store.InsertMatchKeys(ctx, syncID, tm.DestinationDataFolderID, dst.records, tm.RecordMatching.DestinationColumnID)
	if err != nil {
		return nil, err
	}
	log.Debug("match keys rebuilt", "source_keys", srcKeys, "destination_keys", dstKeys)

	// 5. Refresh correlation from current match values.
	byRemoteID := make(map[string]model.ConnectorRecord, len(dst.records))
	for _, r := range dst.records {
		byRemoteID[r.ID] = r
	}

	matches, err := e.store.CorrelateMatchKeys(ctx, syncID, tm.SourceDataFolderID, tm.DestinationDataFolderID)
	if err != nil {
		return nil, err
	}
	correlated := make([]model.RemoteMappingPair, 0, len(matches))
	for _, m := range matches {
		target, ok := byRemoteID[m.DestinationRemoteID]
		if !ok {
			continue
		}
		identity := target.Identity()
		correlated = append(correlated, model.RemoteMappingPair{SourceRemoteID: m.SourceRemoteID, Destination: &identity})
	}
	if err := e.store.UpsertRemoteMappings(ctx, syncID, tm, correlated); err != nil {
		return nil, err
	}
	log.Debug("identities correlated", "matches", len(correlated))

	// 6. Partition source records into creates and updates.
	sourceIDs := make([]string, len(src.records))
	for i, r := range src.records {
		sourceIDs[i] = r.ID
	}
	known, err := e.store.LookupRemoteMappings(ctx, syncID, tm.SourceDataFolderID, sourceIDs)
	if err != nil {
		return nil, err
	}

	result := &model.SyncTableMappingResult{
		SourceDataFolderID:      tm.SourceDataFolderID,
		DestinationDataFolderID: tm.DestinationDataFolderID,
		Errors:                  []model.RecordError{},
	}
	fail := func(sourceID, filePath string, err error) {
		log.Warn("record skipped", "source_remote_id", sourceID, "path", filePath, "error", err)
		result.Errors = append(result.Errors, model.RecordError{SourceRemoteID: sourceID, Path: filePath, Error: err.Error()})
	}

	destinations := newDestinationIndex(dst.records)
	var batch []pendingWrite
	writtenBy := make(map[string]string)

	for _, rec := range src.records {
		fields, err := mapping.Transform(rec, tm.ColumnMappings)
		if err != nil {
			fail(rec.ID, "", err)
			continue
		}

		dest := known[rec.ID]
		if dest == nil {
			filePath := path.Join(dst.folder.Path, e.fileID.Generate()+".json")
			content, err := record.EncodeFields(filePath, fields)
			if err != nil {
				fail(rec.ID, filePath, err)
				continue
			}
			log.Debug("record new", "source_remote_id", rec.ID, "path", filePath)
			batch = append(batch, pendingWrite{
				sourceRemoteID: rec.ID,
				file:           model.FileContent{Path: filePath, Content: content},
				created:        true,
			})
			writtenBy[filePath] = rec.ID
			continue
		}

		target, ok := destinations.resolve(*dest)
		if !ok {
			fail(rec.ID, "", fmt.Errorf("destination record %s not found in data folder %s", dest, tm.DestinationDataFolderID))
			continue
		}
		if other, dup := writtenBy[target.Path]; dup {
			fail(rec.ID, target.Path, fmt.Errorf("destination file %s is already written by source record %s", target.Path, other))
			continue
		}

		content, err := record.EncodeFields(target.Path, mapping.Merge(target.Fields, fields))
		if err != nil {
			fail(rec.ID, target.Path, err)
			continue
		}
		log.Debug("record matched", "source_remote_id", rec.ID, "destination", dest.String(), "path", target.Path)
		batch = append(batch, pendingWrite{
			sourceRemoteID: rec.ID,
			file:           model.FileContent{Path: target.Path, Content: content},
		})
		writtenBy[target.Path] = rec.ID
	}

	if len(batch) == 0 {
		return result, nil
	}

	for _, w := range batch {
		if w.created {
			result.RecordsCreated++
		} else {
			result.RecordsUpdated++
		}
	}

	// 7. One atomic commit for the whole batch.
	files := make([]model.FileContent, len(batch))
	for i, w := range batch {
		files[i] = w.file
	}
	message := fmt.Sprintf("sync %s: %s -> %s (%d created, %d updated)",
		syncID, src.folder.Name, dst.folder.Name, result.RecordsCreated, result.RecordsUpdated)

	if err := e.sink.CommitFilesToBranch(ctx, workbookID, e.branch, files, message); err != nil {
		log.Warn("batch commit failed", "files", len(files), "error", err)
		result.RecordsCreated = 0
		result.RecordsUpdated = 0
		for _, w := range batch {
			result.Errors = append(result.Errors, model.RecordError{
				SourceRemoteID: w.sourceRemoteID,
				Path:           w.file.Path,
				Error:          fmt.Sprintf("batch commit failed: %v", err),
			})
		}
		return result, nil
	}

	// 8. Only committed creates are correlated, under their placeholder path.
	var (
		created      []model.RemoteMappingPair
		placeholders []string
	)
	for _, w := range batch {
		if !w.created {
			continue
		}
		placeholder := model.Pending(w.file.Path)
		created = append(created, model.RemoteMappingPair{SourceRemoteID: w.sourceRemoteID, Destination: &placeholder})
		placeholders = append(placeholders, w.file.Path)
	}
	if err := e.store.RecordPlaceholders(ctx, workbookID, tm.DestinationDataFolderID, placeholders); err != nil {
		return nil, fmt.Errorf("persist placeholders for committed records: %w", err)
	}
	if err := e.store.UpsertRemoteMappings(ctx, syncID, tm, created); err != nil {
		return nil, fmt.Errorf("persist correlation for committed records: %w", err)
	}

	return result, nil
}

// destinationIndex resolves destination identifiers against the records
// fetched in this run: pending identifiers by file path, published
// identifiers by record id.
type destinationIndex struct {
	byPath      map[string]model.ConnectorRecord
	byPublished map[string]model.ConnectorRecord
}

func newDestinationIndex(records []model.ConnectorRecord) destinationIndex {
	idx := destinationIndex{
		byPath:      make(map[string]model.ConnectorRecord, len(records)),
		byPublished: make(map[string]model.ConnectorRecord, len(records)),
	}
	for _, r := range records {
		idx.byPath[r.Path] = r
		if !r.Pending {
			idx.byPublished[r.ID] = r
		}
	}
	return idx
}

func (idx destinationIndex) resolve(dest model.DestinationID) (model.ConnectorRecord, bool) {
	if dest.IsPending() {
		r, ok := idx.byPath[dest.Value()]
		return r, ok
	}
	r, ok := idx.byPublished[dest.Value()]
	return r, ok
}

// loadSide fetches a data folder and its schema.
func (e *Engine) loadSide(ctx context.Context, syncID, workbookID, folderID string, actor model.Actor) (*side, error) {
	folder, err := e.source.FetchDataFolder(ctx, workbookID, folderID, actor)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, newNotFoundError(syncID, folderID, "data folder", err)
		}
		return nil, newFetchError(syncID, folderID, "data folder", err)
	}
	if folder == nil {
		return nil, newNotFoundError(syncID, folderID, "data folder", model.ErrNotFound)
	}

	schema, err := e.source.FetchSchemaSpec(ctx, workbookID, folderID, actor)
	if err != nil {
		return nil, newFetchError(syncID, folderID, "schema", err)
	}

	return &side{folder: folder, schema: schema}, nil
}

// fetchRecords lists a folder's files and parses them. A file without a
// usable identifier fails the whole run.
func (e *Engine) fetchRecords(ctx context.Context, syncID, workbookID string, s *side, opts record.ParseOptions, actor model.Actor) ([]model.ConnectorRecord, error) {
	files, err := e.source.GetAllFileContentsByFolderID(ctx, workbookID, s.folder.ID, actor)
	if err != nil {
		return nil, newFetchError(syncID, s.folder.ID, "files", err)
	}

	recordFiles := make([]model.FileContent, 0, len(files))
	for _, f := range files {
		if record.IsRecordFile(f.Path) {
			recordFiles = append(recordFiles, f)
		}
	}

	records, err := record.ParseFiles(recordFiles, opts)
	if err != nil {
		return nil, newParseError(syncID, s.folder.ID, err)
	}
	return records, nil
}

// recordRun appends the run to the history. A failure to record is logged
// and does not change the run's outcome.
func (e *Engine) recordRun(ctx context.Context, log *slog.Logger, syncID string, tm model.TableMapping, started time.Time, result *model.SyncTableMappingResult, runErr error) {
	run := model.SyncRun{
		ID:                      e.runID.Generate(),
		SyncID:                  syncID,
		SourceDataFolderID:      tm.SourceDataFolderID,
		DestinationDataFolderID: tm.DestinationDataFolderID,
		StartedAt:               started,
		FinishedAt:              e.clock.Now(),
	}

	switch {
	case runErr != nil:
		run.Status = model.RunStatusFailed
		run.FatalError = runErr.Error()
	case result.HasErrors():
		run.Status = model.RunStatusPartial
	default:
		run.Status = model.RunStatusSucceeded
	}
	if result != nil {
		run.RecordsCreated = result.RecordsCreated
		run.RecordsUpdated = result.RecordsUpdated
		run.Errors = result.Errors
	}

	if err := e.store.WriteRun(ctx, run); err != nil {
		log.Warn("failed to record sync run", "run_id", run.ID, "error", err)
	}
}
