package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
)

// WriteRun appends a run and its per-record errors to the history.
// Uses ON CONFLICT(id) DO NOTHING: writing the same run twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run model.SyncRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	var fatal sql.NullString
	if run.FatalError != "" {
		fatal = sql.NullString{String: run.FatalError, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_runs
		(id, sync_id, source_data_folder_id, destination_data_folder_id, status,
		 records_created, records_updated, fatal_error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.SyncID,
		run.SourceDataFolderID,
		run.DestinationDataFolderID,
		string(run.Status),
		run.RecordsCreated,
		run.RecordsUpdated,
		fatal,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, e := range run.Errors {
		var path sql.NullString
		if e.Path != "" {
			path = sql.NullString{String: e.Path, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_run_errors (run_id, position, source_remote_id, path, error)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, e.SourceRemoteID, path, e.Error); err != nil {
			return fmt.Errorf("write run error [%d]: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ListRuns returns a sync's run history, oldest first. When limit > 0 only
// the most recent limit runs are returned.
func (s *Store) ListRuns(ctx context.Context, syncID string, limit int) ([]model.SyncRun, error) {
	query := `
		SELECT id, sync_id, source_data_folder_id, destination_data_folder_id, status,
		       records_created, records_updated, fatal_error, started_at, finished_at
		FROM (
			SELECT * FROM sync_runs WHERE sync_id = ? ORDER BY seq DESC LIMIT ?
		)
		ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, query, syncID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := []model.SyncRun{}
	for rows.Next() {
		var (
			run                   model.SyncRun
			status                string
			fatal                 sql.NullString
			startedAt, finishedAt string
		)
		if err := rows.Scan(&run.ID, &run.SyncID, &run.SourceDataFolderID, &run.DestinationDataFolderID,
			&status, &run.RecordsCreated, &run.RecordsUpdated, &fatal, &startedAt, &finishedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = model.RunStatus(status)
		run.FatalError = fatal.String
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		runs[i].Errors, err = s.readRunErrors(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) readRunErrors(ctx context.Context, runID string) ([]model.RecordError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_remote_id, path, error
		FROM sync_run_errors
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run errors: %w", err)
	}
	defer rows.Close()

	var errs []model.RecordError
	for rows.Next() {
		var (
			e    model.RecordError
			path sql.NullString
		)
		if err := rows.Scan(&e.SourceRemoteID, &path, &e.Error); err != nil {
			return nil, fmt.Errorf("scan run error: %w", err)
		}
		e.Path = path.String
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run errors: %w", err)
	}
	return errs, nil
}
