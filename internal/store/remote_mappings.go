package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
)

// UpsertRemoteMappings records the destination of each source record of a
// table mapping. Rows are keyed by (syncID, source data folder, source
// remote id); an existing row has only its destination overwritten. A nil
// destination stores NULL.
func (s *Store) UpsertRemoteMappings(ctx context.Context, syncID string, tm model.TableMapping, pairs []model.RemoteMappingPair) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert remote mappings: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO remote_id_mappings
		(sync_id, data_folder_id, source_remote_id, destination_kind, destination_remote_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sync_id, data_folder_id, source_remote_id) DO UPDATE SET
			destination_kind = excluded.destination_kind,
			destination_remote_id = excluded.destination_remote_id
	`)
	if err != nil {
		return fmt.Errorf("upsert remote mappings: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		var kind, value sql.NullString
		if p.Destination != nil {
			kind = sql.NullString{String: string(p.Destination.Kind()), Valid: true}
			value = sql.NullString{String: p.Destination.Value(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, syncID, tm.SourceDataFolderID, p.SourceRemoteID, kind, value); err != nil {
			return fmt.Errorf("upsert remote mapping for %s: %w", p.SourceRemoteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert remote mappings: commit: %w", err)
	}
	return nil
}

// LookupRemoteMappings returns the recorded destination for each of the
// given source remote ids. An id with a row but no destination maps to nil;
// an id without a row is absent from the result.
func (s *Store) LookupRemoteMappings(ctx context.Context, syncID, dataFolderID string, sourceRemoteIDs []string) (map[string]*model.DestinationID, error) {
	wanted := make(map[string]bool, len(sourceRemoteIDs))
	for _, id := range sourceRemoteIDs {
		wanted[id] = true
	}

	mappings, err := s.ListRemoteMappings(ctx, syncID, dataFolderID)
	if err != nil {
		return nil, fmt.Errorf("lookup remote mappings: %w", err)
	}

	result := make(map[string]*model.DestinationID, len(sourceRemoteIDs))
	for _, m := range mappings {
		if wanted[m.SourceRemoteID] {
			result[m.SourceRemoteID] = m.Destination
		}
	}
	return result, nil
}

// ListRemoteMappings returns every row for one source data folder of a sync,
// ordered by source remote id.
func (s *Store) ListRemoteMappings(ctx context.Context, syncID, dataFolderID string) ([]model.RemoteMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, data_folder_id, source_remote_id, destination_kind, destination_remote_id
		FROM remote_id_mappings
		WHERE sync_id = ? AND data_folder_id = ?
		ORDER BY source_remote_id COLLATE BINARY ASC
	`, syncID, dataFolderID)
	if err != nil {
		return nil, fmt.Errorf("query remote mappings: %w", err)
	}
	defer rows.Close()

	mappings := []model.RemoteMapping{}
	for rows.Next() {
		var (
			m           model.RemoteMapping
			kind, value sql.NullString
		)
		if err := rows.Scan(&m.SyncID, &m.DataFolderID, &m.SourceRemoteID, &kind, &value); err != nil {
			return nil, fmt.Errorf("scan remote mapping: %w", err)
		}
		if kind.Valid && value.Valid {
			dest, err := model.ParseDestinationID(kind.String, value.String)
			if err != nil {
				return nil, fmt.Errorf("remote mapping %s: %w", m.SourceRemoteID, err)
			}
			m.Destination = &dest
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate remote mappings: %w", err)
	}
	return mappings, nil
}

// PendingPaths returns the placeholder paths recorded for a source data
// folder that have not been replaced by a published identifier yet.
func (s *Store) PendingPaths(ctx context.Context, syncID, dataFolderID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT destination_remote_id
		FROM remote_id_mappings
		WHERE sync_id = ? AND data_folder_id = ? AND destination_kind = 'pending'
	`, syncID, dataFolderID)
	if err != nil {
		return nil, fmt.Errorf("query pending paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan pending path: %w", err)
		}
		paths[p] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending paths: %w", err)
	}
	return paths, nil
}
