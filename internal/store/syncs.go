package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
)

// CreateSync inserts a sync and its table mappings in one transaction.
// Returns ErrNameTaken when the workbook already has a sync with this name.
func (s *Store) CreateSync(ctx context.Context, sync model.Sync) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create sync: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO syncs (id, workbook_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sync.ID, sync.WorkbookID, sync.Name, formatTime(sync.CreatedAt), formatTime(sync.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create sync %q: %w", sync.Name, ErrNameTaken)
		}
		return fmt.Errorf("create sync: %w", err)
	}

	if err := insertTableMappings(ctx, tx, sync.ID, sync.TableMappings); err != nil {
		return fmt.Errorf("create sync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create sync: commit: %w", err)
	}
	return nil
}

// UpdateSync replaces a sync's name and table mappings.
// Match keys and remote identity rows are kept.
func (s *Store) UpdateSync(ctx context.Context, sync model.Sync) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update sync: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE syncs SET name = ?, updated_at = ? WHERE id = ?
	`, sync.Name, formatTime(sync.UpdatedAt), sync.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update sync %q: %w", sync.Name, ErrNameTaken)
		}
		return fmt.Errorf("update sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update sync %s: %w", sync.ID, model.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM table_mappings WHERE sync_id = ?`, sync.ID); err != nil {
		return fmt.Errorf("update sync: clear table mappings: %w", err)
	}
	if err := insertTableMappings(ctx, tx, sync.ID, sync.TableMappings); err != nil {
		return fmt.Errorf("update sync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update sync: commit: %w", err)
	}
	return nil
}

// DeleteSync removes a sync. Table mappings, match keys, remote identity
// rows and run history go with it.
func (s *Store) DeleteSync(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM syncs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete sync %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// GetSync returns a sync with its table mappings, or model.ErrNotFound.
func (s *Store) GetSync(ctx context.Context, id string) (*model.Sync, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workbook_id, name, created_at, updated_at
		FROM syncs WHERE id = ?
	`, id)

	sync, err := scanSync(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sync: %w", err)
	}

	sync.TableMappings, err = s.readTableMappings(ctx, sync.ID)
	if err != nil {
		return nil, fmt.Errorf("get sync: %w", err)
	}
	return &sync, nil
}

// FindSyncByName returns the workbook's sync with the given name, or
// model.ErrNotFound.
func (s *Store) FindSyncByName(ctx context.Context, workbookID, name string) (*model.Sync, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM syncs WHERE workbook_id = ? AND name = ?
	`, workbookID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync %q: %w", name, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find sync: %w", err)
	}
	return s.GetSync(ctx, id)
}

// ListSyncs returns every sync of a workbook ordered by name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListSyncs(ctx context.Context, workbookID string) ([]model.Sync, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workbook_id, name, created_at, updated_at
		FROM syncs
		WHERE workbook_id = ?
		ORDER BY name COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, workbookID)
	if err != nil {
		return nil, fmt.Errorf("list syncs: %w", err)
	}

	syncs := []model.Sync{}
	for rows.Next() {
		sync, err := scanSync(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list syncs: %w", err)
		}
		syncs = append(syncs, sync)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate syncs: %w", err)
	}
	// Single connection: release it before the nested reads.
	rows.Close()

	for i := range syncs {
		syncs[i].TableMappings, err = s.readTableMappings(ctx, syncs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list syncs: %w", err)
		}
	}
	return syncs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSync(row rowScanner) (model.Sync, error) {
	var (
		sync             model.Sync
		created, updated string
	)
	if err := row.Scan(&sync.ID, &sync.WorkbookID, &sync.Name, &created, &updated); err != nil {
		return model.Sync{}, err
	}

	var err error
	if sync.CreatedAt, err = parseTime(created); err != nil {
		return model.Sync{}, err
	}
	if sync.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Sync{}, err
	}
	return sync, nil
}

func insertTableMappings(ctx context.Context, tx *sql.Tx, syncID string, mappings []model.TableMapping) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO table_mappings
		(sync_id, position, source_data_folder_id, destination_data_folder_id,
		 column_mappings, matching_source_column_id, matching_destination_column_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare table mapping insert: %w", err)
	}
	defer stmt.Close()

	for i, tm := range mappings {
		columns, err := marshalColumnMappings(tm.ColumnMappings)
		if err != nil {
			return fmt.Errorf("table mapping [%d]: %w", i, err)
		}

		var matchSource, matchDest sql.NullString
		if tm.RecordMatching != nil {
			matchSource = sql.NullString{String: tm.RecordMatching.SourceColumnID, Valid: true}
			matchDest = sql.NullString{String: tm.RecordMatching.DestinationColumnID, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, syncID, i, tm.SourceDataFolderID, tm.DestinationDataFolderID,
			columns, matchSource, matchDest); err != nil {
			return fmt.Errorf("insert table mapping [%d]: %w", i, err)
		}
	}
	return nil
}

func (s *Store) readTableMappings(ctx context.Context, syncID string) ([]model.TableMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_data_folder_id, destination_data_folder_id, column_mappings,
		       matching_source_column_id, matching_destination_column_id
		FROM table_mappings
		WHERE sync_id = ?
		ORDER BY position ASC
	`, syncID)
	if err != nil {
		return nil, fmt.Errorf("query table mappings: %w", err)
	}
	defer rows.Close()

	mappings := []model.TableMapping{}
	for rows.Next() {
		var (
			tm                    model.TableMapping
			columns               string
			matchSource, matchDst sql.NullString
		)
		if err := rows.Scan(&tm.SourceDataFolderID, &tm.DestinationDataFolderID, &columns, &matchSource, &matchDst); err != nil {
			return nil, fmt.Errorf("scan table mapping: %w", err)
		}

		tm.ColumnMappings, err = unmarshalColumnMappings(columns)
		if err != nil {
			return nil, err
		}
		if matchSource.Valid && matchDst.Valid {
			tm.RecordMatching = &model.RecordMatching{
				SourceColumnID:      matchSource.String,
				DestinationColumnID: matchDst.String,
			}
		}
		mappings = append(mappings, tm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table mappings: %w", err)
	}
	return mappings, nil
}

func marshalColumnMappings(ms model.ColumnMappings) (string, error) {
	if ms == nil {
		ms = model.ColumnMappings{}
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return "", fmt.Errorf("marshal column mappings: %w", err)
	}
	return string(data), nil
}

func unmarshalColumnMappings(data string) (model.ColumnMappings, error) {
	var ms model.ColumnMappings
	if err := json.Unmarshal([]byte(data), &ms); err != nil {
		return nil, fmt.Errorf("unmarshal column mappings: %w", err)
	}
	return ms, nil
}
