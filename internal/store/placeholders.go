package store

import (
	"context"
	"fmt"
)

// RecordPlaceholders remembers files committed without an identifier in a
// destination data folder. Paths already recorded are ignored.
func (s *Store) RecordPlaceholders(ctx context.Context, workbookID, dataFolderID string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record placeholders: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO placeholder_files (workbook_id, data_folder_id, path)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("record placeholders: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, workbookID, dataFolderID, p); err != nil {
			return fmt.Errorf("record placeholder %s: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record placeholders: commit: %w", err)
	}
	return nil
}

// PlaceholderPaths returns every placeholder path recorded for a data
// folder, whichever sync wrote it.
func (s *Store) PlaceholderPaths(ctx context.Context, workbookID, dataFolderID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path
		FROM placeholder_files
		WHERE workbook_id = ? AND data_folder_id = ?
	`, workbookID, dataFolderID)
	if err != nil {
		return nil, fmt.Errorf("query placeholder paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan placeholder path: %w", err)
		}
		paths[p] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placeholder paths: %w", err)
	}
	return paths, nil
}
