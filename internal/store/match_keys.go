package store

import (
	"context"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/record"
)

// MatchPair is one source record correlated with a destination record
// through an equal match value.
type MatchPair struct {
	SourceRemoteID      string
	DestinationRemoteID string
}

// ClearMatchKeys removes every Match Key entry of a sync.
func (s *Store) ClearMatchKeys(ctx context.Context, syncID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM match_keys WHERE sync_id = ?`, syncID); err != nil {
		return fmt.Errorf("clear match keys: %w", err)
	}
	return nil
}

// InsertMatchKeys indexes records by the value at matchColumnID.
//
// Records whose value is missing, not a string, or empty are skipped; they
// cannot take part in matching. Duplicate tuples are ignored via
// ON CONFLICT DO NOTHING. Returns the number of rows actually inserted.
func (s *Store) InsertMatchKeys(ctx context.Context, syncID, dataFolderID string, records []model.ConnectorRecord, matchColumnID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert match keys: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_keys (sync_id, data_folder_id, match_id, remote_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert match keys: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		matchID, ok := MatchValue(rec, matchColumnID)
		if !ok {
			continue
		}

		res, err := stmt.ExecContext(ctx, syncID, dataFolderID, matchID, rec.ID)
		if err != nil {
			return 0, fmt.Errorf("insert match key for %s: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert match key: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert match keys: commit: %w", err)
	}
	return inserted, nil
}

// MatchValue returns the record's non-empty string value at column.
func MatchValue(rec model.ConnectorRecord, column string) (string, bool) {
	v, found := record.Lookup(rec.Fields, column)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ListMatchKeys returns the entries of one side of a sync ordered by
// match id then remote id.
func (s *Store) ListMatchKeys(ctx context.Context, syncID, dataFolderID string) ([]model.MatchKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, data_folder_id, match_id, remote_id
		FROM match_keys
		WHERE sync_id = ? AND data_folder_id = ?
		ORDER BY match_id COLLATE BINARY ASC, remote_id COLLATE BINARY ASC
	`, syncID, dataFolderID)
	if err != nil {
		return nil, fmt.Errorf("list match keys: %w", err)
	}
	defer rows.Close()

	keys := []model.MatchKey{}
	for rows.Next() {
		var k model.MatchKey
		if err := rows.Scan(&k.SyncID, &k.DataFolderID, &k.MatchID, &k.RemoteID); err != nil {
			return nil, fmt.Errorf("scan match key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match keys: %w", err)
	}
	return keys, nil
}

// CorrelateMatchKeys joins the source side's match keys against the
// destination side's by equal match value. Each source record appears at
// most once; when several destination records share its match value the
// lowest destination remote id in binary order wins.
func (s *Store) CorrelateMatchKeys(ctx context.Context, syncID, sourceFolderID, destinationFolderID string) ([]MatchPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT src.remote_id, MIN(dst.remote_id)
		FROM match_keys src
		JOIN match_keys dst
		  ON dst.sync_id = src.sync_id
		 AND dst.data_folder_id = ?
		 AND dst.match_id = src.match_id
		WHERE src.sync_id = ? AND src.data_folder_id = ?
		GROUP BY src.remote_id
		ORDER BY src.remote_id COLLATE BINARY ASC
	`, destinationFolderID, syncID, sourceFolderID)
	if err != nil {
		return nil, fmt.Errorf("correlate match keys: %w", err)
	}
	defer rows.Close()

	pairs := []MatchPair{}
	for rows.Next() {
		var p MatchPair
		if err := rows.Scan(&p.SourceRemoteID, &p.DestinationRemoteID); err != nil {
			return nil, fmt.Errorf("scan match pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match pairs: %w", err)
	}
	return pairs, nil
}
