// Package store provides SQLite-backed durable state for the sync engine.
//
// Tables:
//   - syncs, table_mappings: sync configuration (deleting a sync cascades)
//   - match_keys: the Match Key Index, cleared and rebuilt on every run
//   - remote_id_mappings: the Remote Identity Correlator, durable across runs
//   - sync_runs, sync_run_errors: append-only run history
//
// # Match keys
//
// UNIQUE(sync_id, data_folder_id, match_id, remote_id) with INSERT ... ON
// CONFLICT DO NOTHING: inserting the same tuple twice leaves one row. Match
// values compare by exact string equality.
//
// # Remote identity
//
// Rows are keyed by (sync_id, source data folder, source remote id). The
// destination is either NULL, pending(path) or published(id), stored as a
// kind/value column pair. Upserts overwrite only the destination.
//
// # Deterministic reads
//
// Every multi-row query orders by an explicit key with COLLATE BINARY so
// results do not depend on insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
