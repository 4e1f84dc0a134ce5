// Package engine implements the sync orchestrator.
//
// A run of one table mapping is a fixed pipeline:
//
//  1. Load both data folders and their schemas
//  2. Clear the sync's match keys
//  3. Fetch and parse records of both sides (concurrently)
//  4. Rebuild match keys from the table mapping's record matching rule
//  5. Correlate source and destination records with equal match values
//  6. Partition source records into new (placeholder file) and known
//     (existing destination file) and transform them
//  7. Commit every resolved file in one batch
//  8. Correlate newly created records with their placeholder path
//  9. Return counts and per-record errors
//
// FAILURE TIERS:
//
// Fatal errors (*SyncError) abort a run before anything is written: a missing
// sync or data folder, a table mapping without a record matching rule, or a
// record file without a usable identifier. Per-record failures (transform
// errors, a known destination that disappeared, a failed batch commit) are
// collected in model.SyncTableMappingResult and the run continues.
//
// A failed batch commit marks every batched record as errored and reports
// zero created and zero updated records.
//
// CONCURRENCY:
//
// The engine holds a per-sync-id lock for the whole run. Runs of different
// syncs share nothing but the store and proceed in parallel. Nothing is
// retried.
package engine
