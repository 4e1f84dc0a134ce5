package model

import "time"

// DefaultIDColumn is the identifier field used when a schema does not name one.
const DefaultIDColumn = "id"

// Actor identifies who triggered an operation. It is passed through to the
// workbook collaborators, which own authorization.
type Actor struct {
	UserID string `json:"user_id"`
}

// Sync is a named, durable sync configuration scoped to a workbook.
type Sync struct {
	ID            string         `json:"id"`
	WorkbookID    string         `json:"workbook_id"`
	Name          string         `json:"name"`
	TableMappings []TableMapping `json:"table_mappings"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SyncDefinition is the user-supplied shape of a sync, before it has an ID.
// Used by create and update.
type SyncDefinition struct {
	Name          string         `json:"name"`
	TableMappings []TableMapping `json:"table_mappings"`
}

// TableMapping pairs one source data folder with one destination data folder.
type TableMapping struct {
	SourceDataFolderID      string          `json:"source_data_folder_id"`
	DestinationDataFolderID string          `json:"destination_data_folder_id"`
	ColumnMappings          ColumnMappings  `json:"column_mappings"`
	RecordMatching          *RecordMatching `json:"record_matching,omitempty"`
}

// RecordMatching names the field on each side whose value decides that two
// records denote the same logical entity.
type RecordMatching struct {
	SourceColumnID      string `json:"source_column_id"`
	DestinationColumnID string `json:"destination_column_id"`
}

// ConnectorRecord is the per-run representation of one stored record.
//
// Path is the file the record was parsed from. For a destination file that
// is still a pending placeholder (never published), ID equals Path and
// Pending is true.
type ConnectorRecord struct {
	ID      string         `json:"id"`
	Path    string         `json:"path"`
	Fields  map[string]any `json:"fields"`
	Pending bool           `json:"pending,omitempty"`
}

// Identity returns the DestinationID under which this record is correlated.
func (r ConnectorRecord) Identity() DestinationID {
	if r.Pending {
		return Pending(r.Path)
	}
	return Published(r.ID)
}

// FileContent is one (path, content) pair read from or written to the file store.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DataFolder is a named collection of record files within a workbook.
// Path is the folder's location inside the workbook; new files are created below it.
type DataFolder struct {
	ID         string `json:"id"`
	WorkbookID string `json:"workbook_id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
}

// SchemaSpec describes a data folder's records.
// Schema is opaque to the engine; only IDColumnRemoteID is consumed.
type SchemaSpec struct {
	Schema           map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	IDColumnRemoteID string         `json:"id_column_remote_id,omitempty" yaml:"idColumnRemoteId,omitempty"`
}

// IDColumn returns the configured identifier column, defaulting to "id".
// A nil spec is valid and yields the default.
func (s *SchemaSpec) IDColumn() string {
	if s == nil || s.IDColumnRemoteID == "" {
		return DefaultIDColumn
	}
	return s.IDColumnRemoteID
}

// MatchKey is one Match Key Index entry.
type MatchKey struct {
	SyncID       string `json:"sync_id"`
	DataFolderID string `json:"data_folder_id"`
	MatchID      string `json:"match_id"`
	RemoteID     string `json:"remote_id"`
}

// RemoteMapping correlates a source record with its destination record.
// Destination is nil when a row exists without a destination identifier.
type RemoteMapping struct {
	SyncID         string         `json:"sync_id"`
	DataFolderID   string         `json:"data_folder_id"`
	SourceRemoteID string         `json:"source_remote_id"`
	Destination    *DestinationID `json:"destination,omitempty"`
}

// RemoteMappingPair is the input shape for correlator upserts.
type RemoteMappingPair struct {
	SourceRemoteID string
	Destination    *DestinationID
}

// RecordError is a per-record failure collected during a run.
type RecordError struct {
	SourceRemoteID string `json:"source_remote_id"`
	Path           string `json:"path,omitempty"`
	Error          string `json:"error"`
}

// SyncTableMappingResult summarizes one table mapping run.
type SyncTableMappingResult struct {
	SourceDataFolderID      string        `json:"source_data_folder_id"`
	DestinationDataFolderID string        `json:"destination_data_folder_id"`
	RecordsCreated          int           `json:"records_created"`
	RecordsUpdated          int           `json:"records_updated"`
	Errors                  []RecordError `json:"errors"`
}

// HasErrors reports whether any per-record error was collected.
func (r *SyncTableMappingResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RunStatus is the terminal state of a recorded sync run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun is a persisted history entry for one table mapping run.
type SyncRun struct {
	ID                      string        `json:"id"`
	SyncID                  string        `json:"sync_id"`
	SourceDataFolderID      string        `json:"source_data_folder_id"`
	DestinationDataFolderID string        `json:"destination_data_folder_id"`
	Status                  RunStatus     `json:"status"`
	RecordsCreated          int           `json:"records_created"`
	RecordsUpdated          int           `json:"records_updated"`
	FatalError              string        `json:"fatal_error,omitempty"`
	Errors                  []RecordError `json:"errors,omitempty"`
	StartedAt               time.Time     `json:"started_at"`
	FinishedAt              time.Time     `json:"finished_at"`
}
