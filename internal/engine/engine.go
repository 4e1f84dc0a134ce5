package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/store"
)

const (
	// DefaultBranch is the branch commits are written to unless WithBranch is used.
	DefaultBranch = "main"

	// DefaultLockRetry is the poll interval for a lock file held elsewhere.
	DefaultLockRetry = 100 * time.Millisecond
)

// FolderSource reads data folders of a workbook. Implementations own
// authorization; the actor is passed through.
type FolderSource interface {
	// FetchDataFolder returns the folder or an error wrapping model.ErrNotFound.
	FetchDataFolder(ctx context.Context, workbookID, folderID string, actor model.Actor) (*model.DataFolder, error)

	// FetchSchemaSpec returns the folder's schema, or nil when it has none.
	FetchSchemaSpec(ctx context.Context, workbookID, folderID string, actor model.Actor) (*model.SchemaSpec, error)

	// GetAllFileContentsByFolderID lists every record file of the folder.
	GetAllFileContentsByFolderID(ctx context.Context, workbookID, folderID string, actor model.Actor) ([]model.FileContent, error)
}

// CommitSink durably writes a batch of files to a branch as one commit.
// Either every file is written or none is.
type CommitSink interface {
	CommitFilesToBranch(ctx context.Context, workbookID, branch string, files []model.FileContent, message string) error
}

// Engine runs table mappings of syncs.
//
// Thread-safety: all methods are safe for concurrent use. Runs of the same
// sync id are serialized by a per-sync lock held for the whole run; runs of
// different syncs proceed in parallel. With WithLockDir the lock also holds
// across processes sharing the directory.
type Engine struct {
	store     *store.Store
	source    FolderSource
	sink      CommitSink
	fileID    IDGenerator
	runID     IDGenerator
	clock     Clock
	branch    string
	logger    *slog.Logger
	locks     *syncLocks
	lockDir   string
	lockRetry time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBranch sets the branch commits are written to.
func WithBranch(branch string) EngineOption {
	return func(e *Engine) {
		e.branch = branch
	}
}

// WithFileIDGenerator sets the generator for new placeholder file names.
func WithFileIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.fileID = g
	}
}

// WithRunIDGenerator sets the generator for run history ids.
func WithRunIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.runID = g
	}
}

// WithClock sets the clock used for run history timestamps.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLockDir sets the directory holding one lock file per sync id.
// Engines of different processes that share the directory never run the
// same sync at the same time. Without it the lock is process local.
func WithLockDir(dir string) EngineOption {
	return func(e *Engine) {
		e.lockDir = dir
	}
}

// WithLockRetry sets how often a held lock file is polled.
func WithLockRetry(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.lockRetry = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over a store and the workbook collaborators.
func New(s *store.Store, source FolderSource, sink CommitSink, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		source:    source,
		sink:      sink,
		fileID:    UUIDv7Generator{},
		runID:     UUIDv7Generator{},
		clock:     SystemClock{},
		branch:    DefaultBranch,
		logger:    slog.Default(),
		locks:     newSyncLocks(),
		lockRetry: DefaultLockRetry,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Branch returns the branch commits are written to.
func (e *Engine) Branch() string {
	return e.branch
}
