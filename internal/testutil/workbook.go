package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/foldersync/internal/model"
)

// Commit is one batch accepted by a MemoryWorkbook.
type Commit struct {
	WorkbookID string
	Branch     string
	Message    string
	Files      []model.FileContent
}

// MemoryWorkbook is an in-memory workbook implementing the engine's
// FolderSource and CommitSink.
//
// Files live in a flat path -> content map; a data folder owns every file
// below its path. Commits apply all files or none.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryWorkbook struct {
	mu         sync.Mutex
	id         string
	folders    map[string]model.DataFolder
	schemas    map[string]*model.SchemaSpec
	files      map[string]string
	commits    []Commit
	commitErrs []error
	fetchErr   error
}

// NewMemoryWorkbook creates an empty workbook.
func NewMemoryWorkbook(id string) *MemoryWorkbook {
	return &MemoryWorkbook{
		id:      id,
		folders: make(map[string]model.DataFolder),
		schemas: make(map[string]*model.SchemaSpec),
		files:   make(map[string]string),
	}
}

// ID returns the workbook id.
func (w *MemoryWorkbook) ID() string {
	return w.id
}

// AddFolder registers a data folder rooted at path.
func (w *MemoryWorkbook) AddFolder(id, name, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.folders[id] = model.DataFolder{ID: id, WorkbookID: w.id, Name: name, Path: path}
}

// SetSchema sets the schema of a folder. A nil schema removes it.
func (w *MemoryWorkbook) SetSchema(folderID string, schema *model.SchemaSpec) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if schema == nil {
		delete(w.schemas, folderID)
		return
	}
	w.schemas[folderID] = schema
}

// PutFile writes a file outside of any commit.
func (w *MemoryWorkbook) PutFile(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = content
}

// DeleteFile removes a file outside of any commit.
func (w *MemoryWorkbook) DeleteFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, path)
}

// File returns a file's content.
func (w *MemoryWorkbook) File(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.files[path]
	return c, ok
}

// Files returns a copy of every file.
func (w *MemoryWorkbook) Files() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.files)
}

// FolderFiles returns the files of a folder sorted by path.
func (w *MemoryWorkbook) FolderFiles(folderID string) []model.FileContent {
	w.mu.Lock()
	defer w.mu.Unlock()
	folder, ok := w.folders[folderID]
	if !ok {
		return nil
	}
	return w.folderFilesLocked(folder)
}

// Commits returns every accepted commit in order.
func (w *MemoryWorkbook) Commits() []Commit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.commits)
}

// FailNextCommits makes the next commits fail with the given errors, one
// error per commit, in order.
func (w *MemoryWorkbook) FailNextCommits(errs ...error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commitErrs = append(w.commitErrs, errs...)
}

// FailFetches makes every schema fetch and file listing fail with err until
// called with nil.
func (w *MemoryWorkbook) FailFetches(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetchErr = err
}

// FetchDataFolder implements engine.FolderSource.
func (w *MemoryWorkbook) FetchDataFolder(_ context.Context, workbookID, folderID string, _ model.Actor) (*model.DataFolder, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if workbookID != w.id {
		return nil, fmt.Errorf("workbook %s: %w", workbookID, model.ErrNotFound)
	}
	folder, ok := w.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("data folder %s: %w", folderID, model.ErrNotFound)
	}
	return &folder, nil
}

// FetchSchemaSpec implements engine.FolderSource.
func (w *MemoryWorkbook) FetchSchemaSpec(_ context.Context, _ string, folderID string, _ model.Actor) (*model.SchemaSpec, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fetchErr != nil {
		return nil, w.fetchErr
	}
	schema, ok := w.schemas[folderID]
	if !ok {
		return nil, nil
	}
	clone := *schema
	return &clone, nil
}

// GetAllFileContentsByFolderID implements engine.FolderSource.
func (w *MemoryWorkbook) GetAllFileContentsByFolderID(_ context.Context, workbookID, folderID string, _ model.Actor) ([]model.FileContent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fetchErr != nil {
		return nil, w.fetchErr
	}
	if workbookID != w.id {
		return nil, fmt.Errorf("workbook %s: %w", workbookID, model.ErrNotFound)
	}
	folder, ok := w.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("data folder %s: %w", folderID, model.ErrNotFound)
	}
	return w.folderFilesLocked(folder), nil
}

// CommitFilesToBranch implements engine.CommitSink.
func (w *MemoryWorkbook) CommitFilesToBranch(_ context.Context, workbookID, branch string, files []model.FileContent, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.commitErrs) > 0 {
		err := w.commitErrs[0]
		w.commitErrs = w.commitErrs[1:]
		return err
	}
	if workbookID != w.id {
		return fmt.Errorf("workbook %s: %w", workbookID, model.ErrNotFound)
	}

	for _, f := range files {
		w.files[f.Path] = f.Content
	}
	w.commits = append(w.commits, Commit{
		WorkbookID: workbookID,
		Branch:     branch,
		Message:    message,
		Files:      slices.Clone(files),
	})
	return nil
}

func (w *MemoryWorkbook) folderFilesLocked(folder model.DataFolder) []model.FileContent {
	prefix := strings.TrimSuffix(folder.Path, "/") + "/"
	if folder.Path == "" {
		prefix = ""
	}

	var out []model.FileContent
	for _, p := range slices.Sorted(maps.Keys(w.files)) {
		if strings.HasPrefix(p, prefix) {
			out = append(out, model.FileContent{Path: p, Content: w.files[p]})
		}
	}
	return out
}
