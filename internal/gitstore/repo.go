package gitstore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/foldersync/internal/model"
)

// SchemaFile is the per-folder schema file name.
const SchemaFile = "_schema.yaml"

// Signature is the identity recorded on commits.
type Signature struct {
	Name  string
	Email string
}

// DefaultSignature is used when no signature option is given.
var DefaultSignature = Signature{Name: "foldersync", Email: "foldersync@localhost"}

// Repo is a git repository serving one workbook.
//
// Thread-safety: reads are safe for concurrent use. Concurrent commits to
// the same branch are safe as well: the loser of a race fails with
// ErrBranchMoved instead of overwriting.
type Repo struct {
	dir        string
	gitDir     string
	gitPath    string
	workbookID string
	branch     string
	author     Signature
	logger     *slog.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithBranch sets the branch read by the FolderSource methods.
// Defaults to "main".
func WithBranch(branch string) Option {
	return func(r *Repo) {
		r.branch = branch
	}
}

// WithSignature sets the author and committer of new commits.
func WithSignature(sig Signature) Option {
	return func(r *Repo) {
		r.author = sig
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) {
		r.logger = l
	}
}

// Open opens the repository at dir as workbook workbookID.
// dir may be a bare repository or any directory inside a work tree.
func Open(ctx context.Context, dir, workbookID string, opts ...Option) (*Repo, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, ErrGitNotFound
	}

	r := &Repo{
		dir:        dir,
		gitPath:    gitPath,
		workbookID: workbookID,
		branch:     "main",
		author:     DefaultSignature,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	gitDir, err := r.gitLine(ctx, runOptions{}, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", dir, err)
	}
	r.gitDir = gitDir
	return r, nil
}

// WorkbookID returns the workbook this repository serves.
func (r *Repo) WorkbookID() string {
	return r.workbookID
}

// Branch returns the branch read by the FolderSource methods.
func (r *Repo) Branch() string {
	return r.branch
}

// GitDir returns the absolute git directory.
func (r *Repo) GitDir() string {
	return r.gitDir
}

// Head returns the commit the branch points to, or "" for an unborn branch.
func (r *Repo) Head(ctx context.Context, branch string) (string, error) {
	return r.resolve(ctx, branchRef(branch)+"^{commit}")
}

func (r *Repo) checkWorkbook(workbookID string) error {
	if workbookID != r.workbookID {
		return fmt.Errorf("workbook %s: %w", workbookID, model.ErrNotFound)
	}
	return nil
}

// FetchDataFolder returns the folder at path folderID on the branch, or
// model.ErrNotFound when the branch has no such directory.
func (r *Repo) FetchDataFolder(ctx context.Context, workbookID, folderID string, _ model.Actor) (*model.DataFolder, error) {
	if err := r.checkWorkbook(workbookID); err != nil {
		return nil, err
	}
	folderPath, err := cleanPath(folderID)
	if err != nil {
		return nil, fmt.Errorf("data folder %s: %w", folderID, err)
	}

	ok, err := r.isTree(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("data folder %s: %w", folderID, model.ErrNotFound)
	}

	return &model.DataFolder{
		ID:         folderPath,
		WorkbookID: r.workbookID,
		Name:       path.Base(folderPath),
		Path:       folderPath,
	}, nil
}

// FetchSchemaSpec reads the folder's _schema.yaml. Returns nil, nil when
// the folder has none.
func (r *Repo) FetchSchemaSpec(ctx context.Context, workbookID, folderID string, _ model.Actor) (*model.SchemaSpec, error) {
	if err := r.checkWorkbook(workbookID); err != nil {
		return nil, err
	}
	folderPath, err := cleanPath(folderID)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", folderID, err)
	}

	oid, err := r.resolve(ctx, branchRef(r.branch)+":"+path.Join(folderPath, SchemaFile))
	if err != nil {
		return nil, err
	}
	if oid == "" {
		return nil, nil
	}

	blobs, err := r.readBlobs(ctx, []string{oid})
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", folderID, err)
	}

	var spec model.SchemaSpec
	if err := yaml.Unmarshal(blobs[0], &spec); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", folderID, err)
	}
	return &spec, nil
}

// GetAllFileContentsByFolderID returns every file below the folder, sorted
// by path, excluding the schema file.
func (r *Repo) GetAllFileContentsByFolderID(ctx context.Context, workbookID, folderID string, _ model.Actor) ([]model.FileContent, error) {
	if err := r.checkWorkbook(workbookID); err != nil {
		return nil, err
	}
	folderPath, err := cleanPath(folderID)
	if err != nil {
		return nil, fmt.Errorf("data folder %s: %w", folderID, err)
	}

	ok, err := r.isTree(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("data folder %s: %w", folderID, model.ErrNotFound)
	}

	out, err := r.git(ctx, runOptions{}, "ls-tree", "-r", "-z", "--full-tree", branchRef(r.branch), "--", folderPath+"/")
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	entries, err := parseTreeEntries(out)
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}

	var (
		paths []string
		oids  []string
	)
	for _, e := range entries {
		if e.kind != "blob" || path.Base(e.path) == SchemaFile {
			continue
		}
		paths = append(paths, norm.NFC.String(e.path))
		oids = append(oids, e.oid)
	}

	files := make([]model.FileContent, 0, len(oids))
	if len(oids) == 0 {
		return files, nil
	}

	blobs, err := r.readBlobs(ctx, oids)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folderID, err)
	}
	for i, content := range blobs {
		files = append(files, model.FileContent{Path: paths[i], Content: string(content)})
	}

	r.logger.Debug("folder listed", "folder", folderPath, "files", len(files))
	return files, nil
}

// isTree reports whether p is a directory on the read branch.
func (r *Repo) isTree(ctx context.Context, p string) (bool, error) {
	head, err := r.Head(ctx, r.branch)
	if err != nil || head == "" {
		return false, err
	}
	out, err := r.git(ctx, runOptions{}, "ls-tree", "-z", "--full-tree", head, "--", p)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	entries, err := parseTreeEntries(out)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.path == p && e.kind == "tree" {
			return true, nil
		}
	}
	return false, nil
}

type treeEntry struct {
	mode string
	kind string
	oid  string
	path string
}

// parseTreeEntries parses `git ls-tree -z` output:
// "<mode> SP <type> SP <object> TAB <path> NUL".
func parseTreeEntries(out []byte) ([]treeEntry, error) {
	var entries []treeEntry
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		meta, p, ok := bytes.Cut(rec, []byte{'\t'})
		if !ok {
			return nil, fmt.Errorf("malformed ls-tree entry %q", rec)
		}
		fields := strings.Fields(string(meta))
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ls-tree entry %q", rec)
		}
		entries = append(entries, treeEntry{mode: fields[0], kind: fields[1], oid: fields[2], path: string(p)})
	}
	return entries, nil
}

// readBlobs reads objects through one `git cat-file --batch` call and
// returns their contents in request order.
func (r *Repo) readBlobs(ctx context.Context, oids []string) ([][]byte, error) {
	stdin := strings.NewReader(strings.Join(oids, "\n") + "\n")
	out, err := r.git(ctx, runOptions{stdin: stdin}, "cat-file", "--batch")
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(bytes.NewReader(out))
	blobs := make([][]byte, 0, len(oids))
	for _, oid := range oids {
		header, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("cat-file %s: header: %w", oid, err)
		}
		fields := strings.Fields(header)
		if len(fields) != 3 {
			return nil, fmt.Errorf("cat-file %s: %s", oid, strings.TrimSpace(header))
		}
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("cat-file %s: size %q: %w", oid, fields[2], err)
		}

		content := make([]byte, size)
		if _, err := io.ReadFull(br, content); err != nil {
			return nil, fmt.Errorf("cat-file %s: content: %w", oid, err)
		}
		if _, err := br.Discard(1); err != nil {
			return nil, fmt.Errorf("cat-file %s: trailer: %w", oid, err)
		}
		blobs = append(blobs, content)
	}
	return blobs, nil
}
