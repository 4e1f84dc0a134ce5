package gitstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/foldersync/internal/model"
)

// ErrBranchMoved is returned when the branch changed between reading its
// head and updating it. Nothing was written to the branch.
var ErrBranchMoved = errors.New("branch moved during commit")

// CommitFilesToBranch writes every file in one commit on top of the
// branch head. Either the branch ends up at a commit containing all files
// or it is left untouched. A batch that changes nothing creates no commit.
func (r *Repo) CommitFilesToBranch(ctx context.Context, workbookID, branch string, files []model.FileContent, message string) error {
	if err := r.checkWorkbook(workbookID); err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	ref := branchRef(branch)
	parent, err := r.resolve(ctx, ref+"^{commit}")
	if err != nil {
		return fmt.Errorf("commit to %s: %w", branch, err)
	}

	indexDir, err := os.MkdirTemp("", "foldersync-index-*")
	if err != nil {
		return fmt.Errorf("commit to %s: %w", branch, err)
	}
	defer os.RemoveAll(indexDir)
	env := []string{"GIT_INDEX_FILE=" + filepath.Join(indexDir, "index")}

	if parent != "" {
		if _, err := r.git(ctx, runOptions{env: env}, "read-tree", parent); err != nil {
			return fmt.Errorf("commit to %s: %w", branch, err)
		}
	} else {
		if _, err := r.git(ctx, runOptions{env: env}, "read-tree", "--empty"); err != nil {
			return fmt.Errorf("commit to %s: %w", branch, err)
		}
	}

	var info strings.Builder
	for _, f := range files {
		p, err := cleanPath(f.Path)
		if err != nil {
			return fmt.Errorf("commit to %s: %s: %w", branch, f.Path, err)
		}
		oid, err := r.gitLine(ctx, runOptions{stdin: strings.NewReader(f.Content)}, "hash-object", "-w", "--stdin")
		if err != nil {
			return fmt.Errorf("commit to %s: store %s: %w", branch, p, err)
		}
		fmt.Fprintf(&info, "100644 %s\t%s\n", oid, p)
	}
	if _, err := r.git(ctx, runOptions{env: env, stdin: strings.NewReader(info.String())}, "update-index", "--add", "--index-info"); err != nil {
		return fmt.Errorf("commit to %s: %w", branch, err)
	}

	tree, err := r.gitLine(ctx, runOptions{env: env}, "write-tree")
	if err != nil {
		return fmt.Errorf("commit to %s: %w", branch, err)
	}

	if parent != "" {
		parentTree, err := r.gitLine(ctx, runOptions{}, "rev-parse", parent+"^{tree}")
		if err != nil {
			return fmt.Errorf("commit to %s: %w", branch, err)
		}
		if parentTree == tree {
			r.logger.Debug("commit skipped, tree unchanged", "branch", branch, "files", len(files))
			return nil
		}
	}

	args := []string{"commit-tree", tree, "-m", message}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	commit, err := r.gitLine(ctx, runOptions{env: r.signatureEnv()}, args...)
	if err != nil {
		return fmt.Errorf("commit to %s: %w", branch, err)
	}

	old := parent
	if old == "" {
		old = strings.Repeat("0", len(commit))
	}
	if _, err := r.git(ctx, runOptions{}, "update-ref", "-m", message, ref, commit, old); err != nil {
		return fmt.Errorf("commit to %s: %w: %v", branch, ErrBranchMoved, err)
	}

	r.logger.Info("committed",
		"branch", branch,
		"commit", commit,
		"files", len(files))
	return nil
}

func (r *Repo) signatureEnv() []string {
	return []string{
		"GIT_AUTHOR_NAME=" + r.author.Name,
		"GIT_AUTHOR_EMAIL=" + r.author.Email,
		"GIT_COMMITTER_NAME=" + r.author.Name,
		"GIT_COMMITTER_EMAIL=" + r.author.Email,
	}
}
