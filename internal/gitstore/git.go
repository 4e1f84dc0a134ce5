package gitstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned by Open when no git binary is on PATH.
var ErrGitNotFound = errors.New("git executable not found")

// runOptions tweaks one git invocation.
type runOptions struct {
	env   []string
	stdin io.Reader
}

// git runs a git command in the repository and returns its stdout.
// Stderr is folded into the error.
func (r *Repo) git(ctx context.Context, opts runOptions, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), opts.env...)
	cmd.Stdin = opts.stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// gitLine runs a git command and returns its trimmed output.
func (r *Repo) gitLine(ctx context.Context, opts runOptions, args ...string) (string, error) {
	out, err := r.git(ctx, opts, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// resolve returns the object id ref points to, or "" when it does not exist.
func (r *Repo) resolve(ctx context.Context, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, "rev-parse", "--verify", "--quiet", ref)
	cmd.Dir = r.dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(string(out)), nil
}
