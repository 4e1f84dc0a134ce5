package gitstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Watch is given none.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called with the new head commit after the branch moved.
type ChangeFunc func(ctx context.Context, commit string)

// Watch blocks until ctx is done, calling onChange whenever the branch
// head changes. Bursts of ref updates within debounce are coalesced into
// one call. onChange runs on the watch goroutine, so a slow callback
// delays the next check rather than overlapping with it.
func (r *Repo) Watch(ctx context.Context, branch string, debounce time.Duration, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Loose refs live under refs/heads; packed refs and reftable updates
	// touch the git dir itself.
	refDir := filepath.Dir(filepath.Join(r.gitDir, filepath.FromSlash(branchRef(branch))))
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		return fmt.Errorf("watch %s: %w", branch, err)
	}
	for _, dir := range []string{r.gitDir, refDir} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	last, err := r.Head(ctx, branch)
	if err != nil {
		return err
	}
	r.logger.Info("watching branch", "branch", branch, "head", last, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", "branch", branch, "error", err)

		case <-timer.C:
			head, err := r.Head(ctx, branch)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("read branch head", "branch", branch, "error", err)
				continue
			}
			if head == "" || head == last {
				continue
			}
			r.logger.Debug("branch moved", "branch", branch, "from", last, "to", head)
			last = head
			onChange(ctx, head)
		}
	}
}
