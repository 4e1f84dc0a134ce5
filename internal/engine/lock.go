package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// acquire takes the sync's lock for a run. The in-process lock is taken
// first, then the sync's lock file when a lock directory is set. The
// returned func releases both.
func (e *Engine) acquire(ctx context.Context, syncID string) (func(), error) {
	unlock, err := e.locks.lock(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if e.lockDir == "" {
		return unlock, nil
	}

	if err := os.MkdirAll(e.lockDir, 0o755); err != nil {
		unlock()
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	// Acquire exclusive lock to keep other processes off this sync
	fl := flock.New(lockFilePath(e.lockDir, syncID))
	locked, err := fl.TryLockContext(ctx, e.lockRetry)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("lock file %s: %w", fl.Path(), err)
	}
	if !locked {
		unlock()
		return nil, fmt.Errorf("lock file %s is held by another process", fl.Path())
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			e.logger.Warn("failed to release sync lock file", "sync_id", syncID, "path", fl.Path(), "error", err)
		}
		unlock()
	}, nil
}

// lockFilePath returns the lock file of a sync inside dir.
func lockFilePath(dir, syncID string) string {
	return filepath.Join(dir, url.PathEscape(syncID)+".lock")
}

// syncLocks is a mutex keyed by sync id.
//
// Runs of the same sync are serialized because a run clears and rebuilds the
// sync's match keys. Runs of different syncs proceed in parallel. Entries are
// reference counted and removed once no caller holds or waits for them.
type syncLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newSyncLocks() *syncLocks {
	return &syncLocks{entries: make(map[string]*lockEntry)}
}

// lock blocks until the sync's lock is held or ctx is done.
// The returned func releases the lock and must be called exactly once.
func (l *syncLocks) lock(ctx context.Context, syncID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[syncID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[syncID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(syncID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(syncID, entry)
		})
	}, nil
}

func (l *syncLocks) release(syncID string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, syncID)
	}
}

// size returns the number of live entries. Used for testing.
func (l *syncLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
