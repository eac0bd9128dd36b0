package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// DataDirLock marks a data directory as owned by one long-running writer
// (watch or serve) so two processes do not race on the same pending batches.
type DataDirLock struct {
	path  string
	flock *flock.Flock
	held  bool
}

// NewDataDirLock returns an unlocked lock for <dir>/.writer.lock.
func NewDataDirLock(dir string) *DataDirLock {
	path := filepath.Join(dir, ".writer.lock")
	return &DataDirLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. It fails with ERR_204_STORE_LOCKED
// when another process holds it.
func (l *DataDirLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return mserrors.New(mserrors.ErrCodeStoreLocked,
			fmt.Sprintf("data directory %s is in use by another mailsearch process", filepath.Dir(l.path)), nil).
			WithSuggestion("Stop the other watch or serve process, or use a different --data-dir")
	}
	l.held = true
	return nil
}

// Release unlocks. Safe to call when not held.
func (l *DataDirLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Held reports whether this process holds the lock.
func (l *DataDirLock) Held() bool {
	return l.held
}

// Path returns the lock file path.
func (l *DataDirLock) Path() string {
	return l.path
}
