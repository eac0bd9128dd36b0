package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options, root string) *HybridWatcher {
	t.Helper()
	w, err := NewHybridWatcher(opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	require.NoError(t, w.Start(ctx, root))
	return w
}

func waitForPath(t *testing.T, w *HybridWatcher, path string, op Operation) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case events, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			for _, e := range events {
				if e.Path == path && e.Operation == op {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", op, path)
		}
	}
}

func TestHybridWatcher_ReportsDeliveredMessage(t *testing.T) {
	// Given: a maildir being watched
	root := t.TempDir()
	for _, dir := range []string{"tmp", "new", "cur"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	w := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond}, root)

	// When: a message is delivered through tmp/ into new/
	tmp := filepath.Join(root, "tmp", "1700000000.1.host")
	dst := filepath.Join(root, "new", "1700000000.1.host")
	require.NoError(t, os.WriteFile(tmp, []byte(testMessage), 0o644))
	require.NoError(t, os.Rename(tmp, dst))

	// Then: the new/ file is reported
	waitForPath(t, w, dst, OpCreate)
}

func TestHybridWatcher_IgnoresNonMessageFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cur"), 0o755))
	w := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond}, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "dovecot.index"), []byte("x"), 0o644))
	eml := filepath.Join(root, "note.eml")
	require.NoError(t, os.WriteFile(eml, []byte(testMessage), 0o644))

	select {
	case events := <-w.Events():
		for _, e := range events {
			assert.Equal(t, eml, e.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for events")
	}
}

func TestHybridWatcher_NewFolderIsWatched(t *testing.T) {
	// Given: a watched root without sub-folders
	root := t.TempDir()
	w := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond}, root)
	if w.WatcherType() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	// When: a Maildir++ folder appears and then receives mail
	cur := filepath.Join(root, ".Archive", "cur")
	require.NoError(t, os.MkdirAll(cur, 0o755))
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(cur, "1700000000.2.host:2,S")
	require.NoError(t, os.WriteFile(path, []byte(testMessage), 0o644))

	// Then: the message is reported
	waitForPath(t, w, path, OpCreate)
}

func TestHybridWatcher_PollingFallback(t *testing.T) {
	// Given: a watcher forced into polling mode
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cur"), 0o755))
	w := startWatcher(t, Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		ForcePolling:   true,
	}, root)
	assert.Equal(t, "polling", w.WatcherType())

	// When: a message appears and is then deleted
	path := filepath.Join(root, "cur", "1700000000.3.host:2,")
	require.NoError(t, os.WriteFile(path, []byte(testMessage), 0o644))
	waitForPath(t, w, path, OpCreate)
	require.NoError(t, os.Remove(path))

	// Then: the delete is reported too
	waitForPath(t, w, path, OpDelete)
}

func TestHybridWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions(), nil)
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestHybridWatcher_StartRejectsMissingRoot(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions(), nil)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestHybridWatcher_StartTwice(t *testing.T) {
	// Given: a started watcher
	root := t.TempDir()
	w := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond}, root)
	assert.Equal(t, root, w.RootPath())

	// When: starting it again
	err := w.Start(context.Background(), root)

	// Then: the second start is refused
	assert.ErrorContains(t, err, "already started")
}

func TestHybridWatcher_StopsWithContext(t *testing.T) {
	// Given: a polling watcher bound to a context
	w, err := NewHybridWatcher(Options{PollInterval: 20 * time.Millisecond, ForcePolling: true}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, t.TempDir()))

	// When: the context is cancelled
	cancel()

	// Then: the events channel closes
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-w.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
