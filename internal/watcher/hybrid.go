package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/mailsearch/internal/mailsource"
)

// HybridWatcher watches a mail tree with fsnotify, or by polling when
// fsnotify cannot be created or ForcePolling is set.
type HybridWatcher struct {
	opts      Options
	logger    *slog.Logger
	filter    func(path string) bool
	debouncer *Debouncer
	fsw       *fsnotify.Watcher // nil in polling mode

	root    string
	events  chan []FileEvent
	errors  chan error
	done    chan struct{}
	dropped atomic.Uint64

	mu      sync.RWMutex
	started bool
	stopped bool
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a watcher. Nothing is watched until Start.
func NewHybridWatcher(opts Options, logger *slog.Logger) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	filter := opts.Filter
	if filter == nil {
		filter = mailsource.IsMessageFile
	}

	h := &HybridWatcher{
		opts:      opts,
		logger:    logger,
		filter:    filter,
		debouncer: NewDebouncer(opts.DebounceWindow, logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
	if opts.ForcePolling {
		return h, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		return h, nil
	}
	h.fsw = fsw
	return h, nil
}

// Start puts watches on root and every folder below it, or takes the
// polling baseline, and returns. Changes made after Start returns are
// reported until Stop is called or ctx is done.
func (h *HybridWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	if info, err := os.Stat(abs); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	h.mu.Lock()
	switch {
	case h.stopped:
		h.mu.Unlock()
		return errors.New("watcher is stopped")
	case h.started:
		h.mu.Unlock()
		return errors.New("watcher already started")
	}
	h.started = true
	h.root = abs
	h.mu.Unlock()

	var loop func()
	if h.fsw != nil {
		if err := h.addTree(abs, false); err != nil {
			return fmt.Errorf("watch %s: %w", abs, err)
		}
		loop = func() { h.runFsnotify(ctx) }
	} else {
		p, err := newPoller(abs, h.opts.PollInterval)
		if err != nil {
			return err
		}
		loop = func() { p.run(ctx, h.done, h.report, h.emitError) }
	}

	go h.forward(ctx)
	go func() {
		loop()
		if ctx.Err() != nil {
			_ = h.Stop()
		}
	}()

	h.logger.Info("watch_started",
		slog.String("root", abs),
		slog.String("mode", h.WatcherType()))
	return nil
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			h.handle(ev)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

func (h *HybridWatcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// A new Maildir++ folder, or its cur/ and new/, may already
			// hold messages by the time the watch is added.
			if !skipDir(info.Name()) && !inSkippedDir(h.root, ev.Name) {
				if err := h.addTree(ev.Name, true); err != nil {
					h.emitError(err)
				}
			}
			return
		}
	}

	op, ok := operationOf(ev)
	if !ok {
		return
	}
	h.report(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

func operationOf(ev fsnotify.Event) (Operation, bool) {
	switch {
	case ev.Has(fsnotify.Create):
		return OpCreate, true
	case ev.Has(fsnotify.Write):
		return OpModify, true
	case ev.Has(fsnotify.Remove):
		return OpDelete, true
	case ev.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return 0, false
	}
}

// addTree watches dir and the folders below it. With existing set, files
// already present are reported as created.
func (h *HybridWatcher) addTree(dir string, existing bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return nil
		case d.IsDir() && path != dir && skipDir(d.Name()):
			return filepath.SkipDir
		case d.IsDir():
			return h.fsw.Add(path)
		case existing:
			h.report(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

// report queues ev for debouncing when it names a message file.
func (h *HybridWatcher) report(ev FileEvent) {
	if inSkippedDir(h.root, ev.Path) || !h.filter(ev.Path) {
		return
	}
	h.debouncer.Add(ev)
}

func (h *HybridWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) > 0 {
				h.emitBatch(batch)
			}
		}
	}
}

func (h *HybridWatcher) emitBatch(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.events <- batch:
	default:
		h.logger.Warn("watch_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("dropped_batches", h.dropped.Add(1)))
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop ends watching and closes the Events and Errors channels.
// Calling it more than once is safe.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	close(h.done)
	h.debouncer.Stop()
	var err error
	if h.fsw != nil {
		err = h.fsw.Close()
	}
	close(h.events)
	close(h.errors)
	return err
}

// Events returns debounced batches of message file changes.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns non-fatal watch errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// WatcherType returns "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	if h.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the absolute root passed to Start.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.root
}
