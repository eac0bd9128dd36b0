package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// incompleteMarker exists in the data dir while a scan is running. It is
// left behind when the process dies mid-scan.
const incompleteMarker = "scan.incomplete"

// ScanFunc does the scanning work and reports into progress.
type ScanFunc func(ctx context.Context, progress *Progress) error

// IndexerConfig configures a BackgroundIndexer.
type IndexerConfig struct {
	DataDir string
}

// BackgroundIndexer runs one scan in a goroutine.
type BackgroundIndexer struct {
	config   IndexerConfig
	progress *Progress

	// ScanFunc is the work to run.
	ScanFunc ScanFunc

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewBackgroundIndexer creates an indexer that has not started.
func NewBackgroundIndexer(cfg IndexerConfig, scan ScanFunc) *BackgroundIndexer {
	return &BackgroundIndexer{
		config:   cfg,
		progress: NewProgress(),
		ScanFunc: scan,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker.
func (b *BackgroundIndexer) Progress() *Progress {
	return b.progress
}

// IsRunning reports whether the scan goroutine is active.
func (b *BackgroundIndexer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start runs the scan in a goroutine. Only the first call has an effect.
func (b *BackgroundIndexer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundIndexer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	marker := filepath.Join(b.config.DataDir, incompleteMarker)
	if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
		b.fail(err)
		return
	}
	if err := os.WriteFile(marker, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		b.fail(err)
		return
	}

	if b.ScanFunc != nil {
		if err := b.ScanFunc(ctx, b.progress); err != nil {
			b.fail(err)
			return
		}
	}

	_ = os.Remove(marker)
	b.progress.SetReady()
}

// fail records err. The marker stays so the next run knows the scan is
// incomplete.
func (b *BackgroundIndexer) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels a running scan and waits for it to return.
func (b *BackgroundIndexer) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return
	}
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Wait blocks until the scan finishes and returns its error.
func (b *BackgroundIndexer) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteScan reports whether a scan in dataDir started and never
// finished.
func HasIncompleteScan(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, incompleteMarker))
	return err == nil
}
