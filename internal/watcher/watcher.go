package watcher

import (
	"context"
	"path/filepath"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file was rewritten or replaced.
	OpModify
	// OpDelete indicates a file is gone.
	OpDelete
	// OpRename indicates a file was renamed away. The new name arrives as
	// its own OpCreate.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// removes reports whether the operation takes the file away.
func (op Operation) removes() bool {
	return op == OpDelete || op == OpRename
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path string

	Operation Operation

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher reports batches of message file changes under a root.
type Watcher interface {
	// Start begins watching root recursively and returns once the watches
	// are in place. Watching ends when Stop is called or ctx is done.
	Start(ctx context.Context, root string) error

	// Stop stops the watcher and releases resources. Safe to call multiple times.
	Stop() error

	// Events returns debounced batches. The channel is closed on Stop.
	Events() <-chan []FileEvent

	// Errors returns non-fatal errors. The channel is closed on Stop.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool

	// Filter decides which files are reported. Default: IsMessageFile.
	Filter func(path string) bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// skipDir reports directories that never hold deliverable messages.
func skipDir(name string) bool {
	return name == "tmp" || name == ".git"
}

// inSkippedDir reports whether any directory between root and path is skipped.
func inSkippedDir(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for dir := rel; dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if skipDir(filepath.Base(dir)) {
			return true
		}
	}
	return false
}
