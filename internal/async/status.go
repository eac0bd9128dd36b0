// Package async runs the initial Maildir scan in the background and tracks
// its progress so callers can serve searches while it runs.
package async

import (
	"sync"
	"time"
)

// ScanStatus is the overall state of a scan.
type ScanStatus string

const (
	// StatusScanning indicates the scan is in progress.
	StatusScanning ScanStatus = "scanning"
	// StatusReady indicates every message was read and embeddings were flushed.
	StatusReady ScanStatus = "ready"
	// StatusError indicates the scan stopped early.
	StatusError ScanStatus = "error"
)

// ScanStage is the current phase of a scan.
type ScanStage string

const (
	// StageCounting walks the Maildir to size the scan.
	StageCounting ScanStage = "counting"
	// StageIndexing parses messages into the lexical index.
	StageIndexing ScanStage = "indexing"
	// StageEmbedding waits for pending embedding batches.
	StageEmbedding ScanStage = "embedding"
)

// ProgressSnapshot is an immutable copy of scan progress.
type ProgressSnapshot struct {
	Status             string  `json:"status"`
	Stage              string  `json:"stage"`
	MessagesTotal      int     `json:"messages_total"`
	MessagesIndexed    int     `json:"messages_indexed"`
	MessagesUnreadable int     `json:"messages_unreadable"`
	ProgressPct        float64 `json:"progress_pct"`
	ElapsedSeconds     int     `json:"elapsed_seconds"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// Progress is a thread-safe scan progress tracker.
type Progress struct {
	mu sync.RWMutex

	status     ScanStatus
	stage      ScanStage
	total      int
	indexed    int
	unreadable int
	startTime  time.Time
	errMessage string
}

// NewProgress creates a tracker in the counting stage.
func NewProgress() *Progress {
	return &Progress{
		status:    StatusScanning,
		stage:     StageCounting,
		startTime: time.Now(),
	}
}

// SetStage moves to stage. A positive total replaces the message total.
func (p *Progress) SetStage(stage ScanStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	if total > 0 {
		p.total = total
	}
}

// AddIndexed counts one message handed to the index.
func (p *Progress) AddIndexed() {
	p.mu.Lock()
	p.indexed++
	p.mu.Unlock()
}

// AddUnreadable counts one message that could not be parsed.
func (p *Progress) AddUnreadable() {
	p.mu.Lock()
	p.unreadable++
	p.mu.Unlock()
}

// SetError marks the scan failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errMessage = message
}

// SetReady marks the scan complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsScanning reports whether the scan is still running.
func (p *Progress) IsScanning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusScanning
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.indexed+p.unreadable) / float64(p.total) * 100.0
		if pct > 100 {
			pct = 100
		}
	}

	return ProgressSnapshot{
		Status:             string(p.status),
		Stage:              string(p.stage),
		MessagesTotal:      p.total,
		MessagesIndexed:    p.indexed,
		MessagesUnreadable: p.unreadable,
		ProgressPct:        pct,
		ElapsedSeconds:     int(time.Since(p.startTime).Seconds()),
		ErrorMessage:       p.errMessage,
	}
}
