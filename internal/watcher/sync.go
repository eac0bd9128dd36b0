package watcher

import (
	"context"
	"log/slog"
	"sync"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

// Indexer is the part of the indexing coordinator a Syncer drives.
type Indexer interface {
	IndexMessage(ctx context.Context, ownerID string, raw *normalize.RawMessage)
	RemoveDocument(ctx context.Context, ownerID, id string)
}

// MessageReader parses message files and remembers which id came from
// which path.
type MessageReader interface {
	ReadFile(path string) (*normalize.RawMessage, error)
	IDForPath(path string) (string, bool)
	Forget(id string)
}

// SyncStats counts what a Syncer has applied.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
}

// Syncer applies watcher batches to the index for one owner.
type Syncer struct {
	reader  MessageReader
	indexer Indexer
	ownerID string
	logger  *slog.Logger

	mu    sync.Mutex
	stats SyncStats
}

// NewSyncer creates a syncer.
func NewSyncer(reader MessageReader, indexer Indexer, ownerID string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{reader: reader, indexer: indexer, ownerID: ownerID, logger: logger}
}

// Run applies batches from w until its event channel closes or ctx is done.
func (s *Syncer) Run(ctx context.Context, w Watcher) {
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			s.Apply(ctx, batch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Apply handles one batch. New files are read before removals are applied:
// a flag change renames the file, and once the new name has been read the
// old name no longer maps to the message, so it is not removed and keeps
// its embedding.
func (s *Syncer) Apply(ctx context.Context, batch []FileEvent) {
	for _, ev := range batch {
		if !ev.Operation.removes() {
			s.index(ctx, ev.Path)
		}
	}
	for _, ev := range batch {
		if ev.Operation.removes() {
			s.remove(ctx, ev.Path)
		}
	}
	s.logger.Debug("watch_batch_applied",
		slog.String("owner_id", s.ownerID),
		slog.Int("events", len(batch)))
}

func (s *Syncer) remove(ctx context.Context, path string) {
	id, ok := s.reader.IDForPath(path)
	if !ok {
		// Unknown path, or already read under a new name.
		return
	}
	s.reader.Forget(id)
	s.indexer.RemoveDocument(ctx, s.ownerID, id)
	s.count(func(st *SyncStats) { st.Removed++ })
}

func (s *Syncer) index(ctx context.Context, path string) {
	raw, err := s.reader.ReadFile(path)
	if err != nil {
		if mserrors.GetCode(err) == mserrors.ErrCodeFileNotFound {
			// Renamed again before we got to it.
			return
		}
		s.count(func(st *SyncStats) { st.Failed++ })
		s.logger.Warn("watch_message_unreadable",
			slog.String("path", path),
			slog.String("code", mserrors.GetCode(err)),
			slog.String("error", err.Error()))
		return
	}
	s.indexer.IndexMessage(ctx, s.ownerID, raw)
	s.count(func(st *SyncStats) { st.Indexed++ })
}

func (s *Syncer) count(f func(*SyncStats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Stats returns counts of applied changes.
func (s *Syncer) Stats() SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
