package async

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/mailsearch/internal/mailsource"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

// Indexer accepts parsed messages and waits for their embeddings.
type Indexer interface {
	IndexMessage(ctx context.Context, ownerID string, raw *normalize.RawMessage)
	Flush(ctx context.Context) error
}

// ScanConfig configures a Maildir scan.
type ScanConfig struct {
	Maildir *mailsource.Maildir
	Indexer Indexer
	OwnerID string

	// OnProgress is called after every message and stage change. Optional.
	OnProgress func(ProgressSnapshot)

	Logger *slog.Logger
}

// MaildirScan returns a ScanFunc that counts the Maildir, indexes every
// message for the owner and waits for embeddings. Unreadable messages are
// counted and logged; they do not stop the scan.
func MaildirScan(cfg ScanConfig) ScanFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := func(p *Progress) {
		if cfg.OnProgress != nil {
			cfg.OnProgress(p.Snapshot())
		}
	}

	return func(ctx context.Context, progress *Progress) error {
		root := cfg.Maildir.Root()
		total, err := cfg.Maildir.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", root, err)
		}
		progress.SetStage(StageIndexing, total)
		report(progress)

		err = cfg.Maildir.Walk(ctx, func(_ string, raw *normalize.RawMessage) error {
			cfg.Indexer.IndexMessage(ctx, cfg.OwnerID, raw)
			progress.AddIndexed()
			report(progress)
			return nil
		}, func(path string, walkErr error) {
			progress.AddUnreadable()
			report(progress)
			logger.Warn("index_message_unreadable",
				slog.String("path", path),
				slog.String("error", walkErr.Error()))
		})
		if err != nil {
			return fmt.Errorf("indexing interrupted: %w", err)
		}

		progress.SetStage(StageEmbedding, 0)
		report(progress)
		if err := cfg.Indexer.Flush(ctx); err != nil {
			return err
		}

		snap := progress.Snapshot()
		logger.Debug("scan_completed",
			slog.String("owner_id", cfg.OwnerID),
			slog.String("maildir", root),
			slog.Int("indexed", snap.MessagesIndexed),
			slog.Int("unreadable", snap.MessagesUnreadable))
		return nil
	}
}
