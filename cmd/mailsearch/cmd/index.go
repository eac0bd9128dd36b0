package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/output"
)

func newIndexCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "index [maildir]",
		Short: "Index every message in a Maildir",
		Long: `Parse every message under the Maildir, write it to the lexical
index and embed it with the configured provider.

Messages are written to the lexical index immediately. Embeddings are
computed in per-owner batches and the command waits for them before
exiting. Unparseable messages are reported and skipped.

Examples:
  mailsearch index ~/Maildir
  mailsearch index --owner alice ~/Mail/alice`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root, noProgress)
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, noProgress bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{maildir: root})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	md, err := a.requireMaildir()
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	owner := ownerID()
	start := time.Now()

	lastDone := -1
	scan := async.MaildirScan(async.ScanConfig{
		Maildir: md,
		Indexer: a.coordinator,
		OwnerID: owner,
		OnProgress: func(p async.ProgressSnapshot) {
			switch p.Stage {
			case string(async.StageIndexing):
				done := p.MessagesIndexed + p.MessagesUnreadable
				if lastDone < 0 {
					out.Statusf("📬", "Indexing %d messages from %s", p.MessagesTotal, md.Root())
					slog.Info("index_started",
						slog.String("owner_id", owner),
						slog.String("maildir", md.Root()),
						slog.Int("messages", p.MessagesTotal))
				}
				if !noProgress && done > 0 && done != lastDone {
					out.Progress(done, p.MessagesTotal, "messages")
				}
				lastDone = done
			case string(async.StageEmbedding):
				if !noProgress && lastDone > 0 && lastDone != p.MessagesTotal {
					out.Newline()
				}
				out.Status("🧠", "Waiting for embeddings...")
			}
		},
	})

	bg := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: cfg.Paths.DataDir}, scan)
	bg.Start(ctx)
	if err := bg.Wait(); err != nil {
		return err
	}

	progress := bg.Progress().Snapshot()
	stats := a.coordinator.Stats()
	out.Successf("Indexed %d messages in %s", progress.MessagesIndexed, time.Since(start).Round(time.Millisecond))
	out.KeyValue("Embedded", stats.Embedded)
	if stats.BatchesSkipped > 0 {
		out.Warningf("%d embedding batches skipped (provider unavailable)", stats.BatchesSkipped)
	}
	if progress.MessagesUnreadable > 0 || stats.Failed > 0 {
		out.Warningf("%d unreadable messages, %d failed embeddings", progress.MessagesUnreadable, stats.Failed)
	}

	slog.Info("index_completed",
		slog.String("owner_id", owner),
		slog.Int("indexed", progress.MessagesIndexed),
		slog.Int("unreadable", progress.MessagesUnreadable),
		slog.Int64("embedded", stats.Embedded),
		slog.Duration("duration", time.Since(start)))
	return nil
}
