package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/config"
	"github.com/Aman-CERP/mailsearch/internal/output"
	"github.com/Aman-CERP/mailsearch/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	skipInitial  bool
	forcePolling bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [maildir]",
		Short: "Keep the index in sync with a Maildir",
		Long: `Index the Maildir, then follow it: delivered messages are indexed,
deleted messages are removed and flag changes update status and unread
state without re-embedding.

Uses the platform file watcher and falls back to polling when it is
unavailable. Stop with Ctrl-C; pending embeddings are flushed first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipInitial, "skip-initial", false, "Do not index existing messages before watching")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll instead of using the platform file watcher")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, root string, opts watchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{maildir: root, exclusive: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	owner := ownerID()

	if !opts.skipInitial {
		md, err := a.requireMaildir()
		if err != nil {
			return err
		}
		out.Statusf("📬", "Indexing %s", md.Root())
		bg := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: cfg.Paths.DataDir},
			async.MaildirScan(async.ScanConfig{Maildir: md, Indexer: a.coordinator, OwnerID: owner}))
		bg.Start(ctx)
		if err := bg.Wait(); err != nil {
			return fmt.Errorf("initial index interrupted: %w", err)
		}
		out.Successf("Indexed %d messages", bg.Progress().Snapshot().MessagesIndexed)
	}

	w, syncer, err := startSync(ctx, a, cfg, owner, opts.forcePolling)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %s (%s). Press Ctrl-C to stop.", w.RootPath(), w.WatcherType())
	syncer.Run(ctx, w)

	stats := syncer.Stats()
	out.Newline()
	out.Successf("Stopped: %d indexed, %d removed, %d failed", stats.Indexed, stats.Removed, stats.Failed)
	return nil
}

// startSync starts a watcher on the app's maildir and returns it with a
// syncer that applies its batches through the coordinator.
func startSync(ctx context.Context, a *app, cfg *config.Config, owner string, forcePolling bool) (*watcher.HybridWatcher, *watcher.Syncer, error) {
	md, err := a.requireMaildir()
	if err != nil {
		return nil, nil, err
	}

	opts := watcher.DefaultOptions()
	opts.DebounceWindow = config.ParseDuration(cfg.Indexing.WatchDebounce, opts.DebounceWindow)
	opts.PollInterval = config.ParseDuration(cfg.Indexing.PollInterval, opts.PollInterval)
	opts.ForcePolling = forcePolling

	w, err := watcher.NewHybridWatcher(opts, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx, md.Root()); err != nil {
		_ = w.Stop()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", md.Root(), err)
	}

	return w, watcher.NewSyncer(md, a.coordinator, owner, slog.Default()), nil
}
