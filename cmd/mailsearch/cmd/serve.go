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
	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/logging"
	"github.com/Aman-CERP/mailsearch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve mail search over the Model Context Protocol",
		Long: `Start an MCP server exposing search_mail, get_message and
index_status to an AI assistant.

stdout carries JSON-RPC only; logs go to ~/.mailsearch/logs/.
With --watch the Maildir is scanned in the background and kept in sync
while serving; index_status reports scan progress.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the configured Maildir while serving")

	return cmd
}

func runServe(ctx context.Context, transport string, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if debugMode {
		logCfg.Level = "debug"
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	cleanup, err := logging.SetupServeMode(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	a, err := openApp(ctx, cfg, appOptions{exclusive: watch})
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	embed.Preload(a.provider)

	owner := ownerID()
	var scan *async.BackgroundIndexer
	if watch {
		w, syncer, err := startSync(ctx, a, cfg, owner, false)
		if err != nil {
			slog.Error("serve_watch_failed", slog.String("error", err.Error()))
			return err
		}
		defer func() { _ = w.Stop() }()
		go syncer.Run(ctx, w)

		md, _ := a.requireMaildir()
		scan = async.NewBackgroundIndexer(async.IndexerConfig{DataDir: cfg.Paths.DataDir},
			async.MaildirScan(async.ScanConfig{Maildir: md, Indexer: a.coordinator, OwnerID: owner}))
		scan.Start(ctx)
		defer scan.Stop()
	}

	srv, err := mcp.NewServer(mcp.Options{
		Search:      a.search,
		Store:       a.store,
		Provider:    a.provider,
		Coordinator: a.coordinator,
		Scan:        scanProgress(scan),
		OwnerID:     owner,
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}

	slog.Info("serve_started",
		slog.String("transport", transport),
		slog.String("owner_id", owner),
		slog.Bool("watch", watch))
	return srv.Serve(ctx, transport)
}

func scanProgress(b *async.BackgroundIndexer) *async.Progress {
	if b == nil {
		return nil
	}
	return b.Progress()
}
