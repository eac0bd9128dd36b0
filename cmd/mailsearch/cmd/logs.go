package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show mailsearch logs",
		Long: `Show the last lines of the mailsearch log, including rotated files.

The serve command logs only to this file, so this is where MCP sessions,
quota cooldowns and skipped embedding batches show up.

Examples:
  mailsearch logs                      # last 50 entries
  mailsearch logs -f                   # follow new entries
  mailsearch logs --level warn         # warnings and errors
  mailsearch logs --filter quota       # entries mentioning quota`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regex")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file (default: logging.file_path or ~/.mailsearch/logs/mailsearch.log)")

	return cmd
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	path := opts.logFile
	if path == "" {
		if cfg, err := loadConfig(); err == nil && cfg.Logging.FilePath != "" {
			path = cfg.Logging.FilePath
		} else {
			path = logging.DefaultLogPath()
		}
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, stdout)

	files := logging.LogFiles(path)
	if len(files) == 0 {
		return fmt.Errorf("no log file at %s", path)
	}
	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	entries, err := viewer.Tail(files, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	return followLogs(ctx, viewer, path, stderr)
}

func followLogs(ctx context.Context, viewer *logging.Viewer, path string, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry := <-entries:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}
