// Package cmd provides the CLI commands for mailsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/config"
	"github.com/Aman-CERP/mailsearch/internal/logging"
	"github.com/Aman-CERP/mailsearch/internal/profiling"
	"github.com/Aman-CERP/mailsearch/pkg/version"
)

// Global flags shared by every subcommand.
var (
	debugMode      bool
	configDir      string
	dataDirFlag    string
	ownerFlag      string
	loggingCleanup func()
)

// Profiling flags.
var (
	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the mailsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailsearch",
		Short: "Lexical and semantic search over a Maildir",
		Long: `mailsearch indexes the messages in a Maildir and answers
keyword and meaning-based queries over them.

Lexical search ranks exact, prefix and fuzzy subject/sender matches.
Semantic search ranks by embedding similarity when an embedding
provider is configured and the mailbox has been embedded.

Run 'mailsearch index ~/Maildir' once, then 'mailsearch search <query>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("mailsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.mailsearch/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding .mailsearch.yaml and .env (default: current directory)")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Mailbox owner id (default: $USER)")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts requested profiles and routes CLI logs to
// the rotating log file. The serve command installs its own file-only logger.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profileSession = s
	}

	if cmd.Name() == "serve" {
		return nil
	}

	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("cli_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Short()))
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration from --config-dir (or the working
// directory) and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		abs, err := filepath.Abs(dataDirFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --data-dir: %w", err)
		}
		cfg.Paths.DataDir = abs
	}
	return cfg, nil
}

// ownerID returns --owner, $MAILSEARCH_OWNER or the login name.
func ownerID() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	if v := os.Getenv("MAILSEARCH_OWNER"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "default"
}
