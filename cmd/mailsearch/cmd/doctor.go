package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/output"
	"github.com/Aman-CERP/mailsearch/internal/preflight"
	"github.com/Aman-CERP/mailsearch/internal/store"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor [maildir]",
		Short: "Check that mailsearch can run here",
		Long: `Run system checks: data directory permissions and free space,
file descriptor limit, Maildir layout, store connectivity and
embedding provider availability.

Exits non-zero when a required check fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runDoctor(cmd.Context(), cmd, root, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, root string, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if root == "" {
		root = cfg.Paths.Maildir
	}

	provider, err := embed.NewProvider(cfg.Embeddings)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	checker := preflight.New(
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(verbose),
	)
	results := checker.RunAll(ctx, preflight.Target{
		DataDir: cfg.Paths.DataDir,
		Maildir: root,
		OpenStore: func(ctx context.Context) error {
			st, err := store.Open(ctx, store.Options{
				Backend:     cfg.Store.Backend,
				SQLitePath:  cfg.DatabasePath(),
				SQLite:      store.SQLiteOptions{CacheMB: cfg.Store.SQLiteCacheMB},
				PostgresDSN: cfg.Store.PostgresDSN,
			})
			if err != nil {
				return err
			}
			return st.Close()
		},
		Provider: provider,
	})

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}
