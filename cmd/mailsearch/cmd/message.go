package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/output"
)

func newGetCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an indexed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, id string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	doc, err := a.store.GetDocument(ctx, ownerID(), id)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(doc)
	}

	subject := doc.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	out.Header(subject)
	out.KeyValue("ID", doc.ID)
	out.KeyValue("From", fmt.Sprintf("%s <%s>", doc.SenderName, doc.SenderEmail))
	out.KeyValue("Received", doc.ReceivedAt.Local().Format(time.RFC1123))
	out.KeyValue("Status", doc.Status)
	out.KeyValue("Unread", doc.Unread)
	out.Newline()
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), doc.BodyText)
	return nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove messages and their embeddings from the index",
		Long: `Remove messages from the lexical index, drop their embeddings and
cancel any pending embedding work for them. Unknown ids are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), cmd, args)
		},
	}
}

func runRemove(ctx context.Context, cmd *cobra.Command, ids []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	owner := ownerID()
	for _, id := range ids {
		a.coordinator.RemoveDocument(ctx, owner, id)
		slog.Info("message_removed", slog.String("owner_id", owner), slog.String("id", id))
	}
	output.New(cmd.OutOrStdout()).Successf("Removed %d messages", len(ids))
	return nil
}

func newReindexCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "reindex <id>...",
		Short: "Re-read messages from the Maildir and re-embed them",
		Long: `Fetch each message from the Maildir again, overwrite its index
entry and replace its embedding.

Example:
  mailsearch reindex --maildir ~/Maildir 1700000000.M1P1.host`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd, root, args)
		},
	}

	cmd.Flags().StringVar(&root, "maildir", "", "Maildir to read from (default from config)")

	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command, root string, ids []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{maildir: root})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.requireMaildir(); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	owner := ownerID()
	var failed int
	for _, id := range ids {
		if err := a.coordinator.Reindex(ctx, owner, id); err != nil {
			failed++
			out.Errorf("%s: %v", id, err)
			continue
		}
	}
	if err := a.coordinator.Flush(ctx); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d messages could not be reindexed", failed, len(ids))
	}
	out.Successf("Reindexed %d messages", len(ids))
	return nil
}
