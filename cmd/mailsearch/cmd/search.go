package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/output"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode       string // "lexical", "semantic", "auto"
	page       int
	pageSize   int
	status     string
	sender     string
	unreadOnly bool
	sort       string // "relevance", "received_asc", "received_desc"
	jsonOutput bool
}

// searchJSON is the --json document.
type searchJSON struct {
	Query    string        `json:"query"`
	Mode     string        `json:"mode"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
	Items    []search.Item `json:"items"`
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed mail",
		Long: `Search the owner's indexed mail.

Lexical mode ranks exact subject matches above prefix and fuzzy
matches, then sender and body hits. Semantic mode ranks by embedding
similarity and returns nothing when no provider is available or the
mailbox has no embeddings. Auto picks semantic when it can serve the
query and lexical otherwise.

Examples:
  mailsearch search invoice
  mailsearch search "quarterly report" --mode semantic
  mailsearch search invoice --status archive --sort received_desc
  mailsearch search "" --unread --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "lexical", "Search mode: lexical, semantic, auto")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "Result page (1-based)")
	cmd.Flags().IntVarP(&opts.pageSize, "page-size", "n", 0, "Results per page (default from config)")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only messages with this status (e.g. inbox, archive)")
	cmd.Flags().StringVar(&opts.sender, "sender", "", "Only messages whose sender name or address contains this")
	cmd.Flags().BoolVar(&opts.unreadOnly, "unread", false, "Only unread messages")
	cmd.Flags().StringVar(&opts.sort, "sort", "relevance", "Lexical order: relevance, received_asc, received_desc")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.page < 0 || opts.pageSize < 0 {
		return fmt.Errorf("--page and --page-size must not be negative")
	}

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
	page, pageSize := effectivePaging(opts.page, opts.pageSize, cfg.Search.DefaultPageSize, cfg.Search.MaxPageSize)

	slog.Info("search_started",
		slog.String("owner_id", owner),
		slog.String("query", query),
		slog.String("mode", opts.mode))
	start := time.Now()

	mode, results := a.search.Search(ctx, search.ParseMode(opts.mode), search.Request{
		OwnerID:  owner,
		Query:    query,
		Page:     page,
		PageSize: pageSize,
		Filters: store.Filters{
			Status:     strings.ToLower(strings.TrimSpace(opts.status)),
			Sender:     strings.TrimSpace(opts.sender),
			UnreadOnly: opts.unreadOnly,
		},
		Sort: store.ParseSortMode(opts.sort),
	})

	slog.Info("search_completed",
		slog.String("mode", string(mode)),
		slog.Int("total", results.Total),
		slog.Duration("duration", time.Since(start)))

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(searchJSON{
			Query:    query,
			Mode:     string(mode),
			Page:     page,
			PageSize: pageSize,
			Total:    results.Total,
			Items:    results.Items,
		})
	}
	out.SearchResults(query, mode, page, pageSize, results)
	return nil
}

// effectivePaging mirrors the clamping the search service applies so that
// result numbering matches the page actually returned.
func effectivePaging(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
