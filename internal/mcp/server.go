package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/index"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/store"
	"github.com/Aman-CERP/mailsearch/pkg/version"
)

const serverName = "mailsearch"

// Options wires a Server.
type Options struct {
	Search   *search.Service
	Store    store.Store
	Provider embed.Provider
	// Coordinator is optional; without it pending counts are zero.
	Coordinator *index.Coordinator
	// Scan reports a background Maildir scan. Optional.
	Scan *async.Progress
	// OwnerID is used when a tool call does not name an owner.
	OwnerID string
	Logger  *slog.Logger
}

// Server is the MCP server. It lets AI clients search a mailbox.
type Server struct {
	mcp    *mcp.Server
	opts   Options
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_mail",
		Description: "Search the mailbox. Lexical mode matches words and tolerates typos; semantic mode finds messages by meaning; auto picks semantic when embeddings are ready.",
	},
	{
		Name:        "get_message",
		Description: "Fetch one message by the id returned from search_mail, including its plain-text body.",
	},
	{
		Name:        "index_status",
		Description: "Report indexed message and embedding counts and whether the embedding provider is available or cooling down.",
	},
}

// NewServer creates a new MCP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Search == nil {
		return nil, errors.New("search service is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Provider == nil {
		opts.Provider = embed.Disabled()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{opts: opts, logger: opts.Logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: serverName, Version: version.Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchMailHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpGetMessageHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name. It is the transport-free entry point
// used by the CLI and tests.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_mail":
		in := SearchMailInput{
			OwnerID:    stringArg(args, "owner_id"),
			Query:      stringArg(args, "query"),
			Mode:       stringArg(args, "mode"),
			Page:       intArg(args, "page"),
			PageSize:   intArg(args, "page_size"),
			Status:     stringArg(args, "status"),
			Sender:     stringArg(args, "sender"),
			UnreadOnly: boolArg(args, "unread_only"),
			Sort:       stringArg(args, "sort"),
		}
		return s.searchMail(ctx, in)
	case "get_message":
		return s.getMessage(ctx, GetMessageInput{
			OwnerID: stringArg(args, "owner_id"),
			ID:      stringArg(args, "id"),
		})
	case "index_status":
		return s.indexStatus(ctx, IndexStatusInput{OwnerID: stringArg(args, "owner_id")})
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) owner(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.opts.OwnerID
}

func (s *Server) searchMail(ctx context.Context, in SearchMailInput) (*SearchMailOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	owner := s.owner(in.OwnerID)
	if owner == "" {
		return nil, NewInvalidParamsError("owner_id is required")
	}
	if in.PageSize < 0 || in.Page < 0 {
		return nil, NewInvalidParamsError("page and page_size must not be negative")
	}

	mode, results := s.opts.Search.Search(ctx, search.ParseMode(in.Mode), search.Request{
		OwnerID:  owner,
		Query:    in.Query,
		Page:     in.Page,
		PageSize: in.PageSize,
		Filters: store.Filters{
			Status:     strings.ToLower(strings.TrimSpace(in.Status)),
			Sender:     strings.TrimSpace(in.Sender),
			UnreadOnly: in.UnreadOnly,
		},
		Sort: store.ParseSortMode(in.Sort),
	})

	s.logger.Info("search_mail_completed",
		slog.String("request_id", requestID),
		slog.String("owner_id", owner),
		slog.String("mode", string(mode)),
		slog.Int("total", results.Total),
		slog.Duration("duration", time.Since(start)))

	return &SearchMailOutput{Mode: string(mode), Total: results.Total, Items: results.Items}, nil
}

func (s *Server) getMessage(ctx context.Context, in GetMessageInput) (*MessageOutput, error) {
	owner := s.owner(in.OwnerID)
	if owner == "" || strings.TrimSpace(in.ID) == "" {
		return nil, NewInvalidParamsError("owner_id and id are required")
	}
	doc, err := s.opts.Store.GetDocument(ctx, owner, in.ID)
	if err != nil {
		return nil, MapError(err)
	}
	return &MessageOutput{
		ID:          doc.ID,
		Subject:     doc.Subject,
		SenderName:  doc.SenderName,
		SenderEmail: doc.SenderEmail,
		ReceivedAt:  doc.ReceivedAt,
		Status:      doc.Status,
		Unread:      doc.Unread,
		Body:        doc.BodyText,
	}, nil
}

func (s *Server) indexStatus(ctx context.Context, in IndexStatusInput) (*IndexStatusOutput, error) {
	owner := s.owner(in.OwnerID)
	if owner == "" {
		return nil, NewInvalidParamsError("owner_id is required")
	}

	out := &IndexStatusOutput{
		OwnerID: owner,
		Backend: s.opts.Store.Backend(),
		Provider: EmbeddingInfo{
			Name:       s.opts.Provider.Name(),
			Available:  s.opts.Provider.Available(ctx),
			Dimensions: s.opts.Provider.Dimensions(),
		},
	}

	var err error
	if out.Documents, err = s.opts.Store.CountDocuments(ctx, owner); err != nil {
		return nil, MapError(err)
	}
	if out.Embeddings, err = s.opts.Store.CountEmbeddings(ctx, owner); err != nil {
		return nil, MapError(err)
	}
	if s.opts.Coordinator != nil {
		out.Pending = s.opts.Coordinator.Pending(owner)
	}
	if gov, ok := embed.QuotaOf(s.opts.Provider); ok {
		snap := gov.Snapshot()
		q := &QuotaInfo{State: snap.State.String(), Cooldown: snap.CooldownDuration.String()}
		if snap.State == embed.QuotaCooldown {
			until := snap.CooldownUntil
			q.CooldownUntil = &until
		}
		out.Provider.Quota = q
	}
	if s.opts.Scan != nil {
		snap := s.opts.Scan.Snapshot()
		out.Scan = &snap
	}
	if m := s.opts.Search.Metrics(); m != nil {
		snap := m.Snapshot(10)
		out.Queries = &snap
	}
	return out, nil
}

func (s *Server) mcpSearchMailHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchMailInput) (
	*mcp.CallToolResult,
	*SearchMailOutput,
	error,
) {
	out, err := s.searchMail(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(input.Query, out)}},
	}, out, nil
}

func (s *Server) mcpGetMessageHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetMessageInput) (
	*mcp.CallToolResult,
	*MessageOutput,
	error,
) {
	out, err := s.getMessage(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatMessage(out)}},
	}, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
