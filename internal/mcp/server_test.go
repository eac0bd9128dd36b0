package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/store"
	"github.com/Aman-CERP/mailsearch/internal/telemetry"
)

func newTestServer(t *testing.T, provider embed.Provider) (*Server, *store.SQLiteStore) {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "mcp.db"), store.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.UpsertDocuments(context.Background(), []*store.Document{
		{OwnerID: "42", ID: "A", Subject: "Invoice #100", SenderEmail: "billing@x.com",
			BodyText: "Please pay the invoice.", ReceivedAt: received, Status: "inbox", Unread: true},
		{OwnerID: "42", ID: "B", Subject: "Team Lunch", SenderEmail: "hr@x.com",
			BodyText: "Pizza on Friday.", ReceivedAt: received, Status: "inbox"},
	}))

	if provider == nil {
		provider = embed.Disabled()
	}
	svc := search.NewService(search.Config{
		Lexical:             s,
		Vectors:             s,
		Provider:            provider,
		CanonicalDimensions: 8,
	})
	srv, err := NewServer(Options{Search: svc, Store: s, Provider: provider, OwnerID: "42"})
	require.NoError(t, err)
	return srv, s
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)

	_, err = NewServer(Options{Search: search.NewService(search.Config{})})
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	names := make([]string, 0, 3)
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{"search_mail", "get_message", "index_status"}, names)
}

func TestServer_SearchMail_DefaultOwner(t *testing.T) {
	// Given: a server whose default owner is 42
	srv, _ := newTestServer(t, nil)

	// When: searching without naming an owner
	result, err := srv.CallTool(context.Background(), "search_mail", map[string]any{"query": "invoice"})

	// Then: owner 42's invoice is the only hit
	require.NoError(t, err)
	out, ok := result.(*SearchMailOutput)
	require.True(t, ok)
	assert.Equal(t, "lexical", out.Mode)
	assert.Equal(t, 1, out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "A", out.Items[0].ID)
	assert.Equal(t, 3.0, out.Items[0].Score)
}

func TestServer_SearchMail_FiltersAndOtherOwner(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	unread, err := srv.CallTool(ctx, "search_mail", map[string]any{"query": "", "unread_only": true})
	require.NoError(t, err)
	other, err := srv.CallTool(ctx, "search_mail", map[string]any{"query": "invoice", "owner_id": "7"})
	require.NoError(t, err)

	assert.Equal(t, 1, unread.(*SearchMailOutput).Total)
	assert.Equal(t, 0, other.(*SearchMailOutput).Total)
	assert.NotNil(t, other.(*SearchMailOutput).Items)
}

func TestServer_SearchMail_AutoWithoutProviderIsLexical(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	result, err := srv.CallTool(context.Background(), "search_mail", map[string]any{"query": "lunch", "mode": "auto"})

	require.NoError(t, err)
	assert.Equal(t, "lexical", result.(*SearchMailOutput).Mode)
	assert.Equal(t, 1, result.(*SearchMailOutput).Total)
}

func TestServer_SearchMail_RejectsNegativePaging(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, err := srv.CallTool(context.Background(), "search_mail", map[string]any{"query": "x", "page": float64(-1)})

	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestServer_GetMessage(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	found, err := srv.CallTool(ctx, "get_message", map[string]any{"id": "B"})
	require.NoError(t, err)
	assert.Equal(t, "Pizza on Friday.", found.(*MessageOutput).Body)

	_, err = srv.CallTool(ctx, "get_message", map[string]any{"id": "missing"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, MapError(err).Code)

	_, err = srv.CallTool(ctx, "get_message", map[string]any{})
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestServer_IndexStatus(t *testing.T) {
	// Given: two documents and one embedding for owner 42
	srv, s := newTestServer(t, nil)
	ctx := context.Background()
	v := make([]float32, 8)
	v[0] = 1
	require.NoError(t, s.UpsertEmbeddings(ctx, []*store.EmbeddingRecord{
		{OwnerID: "42", DocumentID: "A", Vector: v, Model: "test", UpdatedAt: received},
	}))

	// When: asking for index status
	result, err := srv.CallTool(ctx, "index_status", nil)

	// Then: counts and provider state are reported
	require.NoError(t, err)
	out := result.(*IndexStatusOutput)
	assert.Equal(t, "42", out.OwnerID)
	assert.Equal(t, "sqlite", out.Backend)
	assert.Equal(t, 2, out.Documents)
	assert.Equal(t, 1, out.Embeddings)
	assert.False(t, out.Provider.Available)
	assert.Nil(t, out.Provider.Quota)
	assert.Nil(t, out.Queries)
	assert.Nil(t, out.Scan)
}

func TestServer_IndexStatus_ReportsQueryMetrics(t *testing.T) {
	// Given: a server whose search service records queries
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "metrics.db"), store.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	svc := search.NewService(search.Config{
		Lexical: s,
		Vectors: s,
		Metrics: telemetry.NewQueryMetrics(telemetry.DefaultConfig()),
	})
	srv, err := NewServer(Options{Search: svc, Store: s, Provider: embed.Disabled(), OwnerID: "42"})
	require.NoError(t, err)
	ctx := context.Background()

	// When: a search is served and status is requested
	_, err = srv.CallTool(ctx, "search_mail", map[string]any{"query": "invoice"})
	require.NoError(t, err)
	result, err := srv.CallTool(ctx, "index_status", nil)

	// Then: the query shows up in the metrics
	require.NoError(t, err)
	out := result.(*IndexStatusOutput)
	require.NotNil(t, out.Queries)
	assert.Equal(t, int64(1), out.Queries.Total)
	assert.Equal(t, int64(1), out.Queries.ZeroResults)
}

func TestServer_IndexStatus_ReportsScanProgress(t *testing.T) {
	// Given: a server with a scan halfway through
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "scan.db"), store.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	progress := async.NewProgress()
	progress.SetStage(async.StageIndexing, 10)
	for i := 0; i < 5; i++ {
		progress.AddIndexed()
	}
	svc := search.NewService(search.Config{Lexical: s, Vectors: s})
	srv, err := NewServer(Options{Search: svc, Store: s, Provider: embed.Disabled(), Scan: progress, OwnerID: "42"})
	require.NoError(t, err)

	// When: asking for index status
	result, err := srv.CallTool(context.Background(), "index_status", nil)

	// Then: the scan is reported
	require.NoError(t, err)
	out := result.(*IndexStatusOutput)
	require.NotNil(t, out.Scan)
	assert.Equal(t, "scanning", out.Scan.Status)
	assert.Equal(t, "indexing", out.Scan.Stage)
	assert.Equal(t, 5, out.Scan.MessagesIndexed)
	assert.InDelta(t, 50.0, out.Scan.ProgressPct, 0.001)
}

func TestServer_IndexStatus_ReportsQuotaCooldown(t *testing.T) {
	// Given: a remote provider whose governor is cooling down
	gov := embed.NewQuotaGovernor("remote")
	remote := embed.NewRemoteEmbedder(embed.RemoteConfig{
		Endpoint:   "http://127.0.0.1:1",
		APIKey:     "k",
		Model:      "m",
		Dimensions: 8,
		Governor:   gov,
	})
	gov.RecordQuotaFailure()
	srv, _ := newTestServer(t, remote)

	// When: asking for index status
	result, err := srv.CallTool(context.Background(), "index_status", map[string]any{"owner_id": "42"})

	// Then: the cooldown is visible
	require.NoError(t, err)
	q := result.(*IndexStatusOutput).Provider.Quota
	require.NotNil(t, q)
	assert.Equal(t, embed.QuotaCooldown.String(), q.State)
	require.NotNil(t, q.CooldownUntil)
	assert.True(t, q.CooldownUntil.After(time.Now()))
}

func TestServer_CallTool_Unknown(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, err := srv.CallTool(context.Background(), "search", nil)

	require.Error(t, err)
	assert.Equal(t, ErrCodeMethodNotFound, MapError(err).Code)
}

func TestServer_InMemoryTransport(t *testing.T) {
	// Given: a client connected over an in-memory transport
	srv, _ := newTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: calling search_mail through the protocol
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_mail",
		Arguments: map[string]any{"query": "invoice"},
	})

	// Then: both markdown and structured content come back
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Invoice #100")

	structured, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), structured["total"])
}
