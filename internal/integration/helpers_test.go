package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/index"
	"github.com/Aman-CERP/mailsearch/internal/mailsource"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/store"
)

const owner = "42"

const canonicalDims = 64

func message(id, from, subject, date, body string) string {
	return fmt.Sprintf("Message-ID: <%s>\r\nFrom: %s\r\nSubject: %s\r\nDate: %s\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", id, from, subject, date, body)
}

var (
	invoiceMail = message("m1@example.com", "Billing <billing@x.com>", "Invoice #100",
		"Sun, 01 Mar 2026 09:00:00 +0000", "Please pay the attached invoice by Friday.")
	lunchMail = message("m2@example.com", "Team <team@x.com>", "Team Lunch",
		"Mon, 02 Mar 2026 12:00:00 +0000", "Pizza on Friday at noon.")
	reportMail = message("m3@example.com", "Bob <bob@partner.example>", "Quarterly report",
		"Tue, 03 Mar 2026 08:30:00 +0000", "Revenue grew this quarter while costs stayed flat.")
)

// mailbox is a Maildir wired to a SQLite store, a coordinator and a search
// service the way the CLI wires them.
type mailbox struct {
	root        string
	maildir     *mailsource.Maildir
	store       *store.SQLiteStore
	coordinator *index.Coordinator
	search      *search.Service
}

func newMailbox(t *testing.T, provider embed.Provider) *mailbox {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"cur", "new", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "search.db"), store.SQLiteOptions{})
	require.NoError(t, err)

	md := mailsource.NewMaildir(root)
	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		Lexical:             st,
		Vectors:             st,
		Provider:            provider,
		Source:              md,
		CanonicalDimensions: canonicalDims,
		Debounce:            20 * time.Millisecond,
		PoolSize:            2,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = coord.Close()
		_ = st.Close()
	})

	return &mailbox{
		root:        root,
		maildir:     md,
		store:       st,
		coordinator: coord,
		search: search.NewService(search.Config{
			Lexical:             st,
			Vectors:             st,
			Provider:            provider,
			CanonicalDimensions: canonicalDims,
		}),
	}
}

func (m *mailbox) deliver(t *testing.T, sub, name, content string) string {
	t.Helper()
	path := filepath.Join(m.root, sub, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// indexAll walks the maildir and waits for embeddings.
func (m *mailbox) indexAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.maildir.Walk(ctx, func(_ string, raw *normalize.RawMessage) error {
		m.coordinator.IndexMessage(ctx, owner, raw)
		return nil
	}, nil))
	require.NoError(t, m.coordinator.Flush(ctx))
}

func (m *mailbox) counts(t *testing.T) (docs, embeddings int) {
	t.Helper()
	ctx := context.Background()
	docs, err := m.store.CountDocuments(ctx, owner)
	require.NoError(t, err)
	embeddings, err = m.store.CountEmbeddings(ctx, owner)
	require.NoError(t, err)
	return docs, embeddings
}

func ids(res *search.Results) []string {
	out := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, item.ID)
	}
	return out
}
