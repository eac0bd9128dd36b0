package mailsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

const plainMessage = "From: Billing Team <billing@x.com>\r\n" +
	"To: me@x.com\r\n" +
	"Subject: Invoice #100\r\n" +
	"Date: Sun, 01 Mar 2026 10:00:00 +0000\r\n" +
	"Message-ID: <inv-100@x.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Your invoice is attached.\r\n"

const alternativeMessage = "From: hr@x.com\r\n" +
	"Subject: =?UTF-8?Q?Team_Lunch_=E2=9C=93?=\r\n" +
	"Date: Mon, 02 Mar 2026 12:30:00 +0100\r\n" +
	"Message-ID: <lunch@x.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=b1\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Lunch at <b>noon</b></p>\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Lunch at noon\r\n" +
	"--b1--\r\n"

const htmlOnlyMessage = "From: news@x.com\r\n" +
	"Subject: Weekly digest\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><h1>Digest</h1><p>Items</p></body></html>\r\n"

func writeMessage(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse_PlainMessage(t *testing.T) {
	raw, err := Parse(strings.NewReader(plainMessage), "fallback")

	require.NoError(t, err)
	assert.Equal(t, "inv-100@x.com", raw.ID)
	assert.Equal(t, "Invoice #100", raw.Subject)
	assert.Equal(t, "Billing Team", raw.SenderName)
	assert.Equal(t, "billing@x.com", raw.SenderEmail)
	assert.True(t, raw.ReceivedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Contains(t, raw.Body, "Your invoice is attached.")
	assert.False(t, raw.HTML)
}

func TestParse_PrefersPlainTextAlternative(t *testing.T) {
	raw, err := Parse(strings.NewReader(alternativeMessage), "fallback")

	require.NoError(t, err)
	assert.Equal(t, "lunch@x.com", raw.ID)
	assert.Equal(t, "Team Lunch ✓", raw.Subject)
	assert.Equal(t, "hr@x.com", raw.SenderEmail)
	assert.Contains(t, raw.Body, "Lunch at noon")
	assert.False(t, raw.HTML)
}

func TestParse_HTMLOnlyUsesFallbackID(t *testing.T) {
	raw, err := Parse(strings.NewReader(htmlOnlyMessage), "digest-1")

	require.NoError(t, err)
	assert.Equal(t, "digest-1", raw.ID)
	assert.True(t, raw.HTML)

	doc := normalize.Normalize("42", raw)
	assert.Equal(t, "Digest Items", doc.BodyText)
}

func TestParse_NoIDAtAll(t *testing.T) {
	_, err := Parse(strings.NewReader(htmlOnlyMessage), "")

	assert.Equal(t, mserrors.ErrCodeMessageMalformed, mserrors.GetCode(err))
}

func TestMaildir_WalkAppliesFolderAndFlags(t *testing.T) {
	// Given: an inbox with a seen and an unseen message, a trashed one and an archive folder
	root := t.TempDir()
	writeMessage(t, filepath.Join(root, "cur", "1.host:2,S"), plainMessage)
	writeMessage(t, filepath.Join(root, "new", "2.host"), alternativeMessage)
	writeMessage(t, filepath.Join(root, ".Archive", "cur", "3.host:2,ST"), htmlOnlyMessage)
	writeMessage(t, filepath.Join(root, ".Archive.2024", "cur", "4.host:2,"), strings.Replace(htmlOnlyMessage, "Weekly", "Old", 1))
	writeMessage(t, filepath.Join(root, "tmp", "5.host"), plainMessage)
	writeMessage(t, filepath.Join(root, "notes.txt"), "not mail")

	// When: walking the maildir
	got := map[string]*normalize.RawMessage{}
	m := NewMaildir(root)
	err := m.Walk(context.Background(), func(_ string, raw *normalize.RawMessage) error {
		got[raw.ID] = raw
		return nil
	}, func(path string, err error) { t.Errorf("unexpected parse error for %s: %v", path, err) })

	// Then: folders map to statuses and flags to read state
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "inbox", got["inv-100@x.com"].Status)
	assert.False(t, got["inv-100@x.com"].Unread)
	assert.Equal(t, "inbox", got["lunch@x.com"].Status)
	assert.True(t, got["lunch@x.com"].Unread)
	assert.Equal(t, "trash", got["3.host"].Status)
	assert.False(t, got["3.host"].Unread)
	assert.Equal(t, "archive", got["4.host"].Status)
	assert.True(t, got["4.host"].Unread)
}

func TestMaildir_Count(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, filepath.Join(root, "cur", "1.host:2,S"), plainMessage)
	writeMessage(t, filepath.Join(root, ".Archive", "new", "2.host"), plainMessage)
	writeMessage(t, filepath.Join(root, "tmp", "3.host"), plainMessage)
	writeMessage(t, filepath.Join(root, "notes.txt"), "not mail")

	n, err := NewMaildir(root).Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMaildir_GetDocument(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, filepath.Join(root, "mail.eml"), plainMessage)
	m := NewMaildir(root)

	// When: the id was never seen, the root is scanned
	raw, err := m.GetDocument(context.Background(), "42", "inv-100@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Invoice #100", raw.Subject)
	assert.False(t, raw.Unread)

	id, ok := m.IDForPath(filepath.Join(root, "mail.eml"))
	assert.True(t, ok)
	assert.Equal(t, "inv-100@x.com", id)

	// And: unknown ids report not found
	_, err = m.GetDocument(context.Background(), "42", "missing@x.com")
	assert.True(t, mserrors.Is(err, mserrors.ErrDocumentNotFound))
}

func TestIsMessageFile(t *testing.T) {
	assert.True(t, IsMessageFile("/m/cur/1.host:2,S"))
	assert.True(t, IsMessageFile("/m/new/1.host"))
	assert.True(t, IsMessageFile("/m/export/Message.EML"))
	assert.False(t, IsMessageFile("/m/tmp/1.host"))
	assert.False(t, IsMessageFile("/m/cur/.hidden"))
	assert.False(t, IsMessageFile("/m/notes.txt"))
}

func TestFileID(t *testing.T) {
	assert.Equal(t, "1700000000.M1P2.host", fileID("/m/cur/1700000000.M1P2.host:2,S"))
	assert.Equal(t, "export", fileID("/m/export.eml"))
}
