package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mailsearch/internal/mailsource"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

// recordingIndexer records coordinator calls.
type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recordingIndexer) IndexMessage(_ context.Context, _ string, raw *normalize.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, raw.ID)
}

func (r *recordingIndexer) RemoveDocument(_ context.Context, _ string, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

const testMessage = "Message-ID: <m1@example.com>\r\n" +
	"From: Billing <billing@x.com>\r\n" +
	"Subject: Invoice #100\r\n" +
	"Date: Sun, 01 Mar 2026 09:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please pay.\r\n"

func writeMessage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(testMessage), 0o644))
}

func TestSyncer_IndexesNewMessage(t *testing.T) {
	// Given: a new message in a maildir
	root := t.TempDir()
	path := filepath.Join(root, "new", "1700000000.1.host")
	writeMessage(t, path)
	idx := &recordingIndexer{}
	s := NewSyncer(mailsource.NewMaildir(root), idx, "42", nil)

	// When: a create batch is applied
	s.Apply(context.Background(), []FileEvent{{Path: path, Operation: OpCreate}})

	// Then: the message is indexed
	assert.Equal(t, []string{"m1@example.com"}, idx.indexed)
	assert.Empty(t, idx.removed)
	assert.Equal(t, SyncStats{Indexed: 1}, s.Stats())
}

func TestSyncer_FlagRenameKeepsDocument(t *testing.T) {
	// Given: a message already read from new/
	root := t.TempDir()
	oldPath := filepath.Join(root, "new", "1700000000.1.host")
	writeMessage(t, oldPath)
	md := mailsource.NewMaildir(root)
	idx := &recordingIndexer{}
	s := NewSyncer(md, idx, "42", nil)
	s.Apply(context.Background(), []FileEvent{{Path: oldPath, Operation: OpCreate}})

	// When: the client marks it seen, moving it to cur/
	newPath := filepath.Join(root, "cur", "1700000000.1.host:2,S")
	require.NoError(t, os.MkdirAll(filepath.Dir(newPath), 0o755))
	require.NoError(t, os.Rename(oldPath, newPath))
	s.Apply(context.Background(), []FileEvent{
		{Path: newPath, Operation: OpCreate},
		{Path: oldPath, Operation: OpRename},
	})

	// Then: it is re-indexed and never removed
	assert.Equal(t, []string{"m1@example.com", "m1@example.com"}, idx.indexed)
	assert.Empty(t, idx.removed)
}

func TestSyncer_RemovesDeletedMessage(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "cur", "1700000000.1.host:2,S")
	writeMessage(t, path)
	md := mailsource.NewMaildir(root)
	idx := &recordingIndexer{}
	s := NewSyncer(md, idx, "42", nil)
	s.Apply(context.Background(), []FileEvent{{Path: path, Operation: OpCreate}})

	require.NoError(t, os.Remove(path))
	s.Apply(context.Background(), []FileEvent{{Path: path, Operation: OpDelete}})

	assert.Equal(t, []string{"m1@example.com"}, idx.removed)
	_, known := md.IDForPath(path)
	assert.False(t, known)
	assert.Equal(t, 1, s.Stats().Removed)
}

func TestSyncer_UnknownDeleteIsIgnored(t *testing.T) {
	idx := &recordingIndexer{}
	s := NewSyncer(mailsource.NewMaildir(t.TempDir()), idx, "42", nil)

	s.Apply(context.Background(), []FileEvent{{Path: "/nowhere/cur/x", Operation: OpDelete}})

	assert.Empty(t, idx.removed)
}

func TestSyncer_VanishedFileIsNotAFailure(t *testing.T) {
	// Given: a create event for a file that has already moved on
	idx := &recordingIndexer{}
	root := t.TempDir()
	s := NewSyncer(mailsource.NewMaildir(root), idx, "42", nil)

	// When: it is applied
	s.Apply(context.Background(), []FileEvent{
		{Path: filepath.Join(root, "cur", "vanished"), Operation: OpCreate},
	})

	// Then: nothing is indexed and nothing counts as failed
	assert.Empty(t, idx.indexed)
	assert.Equal(t, SyncStats{}, s.Stats())
}
