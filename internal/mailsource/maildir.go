package mailsource

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

// Maildir serves messages stored under a root directory: Maildir folders
// (cur/ and new/ subdirectories, Maildir++ sub-folders) and loose .eml files.
// Every owner reads from the same root; owner scoping happens in the store.
type Maildir struct {
	root string

	mu    sync.RWMutex
	paths map[string]string // message id -> file
}

// NewMaildir returns a source rooted at root.
func NewMaildir(root string) *Maildir {
	return &Maildir{root: filepath.Clean(root), paths: make(map[string]string)}
}

// Root returns the directory being served.
func (m *Maildir) Root() string {
	return m.root
}

// IsMessageFile reports whether path looks like a message under a Maildir
// cur/ or new/ directory, or an .eml file.
func IsMessageFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.EqualFold(filepath.Ext(base), ".eml") {
		return true
	}
	switch filepath.Base(filepath.Dir(path)) {
	case "cur", "new":
		return true
	}
	return false
}

// ReadFile parses the message at path and applies folder status and flags.
func (m *Maildir) ReadFile(path string) (*normalize.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mserrors.New(mserrors.ErrCodeFileNotFound, "message file not found", err).
				WithDetail("path", path)
		}
		return nil, mserrors.Wrap(mserrors.ErrCodeInternal, err)
	}
	defer func() { _ = f.Close() }()

	raw, err := Parse(f, fileID(path))
	if err != nil {
		return nil, err
	}
	raw.Status = m.folderStatus(path)
	applyFlags(raw, path)
	if raw.ReceivedAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			raw.ReceivedAt = info.ModTime().UTC()
		}
	}

	m.mu.Lock()
	m.paths[raw.ID] = path
	m.mu.Unlock()
	return raw, nil
}

// Walk parses every message under the root and calls fn for each. Parse
// failures are passed to onError and do not stop the walk.
func (m *Maildir) Walk(ctx context.Context, fn func(path string, raw *normalize.RawMessage) error, onError func(path string, err error)) error {
	return filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMessageFile(path) {
			return nil
		}
		raw, err := m.ReadFile(path)
		if err != nil {
			if onError != nil {
				onError(path, err)
			}
			return nil
		}
		return fn(path, raw)
	})
}

// Count returns the number of message files Walk would visit.
func (m *Maildir) Count(ctx context.Context) (int, error) {
	n := 0
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMessageFile(path) {
			n++
		}
		return nil
	})
	return n, err
}

// GetDocument returns the raw message with the given id, rescanning the root
// when the id has not been seen yet.
func (m *Maildir) GetDocument(ctx context.Context, ownerID, id string) (*normalize.RawMessage, error) {
	if path, ok := m.lookup(id); ok {
		raw, err := m.ReadFile(path)
		if err == nil && raw.ID == id {
			return raw, nil
		}
	}

	var found *normalize.RawMessage
	err := m.Walk(ctx, func(_ string, raw *normalize.RawMessage) error {
		if raw.ID == id {
			found = raw
			return fs.SkipAll
		}
		return nil
	}, nil)
	if err != nil {
		return nil, mserrors.Wrap(mserrors.ErrCodeInternal, err)
	}
	if found == nil {
		return nil, mserrors.New(mserrors.ErrCodeDocumentNotFound, "message not found in maildir", nil).
			WithDetail("owner_id", ownerID).
			WithDetail("id", id)
	}
	return found, nil
}

// IDForPath returns the id last parsed from path, if any.
func (m *Maildir) IDForPath(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, p := range m.paths {
		if p == path {
			return id, true
		}
	}
	return "", false
}

// Forget drops the path mapping for a removed file.
func (m *Maildir) Forget(id string) {
	m.mu.Lock()
	delete(m.paths, id)
	m.mu.Unlock()
}

func (m *Maildir) lookup(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[id]
	return p, ok
}

// folderStatus derives a status from the Maildir folder holding path:
// the root folder is the inbox, ".Archive/cur/x" is "archive".
func (m *Maildir) folderStatus(path string) string {
	dir := filepath.Dir(path)
	switch filepath.Base(dir) {
	case "cur", "new":
		dir = filepath.Dir(dir)
	}
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return normalize.DefaultStatus
	}
	name := strings.TrimPrefix(filepath.Base(rel), ".")
	if name == "" || strings.EqualFold(name, "inbox") {
		return normalize.DefaultStatus
	}
	// Maildir++ nests folders with dots: ".Archive.2024" is under archive.
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// applyFlags reads Maildir info flags from the file name ("id:2,FS").
// Files in new/ have not been seen.
func applyFlags(raw *normalize.RawMessage, path string) {
	base := filepath.Base(path)
	if filepath.Base(filepath.Dir(path)) == "new" {
		raw.Unread = true
		return
	}
	i := strings.LastIndex(base, ":2,")
	if i < 0 {
		if strings.EqualFold(filepath.Ext(base), ".eml") {
			raw.Unread = false
		}
		return
	}
	flags := base[i+3:]
	raw.Unread = !strings.ContainsRune(flags, 'S')
	if strings.ContainsRune(flags, 'T') {
		raw.Status = "trash"
	}
}

// fileID is the fallback id for messages without a Message-ID: the file
// name up to the Maildir info suffix.
func fileID(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, ":2,"); i >= 0 {
		base = base[:i]
	}
	if strings.EqualFold(filepath.Ext(base), ".eml") {
		base = base[:len(base)-len(".eml")]
	}
	return base
}
