package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const invoiceMessage = "Message-ID: <m1@example.com>\r\n" +
	"From: Billing <billing@x.com>\r\n" +
	"Subject: Invoice #100\r\n" +
	"Date: Sun, 01 Mar 2026 09:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please pay the attached invoice.\r\n"

const lunchMessage = "Message-ID: <m2@example.com>\r\n" +
	"From: Team <team@x.com>\r\n" +
	"Subject: Team Lunch\r\n" +
	"Date: Mon, 02 Mar 2026 12:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Pizza on Friday.\r\n"

// testEnv isolates HOME, XDG_CONFIG_HOME and the data directory so commands
// never touch the real user state.
type testEnv struct {
	home    string
	dataDir string
	cfgDir  string
	maildir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("MAILSEARCH_MAILDIR", "")
	t.Setenv("MAILSEARCH_EMBED_PROVIDER", "")
	t.Setenv("MAILSEARCH_DATA_DIR", "")

	env := &testEnv{
		home:    home,
		dataDir: filepath.Join(home, "data"),
		cfgDir:  t.TempDir(),
		maildir: filepath.Join(home, "Maildir"),
	}
	for _, dir := range []string{"cur", "new", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(env.maildir, dir), 0o755))
	}
	return env
}

func (e *testEnv) deliver(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.maildir, "cur", name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI as owner 42 and returns what it wrote to stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{
		"--config-dir", e.cfgDir,
		"--data-dir", e.dataDir,
		"--owner", "42",
	}, args...))
	err := root.Execute()
	return buf.String(), err
}

func (e *testEnv) indexMailbox(t *testing.T) {
	t.Helper()
	e.deliver(t, "1700000000.1.host:2,S", invoiceMessage)
	e.deliver(t, "1700000001.2.host:2,", lunchMessage)
	out, err := e.run(t, "index", "--no-progress", e.maildir)
	require.NoError(t, err, out)
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}
