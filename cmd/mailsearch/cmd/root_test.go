package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When: listing its subcommands
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	// Then: every command is registered
	for _, want := range []string{"index", "search", "get", "remove", "reindex", "watch", "serve", "status", "config", "doctor", "logs", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	// Given: the root command with --version
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	// When: executing
	err := root.Execute()

	// Then: the version template is printed
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "mailsearch version")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	// Given: an unknown subcommand
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"frobnicate"})

	// When/Then: execution fails
	assert.Error(t, root.Execute())
}

func TestOwnerID_Precedence(t *testing.T) {
	t.Setenv("USER", "carol")
	t.Setenv("MAILSEARCH_OWNER", "")
	ownerFlag = ""
	t.Cleanup(func() { ownerFlag = "" })

	assert.Equal(t, "carol", ownerID())

	t.Setenv("MAILSEARCH_OWNER", "bob")
	assert.Equal(t, "bob", ownerID())

	ownerFlag = "alice"
	assert.Equal(t, "alice", ownerID())
}

func TestVersionCmd_Short(t *testing.T) {
	// Given: the version command with --short
	env := newTestEnv(t)

	// When: executing
	out, err := env.run(t, "version", "--short")

	// Then: a single line is printed
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.NotContains(t, out, "\n\n")
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	// Given: CPU and heap profiles requested for a command
	env := newTestEnv(t)
	cpu := filepath.Join(env.home, "cpu.prof")
	heap := filepath.Join(env.home, "heap.prof")

	// When: running it
	_, err := env.run(t, "--profile-cpu", cpu, "--profile-mem", heap, "status")

	// Then: both profiles are written
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}
