package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServe_UnknownTransport(t *testing.T) {
	// Given: an isolated environment
	env := newTestEnv(t)
	configDir, dataDirFlag = env.cfgDir, env.dataDir
	t.Cleanup(func() { configDir, dataDirFlag = "", "" })

	// When: serving over an unsupported transport
	err := runServe(context.Background(), "tcp", false)

	// Then: it fails and logs went to the file, not the terminal
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
	_, statErr := os.Stat(filepath.Join(env.home, ".mailsearch", "logs", "mailsearch.log"))
	assert.NoError(t, statErr)
}
