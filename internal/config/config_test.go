package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "local", cfg.Embeddings.Provider)
	assert.Equal(t, 768, cfg.Embeddings.CanonicalDimensions)
	assert.Equal(t, "5s", cfg.Indexing.Debounce)
	assert.Equal(t, "1h", cfg.Embeddings.Remote.BaseCooldown)
	assert.Equal(t, "24h", cfg.Embeddings.Remote.MaxCooldown)
	assert.Equal(t, 1.5, cfg.Embeddings.Remote.CooldownGrowth)
	assert.Equal(t, 0.05, cfg.Search.TrigramThreshold)
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
	assert.Equal(t, 100, cfg.Search.MaxPageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Embeddings, cfg.Embeddings)
}

func TestLoad_ProjectFileOverridesUserConfig(t *testing.T) {
	// Given: a user config choosing remote and a project config choosing none
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "mailsearch", "config.yaml"), `
embeddings:
  provider: remote
  remote:
    api_key: user-key
search:
  default_page_size: 10
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".mailsearch.yaml"), `
embeddings:
  provider: none
indexing:
  debounce: 2s
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins where set, user config fills the rest
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Embeddings.Provider)
	assert.Equal(t, "user-key", cfg.Embeddings.Remote.APIKey)
	assert.Equal(t, 10, cfg.Search.DefaultPageSize)
	assert.Equal(t, "2s", cfg.Indexing.Debounce)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".mailsearch.yaml"), "embeddings:\n  provider: local\n")
	t.Setenv("MAILSEARCH_EMBED_PROVIDER", "remote")
	t.Setenv("MAILSEARCH_TRIGRAM_THRESHOLD", "0.2")
	t.Setenv("MAILSEARCH_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("MAILSEARCH_MAILDIR", filepath.Join(dir, "Mail"))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "remote", cfg.Embeddings.Provider)
	assert.Equal(t, filepath.Join(dir, "Mail"), cfg.Paths.Maildir)
	assert.Equal(t, 0.2, cfg.Search.TrigramThreshold)
	assert.Equal(t, filepath.Join(dir, "data", "search.db"), cfg.DatabasePath())
}

func TestLoad_DotEnvFileIsRead(t *testing.T) {
	// Given: a .env file with the remote key
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "MAILSEARCH_REMOTE_API_KEY=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("MAILSEARCH_REMOTE_API_KEY") })

	// When: loading
	cfg, err := Load(dir)

	// Then: the key reaches the config
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Embeddings.Remote.APIKey)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".mailsearch.yaml"), "embeddings: [unclosed")

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_MissingDirIsConfigNotFound(t *testing.T) {
	isolate(t)

	// Given: a config directory that does not exist
	dir := filepath.Join(t.TempDir(), "missing")

	// When: loading from it
	_, err := Load(dir)

	// Then: the error says so instead of silently using defaults
	require.Error(t, err)
	assert.Equal(t, mserrors.ErrCodeConfigNotFound, mserrors.GetCode(err))
	assert.Equal(t, mserrors.CategoryConfig, mserrors.GetCategory(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "ollama" }, "embeddings.provider"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "mysql" }, "store.backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "postgres_dsn"},
		{"bad debounce", func(c *Config) { c.Indexing.Debounce = "soon" }, "indexing.debounce"},
		{"shrinking growth", func(c *Config) { c.Embeddings.Remote.CooldownGrowth = 0.5 }, "cooldown_growth"},
		{"cap below base", func(c *Config) { c.Embeddings.Remote.MaxCooldown = "30m" }, "max_cooldown"},
		{"threshold above one", func(c *Config) { c.Search.TrigramThreshold = 1.5 }, "trigram_threshold"},
		{"page size above max", func(c *Config) { c.Search.DefaultPageSize = 500 }, "default_page_size"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero width", func(c *Config) { c.Embeddings.CanonicalDimensions = 0 }, "canonical_dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseDuration_FallsBack(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("five", time.Minute))
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a config with a non-default provider written as the project file
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Embeddings.Provider = "none"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".mailsearch.yaml")))

	// When: loading it back
	loaded, err := Load(dir)

	// Then: the value survives
	require.NoError(t, err)
	assert.Equal(t, "none", loaded.Embeddings.Provider)
}
