package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// Config represents the complete mailsearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures where mailsearch keeps its state.
type PathsConfig struct {
	// DataDir holds the SQLite database and lock file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Maildir is the mail root indexed by the index and watch commands.
	Maildir string `yaml:"maildir" json:"maildir"`
}

// StoreConfig selects the lexical/vector store backend.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `yaml:"backend" json:"backend"`

	// PostgresDSN is required when Backend is "postgres".
	// The database needs the pg_trgm and vector extensions.
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`

	// SQLiteCacheMB is the page cache size for the SQLite backend.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// EmbeddingsConfig configures the embedding provider.
// The provider is chosen once at startup.
type EmbeddingsConfig struct {
	// Provider is "local", "remote" or "none".
	Provider string `yaml:"provider" json:"provider"`

	// CanonicalDimensions is the storage width every vector is adapted to.
	CanonicalDimensions int `yaml:"canonical_dimensions" json:"canonical_dimensions"`

	// CacheSize is the number of query embeddings kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	Local  LocalEmbeddingsConfig  `yaml:"local" json:"local"`
	Remote RemoteEmbeddingsConfig `yaml:"remote" json:"remote"`
}

// LocalEmbeddingsConfig configures the on-device model.
type LocalEmbeddingsConfig struct {
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	Workers    int    `yaml:"workers" json:"workers"`
}

// RemoteEmbeddingsConfig configures the quota-limited HTTP provider.
// Durations are Go duration strings ("1s", "1h").
type RemoteEmbeddingsConfig struct {
	Endpoint       string  `yaml:"endpoint" json:"endpoint"`
	APIKey         string  `yaml:"api_key" json:"-"`
	Model          string  `yaml:"model" json:"model"`
	Dimensions     int     `yaml:"dimensions" json:"dimensions"`
	MinDelay       string  `yaml:"min_delay" json:"min_delay"`
	MaxJitter      string  `yaml:"max_jitter" json:"max_jitter"`
	MaxWait        string  `yaml:"max_wait" json:"max_wait"`
	Timeout        string  `yaml:"timeout" json:"timeout"`
	MaxRetries     int     `yaml:"max_retries" json:"max_retries"`
	BaseCooldown   string  `yaml:"base_cooldown" json:"base_cooldown"`
	MaxCooldown    string  `yaml:"max_cooldown" json:"max_cooldown"`
	CooldownGrowth float64 `yaml:"cooldown_growth" json:"cooldown_growth"`
}

// IndexingConfig configures the indexing coordinator.
type IndexingConfig struct {
	// Debounce is the per-owner batch embedding delay.
	Debounce string `yaml:"debounce" json:"debounce"`

	// PoolSize bounds concurrently running embedding batches.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// WatchDebounce coalesces file events in watch mode.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`

	// PollInterval is used when the platform file watcher is unavailable.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// SearchConfig configures paging and lexical matching.
type SearchConfig struct {
	DefaultPageSize  int     `yaml:"default_page_size" json:"default_page_size"`
	MaxPageSize      int     `yaml:"max_page_size" json:"max_page_size"`
	TrigramThreshold float64 `yaml:"trigram_threshold" json:"trigram_threshold"`

	// SemanticMinScore drops semantic hits below this similarity. Zero disables it.
	SemanticMinScore float64 `yaml:"semantic_min_score" json:"semantic_min_score"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: DefaultDataDir(),
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			SQLiteCacheMB: 64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:            "local",
			CanonicalDimensions: 768,
			CacheSize:           1000,
			Local: LocalEmbeddingsConfig{
				Model:      "hashing-384",
				Dimensions: 384,
				Workers:    runtime.NumCPU(),
			},
			Remote: RemoteEmbeddingsConfig{
				Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
				Model:          "text-embedding-004",
				Dimensions:     768,
				MinDelay:       "1s",
				MaxJitter:      "250ms",
				MaxWait:        "30s",
				Timeout:        "15s",
				MaxRetries:     2,
				BaseCooldown:   "1h",
				MaxCooldown:    "24h",
				CooldownGrowth: 1.5,
			},
		},
		Indexing: IndexingConfig{
			Debounce:      "5s",
			PoolSize:      4,
			WatchDebounce: "500ms",
			PollInterval:  "5s",
		},
		Search: SearchConfig{
			DefaultPageSize:  20,
			MaxPageSize:      100,
			TrigramThreshold: 0.05,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultDataDir returns ~/.mailsearch, falling back to the temp directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mailsearch")
	}
	return filepath.Join(home, ".mailsearch")
}

// DatabasePath returns the SQLite database location inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "search.db")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/mailsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/mailsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "mailsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsearch", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the given directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/mailsearch/config.yaml)
//  3. Project config (.mailsearch.yaml in dir)
//  4. .env file in dir (does not override variables already set)
//  5. Environment variables (MAILSEARCH_*)
func Load(dir string) (*Config, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, mserrors.New(mserrors.ErrCodeConfigNotFound, "config directory not found", err).
			WithDetail("dir", dir).
			WithSuggestion("Pass an existing directory to --config-dir")
	}

	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	envPath := filepath.Join(dir, ".env")
	if fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .mailsearch.yaml or .mailsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".mailsearch.yaml", ".mailsearch.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := parseYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func parseYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = expandHome(other.Paths.DataDir)
	}
	if other.Paths.Maildir != "" {
		c.Paths.Maildir = expandHome(other.Paths.Maildir)
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.PostgresDSN != "" {
		c.Store.PostgresDSN = other.Store.PostgresDSN
	}
	if other.Store.SQLiteCacheMB > 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Embeddings
	e, o := &c.Embeddings, &other.Embeddings
	if o.Provider != "" {
		e.Provider = o.Provider
	}
	if o.CanonicalDimensions > 0 {
		e.CanonicalDimensions = o.CanonicalDimensions
	}
	if o.CacheSize > 0 {
		e.CacheSize = o.CacheSize
	}
	if o.Local.Model != "" {
		e.Local.Model = o.Local.Model
	}
	if o.Local.Dimensions > 0 {
		e.Local.Dimensions = o.Local.Dimensions
	}
	if o.Local.Workers > 0 {
		e.Local.Workers = o.Local.Workers
	}
	mergeString(&e.Remote.Endpoint, o.Remote.Endpoint)
	mergeString(&e.Remote.APIKey, o.Remote.APIKey)
	mergeString(&e.Remote.Model, o.Remote.Model)
	mergeString(&e.Remote.MinDelay, o.Remote.MinDelay)
	mergeString(&e.Remote.MaxJitter, o.Remote.MaxJitter)
	mergeString(&e.Remote.MaxWait, o.Remote.MaxWait)
	mergeString(&e.Remote.Timeout, o.Remote.Timeout)
	mergeString(&e.Remote.BaseCooldown, o.Remote.BaseCooldown)
	mergeString(&e.Remote.MaxCooldown, o.Remote.MaxCooldown)
	if o.Remote.Dimensions > 0 {
		e.Remote.Dimensions = o.Remote.Dimensions
	}
	if o.Remote.MaxRetries > 0 {
		e.Remote.MaxRetries = o.Remote.MaxRetries
	}
	if o.Remote.CooldownGrowth > 0 {
		e.Remote.CooldownGrowth = o.Remote.CooldownGrowth
	}

	// Indexing
	mergeString(&c.Indexing.Debounce, other.Indexing.Debounce)
	mergeString(&c.Indexing.WatchDebounce, other.Indexing.WatchDebounce)
	mergeString(&c.Indexing.PollInterval, other.Indexing.PollInterval)
	if other.Indexing.PoolSize > 0 {
		c.Indexing.PoolSize = other.Indexing.PoolSize
	}

	// Search
	if other.Search.DefaultPageSize > 0 {
		c.Search.DefaultPageSize = other.Search.DefaultPageSize
	}
	if other.Search.MaxPageSize > 0 {
		c.Search.MaxPageSize = other.Search.MaxPageSize
	}
	if other.Search.TrigramThreshold > 0 {
		c.Search.TrigramThreshold = other.Search.TrigramThreshold
	}
	if other.Search.SemanticMinScore != 0 {
		c.Search.SemanticMinScore = other.Search.SemanticMinScore
	}

	// Logging
	mergeString(&c.Logging.Level, other.Logging.Level)
	mergeString(&c.Logging.FilePath, other.Logging.FilePath)
	if other.Logging.MaxSizeMB > 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles > 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies MAILSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MAILSEARCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = expandHome(v)
	}
	if v := os.Getenv("MAILSEARCH_MAILDIR"); v != "" {
		c.Paths.Maildir = expandHome(v)
	}
	if v := os.Getenv("MAILSEARCH_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("MAILSEARCH_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("MAILSEARCH_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MAILSEARCH_REMOTE_ENDPOINT"); v != "" {
		c.Embeddings.Remote.Endpoint = v
	}
	if v := os.Getenv("MAILSEARCH_REMOTE_API_KEY"); v != "" {
		c.Embeddings.Remote.APIKey = v
	}
	if v := os.Getenv("MAILSEARCH_REMOTE_MODEL"); v != "" {
		c.Embeddings.Remote.Model = v
	}
	if v := os.Getenv("MAILSEARCH_CANONICAL_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.CanonicalDimensions = n
		}
	}
	if v := os.Getenv("MAILSEARCH_DEBOUNCE"); v != "" {
		c.Indexing.Debounce = v
	}
	if v := os.Getenv("MAILSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MAILSEARCH_TRIGRAM_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 && f <= 1 {
			c.Search.TrigramThreshold = f
		}
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "sqlite":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be 'sqlite' or 'postgres', got %s", c.Store.Backend)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "local", "remote", "none":
	default:
		return fmt.Errorf("embeddings.provider must be 'local', 'remote' or 'none', got %s", c.Embeddings.Provider)
	}

	if c.Embeddings.CanonicalDimensions <= 0 {
		return fmt.Errorf("embeddings.canonical_dimensions must be positive, got %d", c.Embeddings.CanonicalDimensions)
	}
	if c.Embeddings.Remote.CooldownGrowth < 1 {
		return fmt.Errorf("embeddings.remote.cooldown_growth must be >= 1, got %f", c.Embeddings.Remote.CooldownGrowth)
	}

	durations := map[string]string{
		"embeddings.remote.min_delay":     c.Embeddings.Remote.MinDelay,
		"embeddings.remote.max_jitter":    c.Embeddings.Remote.MaxJitter,
		"embeddings.remote.max_wait":      c.Embeddings.Remote.MaxWait,
		"embeddings.remote.timeout":       c.Embeddings.Remote.Timeout,
		"embeddings.remote.base_cooldown": c.Embeddings.Remote.BaseCooldown,
		"embeddings.remote.max_cooldown":  c.Embeddings.Remote.MaxCooldown,
		"indexing.debounce":               c.Indexing.Debounce,
		"indexing.watch_debounce":         c.Indexing.WatchDebounce,
	}
	for key, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s must be a duration, got %q", key, v)
		}
	}
	if ParseDuration(c.Embeddings.Remote.MaxCooldown, 0) < ParseDuration(c.Embeddings.Remote.BaseCooldown, 0) {
		return fmt.Errorf("embeddings.remote.max_cooldown must not be shorter than base_cooldown")
	}

	if c.Search.TrigramThreshold < 0 || c.Search.TrigramThreshold > 1 {
		return fmt.Errorf("search.trigram_threshold must be between 0 and 1, got %f", c.Search.TrigramThreshold)
	}
	if c.Search.DefaultPageSize <= 0 || c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size must be between 1 and max_page_size (%d), got %d",
			c.Search.MaxPageSize, c.Search.DefaultPageSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// ParseDuration parses s, returning fallback when s is empty or invalid.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
