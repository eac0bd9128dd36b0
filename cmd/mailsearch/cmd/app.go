package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/mailsearch/internal/config"
	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/index"
	"github.com/Aman-CERP/mailsearch/internal/mailsource"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/store"
	"github.com/Aman-CERP/mailsearch/internal/telemetry"
)

// app is the wired search layer shared by the subcommands.
type app struct {
	cfg         *config.Config
	store       store.Store
	provider    embed.Provider
	maildir     *mailsource.Maildir
	coordinator *index.Coordinator
	search      *search.Service
	lock        *store.DataDirLock
}

// appOptions controls which parts of the app are opened.
type appOptions struct {
	// maildir overrides paths.maildir.
	maildir string
	// exclusive takes the data directory lock for commands that write
	// continuously (watch, serve --watch).
	exclusive bool
}

// openApp opens the store and provider from cfg and wires the coordinator
// and search service on top of them.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	if opts.exclusive {
		a.lock = store.NewDataDirLock(cfg.Paths.DataDir)
		if err := a.lock.Acquire(); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.Store.Backend,
		SQLitePath:  cfg.DatabasePath(),
		SQLite:      store.SQLiteOptions{CacheMB: cfg.Store.SQLiteCacheMB},
		PostgresDSN: cfg.Store.PostgresDSN,
	})
	if err != nil {
		a.release()
		return nil, err
	}
	a.store = st

	provider, err := embed.NewProvider(cfg.Embeddings)
	if err != nil {
		_ = st.Close()
		a.release()
		return nil, err
	}
	a.provider = provider

	root := opts.maildir
	if root == "" {
		root = cfg.Paths.Maildir
	}
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("invalid maildir %q: %w", root, err)
		}
		a.maildir = mailsource.NewMaildir(abs)
	}

	coordCfg := index.CoordinatorConfig{
		Lexical:             st,
		Vectors:             st,
		Provider:            provider,
		CanonicalDimensions: cfg.Embeddings.CanonicalDimensions,
		Debounce:            config.ParseDuration(cfg.Indexing.Debounce, index.DefaultDebounce),
		PoolSize:            cfg.Indexing.PoolSize,
	}
	if a.maildir != nil {
		coordCfg.Source = a.maildir
	}
	coordinator, err := index.NewCoordinator(coordCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.coordinator = coordinator

	a.search = search.NewService(search.Config{
		Lexical:             st,
		Vectors:             st,
		Provider:            provider,
		CanonicalDimensions: cfg.Embeddings.CanonicalDimensions,
		DefaultPageSize:     cfg.Search.DefaultPageSize,
		MaxPageSize:         cfg.Search.MaxPageSize,
		TrigramThreshold:    cfg.Search.TrigramThreshold,
		SemanticMinScore:    cfg.Search.SemanticMinScore,
		Metrics:             telemetry.NewQueryMetrics(telemetry.DefaultConfig()),
	})

	slog.Debug("app_opened",
		slog.String("backend", st.Backend()),
		slog.String("provider", provider.Name()),
		slog.String("maildir", root))
	return a, nil
}

// requireMaildir returns the configured maildir or a usage error.
func (a *app) requireMaildir() (*mailsource.Maildir, error) {
	if a.maildir == nil {
		return nil, fmt.Errorf("no maildir configured\nPass a path or set paths.maildir / MAILSEARCH_MAILDIR")
	}
	return a.maildir, nil
}

// Close flushes pending embedding batches and releases everything openApp
// acquired, in reverse order.
func (a *app) Close() error {
	var firstErr error
	if a.coordinator != nil {
		if err := a.coordinator.Close(); err != nil {
			firstErr = err
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.release()
	return firstErr
}

func (a *app) release() {
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			slog.Warn("lock_release_failed", slog.String("error", err.Error()))
		}
	}
}
