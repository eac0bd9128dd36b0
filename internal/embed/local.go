package embed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// Loader loads the on-device model. LocalEmbedder calls it at most once
// successfully; a failure is remembered until the process restarts.
type Loader func(ctx context.Context) (Model, error)

// HashingLoader returns a Loader for the built-in hashing model.
func HashingLoader(dims int) Loader {
	return func(context.Context) (Model, error) {
		return NewHashingModel(dims), nil
	}
}

// LocalEmbedder runs an on-device model. The model loads lazily on first
// use; concurrent callers share one in-flight load.
type LocalEmbedder struct {
	loader  Loader
	name    string
	dims    int
	workers int

	group singleflight.Group

	mu      sync.RWMutex
	model   Model
	loadErr error
	closed  bool
}

// Verify interface implementation at compile time
var _ Provider = (*LocalEmbedder)(nil)

// LocalConfig configures a LocalEmbedder.
type LocalConfig struct {
	// Name and Dimensions describe the model before it is loaded.
	Name       string
	Dimensions int
	// Workers bounds parallel EmbedBatch work. Zero uses GOMAXPROCS.
	Workers int
	Loader  Loader
}

// NewLocalEmbedder creates an embedder that has not loaded its model yet.
func NewLocalEmbedder(cfg LocalConfig) *LocalEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultLocalDimensions
	}
	if cfg.Loader == nil {
		cfg.Loader = HashingLoader(cfg.Dimensions)
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("hashing-%d", cfg.Dimensions)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &LocalEmbedder{
		loader:  cfg.Loader,
		name:    cfg.Name,
		dims:    cfg.Dimensions,
		workers: cfg.Workers,
	}
}

// Preload starts loading the model in the background.
func (e *LocalEmbedder) Preload() {
	go func() {
		if _, err := e.load(context.Background()); err != nil {
			slog.Warn("local_model_preload_failed", slog.String("error", err.Error()))
		}
	}()
}

// load returns the model, loading it once. The load runs detached from the
// caller's context so a cancelled caller does not fail the shared load.
func (e *LocalEmbedder) load(ctx context.Context) (Model, error) {
	e.mu.RLock()
	model, loadErr, closed := e.model, e.loadErr, e.closed
	e.mu.RUnlock()
	switch {
	case closed:
		return nil, mserrors.ProviderError("local embedder is closed", nil)
	case model != nil:
		return model, nil
	case loadErr != nil:
		return nil, loadErr
	}

	ch := e.group.DoChan("load", func() (any, error) {
		e.mu.RLock()
		if e.model != nil || e.loadErr != nil {
			m, err := e.model, e.loadErr
			e.mu.RUnlock()
			return m, err
		}
		e.mu.RUnlock()

		slog.Info("local_model_loading", slog.String("model", e.name))
		m, err := e.loader(context.WithoutCancel(ctx))

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.loadErr = mserrors.ProviderError("local model failed to load", err).
				WithDetail("model", e.name)
			slog.Error("local_model_load_failed", slog.String("model", e.name), slog.String("error", err.Error()))
			return nil, e.loadErr
		}
		e.model = m
		e.dims = m.Dimensions()
		slog.Info("local_model_loaded", slog.String("model", e.name), slog.Int("dimensions", e.dims))
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	case <-ctx.Done():
		return nil, mserrors.New(mserrors.ErrCodeProviderTimeout, "waiting for local model", ctx.Err())
	}
}

// Embed implements Provider.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, model.Dimensions()), nil
	}
	return model.Embed(text), nil
}

// EmbedBatch implements Provider. Items run in parallel up to the worker
// limit.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}
	model, err := e.load(ctx)
	if err != nil {
		return results, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				results[i] = make([]float32, model.Dimensions())
				return nil
			}
			results[i] = model.Embed(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, mserrors.New(mserrors.ErrCodeProviderTimeout, "local batch interrupted", err)
	}
	return results, nil
}

// Available implements Provider. It is true before the first load attempt
// and after a successful one; a failed load makes it false for good.
func (e *LocalEmbedder) Available(context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed && e.loadErr == nil
}

// Loaded reports whether the model is in memory.
func (e *LocalEmbedder) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Dimensions implements Provider.
func (e *LocalEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// Name implements Provider.
func (e *LocalEmbedder) Name() string {
	return e.name
}

// Close implements Provider.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.model = nil
	return nil
}
