package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/mailsearch/internal/config"
	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderLocal runs the on-device model.
	ProviderLocal ProviderType = "local"

	// ProviderRemote calls the hosted embedding API.
	ProviderRemote ProviderType = "remote"

	// ProviderNone disables semantic search; search is lexical-only.
	ProviderNone ProviderType = "none"
)

// NewProvider builds the provider selected in cfg, wrapped with a query
// cache. It is called once at startup; the choice does not change while
// the process runs.
func NewProvider(cfg config.EmbeddingsConfig) (Provider, error) {
	var p Provider
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderLocal, "":
		p = NewLocalEmbedder(LocalConfig{
			Name:       cfg.Local.Model,
			Dimensions: cfg.Local.Dimensions,
			Workers:    cfg.Local.Workers,
		})
	case ProviderRemote:
		p = NewRemoteEmbedder(remoteConfig(cfg.Remote))
	case ProviderNone:
		return Disabled(), nil
	default:
		return nil, mserrors.ConfigError(fmt.Sprintf("unknown embeddings provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: local, remote, none")
	}

	slog.Info("embedding_provider_selected",
		slog.String("provider", strings.ToLower(cfg.Provider)),
		slog.String("model", p.Name()),
		slog.Int("dimensions", p.Dimensions()),
		slog.Int("canonical_dimensions", cfg.CanonicalDimensions))
	if p.Dimensions() > cfg.CanonicalDimensions {
		slog.Warn("embedding_wider_than_storage",
			slog.Int("dimensions", p.Dimensions()),
			slog.Int("canonical_dimensions", cfg.CanonicalDimensions))
	}

	return NewCachedProvider(p, cfg.CacheSize), nil
}

func remoteConfig(rc config.RemoteEmbeddingsConfig) RemoteConfig {
	retry := mserrors.DefaultRetryConfig()
	if rc.MaxRetries >= 0 {
		retry.MaxRetries = rc.MaxRetries
	}
	governor := NewQuotaGovernor(rc.Model, WithCooldown(
		config.ParseDuration(rc.BaseCooldown, DefaultBaseCooldown),
		config.ParseDuration(rc.MaxCooldown, DefaultMaxCooldown),
		rc.CooldownGrowth,
	))
	return RemoteConfig{
		Endpoint:   rc.Endpoint,
		APIKey:     rc.APIKey,
		Model:      rc.Model,
		Dimensions: rc.Dimensions,
		MinDelay:   config.ParseDuration(rc.MinDelay, DefaultMinDelay),
		MaxJitter:  config.ParseDuration(rc.MaxJitter, DefaultMaxJitter),
		MaxWait:    config.ParseDuration(rc.MaxWait, DefaultMaxWait),
		Timeout:    config.ParseDuration(rc.Timeout, DefaultRequestTimeout),
		Retry:      retry,
		Governor:   governor,
	}
}

// QuotaOf returns the quota governor behind p, if it has one.
func QuotaOf(p Provider) (*QuotaGovernor, bool) {
	if c, ok := p.(*CachedProvider); ok {
		p = c.Inner()
	}
	if r, ok := p.(*RemoteEmbedder); ok {
		return r.Governor(), true
	}
	return nil, false
}

// Preload starts loading a local model in the background. Other providers
// ignore it.
func Preload(p Provider) {
	if c, ok := p.(*CachedProvider); ok {
		p = c.Inner()
	}
	if l, ok := p.(*LocalEmbedder); ok {
		l.Preload()
	}
}

// disabledProvider is the "none" provider.
type disabledProvider struct{}

// Disabled returns a provider that is never available.
func Disabled() Provider {
	return disabledProvider{}
}

func (disabledProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, mserrors.ProviderError("semantic search is disabled", nil).
		WithSuggestion("Set embeddings.provider to local or remote")
}

func (d disabledProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	_, err := d.Embed(ctx, "")
	return make([][]float32, len(texts)), err
}

func (disabledProvider) Available(context.Context) bool { return false }
func (disabledProvider) Dimensions() int                { return 0 }
func (disabledProvider) Name() string                   { return string(ProviderNone) }
func (disabledProvider) Close() error                   { return nil }
