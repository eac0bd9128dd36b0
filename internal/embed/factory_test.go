package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mailsearch/internal/config"
	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

func TestNewProvider_Local(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "local"

	p, err := NewProvider(cfg)

	require.NoError(t, err)
	assert.Equal(t, cfg.Local.Dimensions, p.Dimensions())
	assert.True(t, p.Available(context.Background()))
	_, hasQuota := QuotaOf(p)
	assert.False(t, hasQuota)
}

func TestNewProvider_RemoteCarriesGovernor(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "remote"
	cfg.Remote.APIKey = "k"
	cfg.Remote.BaseCooldown = "2h"

	p, err := NewProvider(cfg)

	require.NoError(t, err)
	g, ok := QuotaOf(p)
	require.True(t, ok)
	assert.Equal(t, "2h0m0s", g.Snapshot().CooldownDuration.String())
	assert.Equal(t, cfg.Remote.Model, p.Name())
}

func TestNewProvider_None(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "none"

	p, err := NewProvider(cfg)

	require.NoError(t, err)
	assert.False(t, p.Available(context.Background()))
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Len(t, vecs, 2)
	assert.True(t, mserrors.Is(err, mserrors.ErrProviderUnavailable))
}

func TestNewProvider_Unknown(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "ollama"

	_, err := NewProvider(cfg)

	assert.Equal(t, mserrors.ErrCodeConfigInvalid, mserrors.GetCode(err))
}
