package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/mailsearch/internal/config"
)

func TestUserConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the embedded template
	require.NotEmpty(t, UserConfigTemplate)

	// When: decoding it over the defaults
	cfg := config.NewConfig()
	require.NoError(t, yaml.Unmarshal([]byte(UserConfigTemplate), cfg))

	// Then: it is valid and agrees with the hardcoded defaults
	require.NoError(t, cfg.Validate())
	def := config.NewConfig()
	assert.Equal(t, def.Store, cfg.Store)
	assert.Equal(t, def.Embeddings.Remote, cfg.Embeddings.Remote)
	assert.Equal(t, def.Embeddings.CanonicalDimensions, cfg.Embeddings.CanonicalDimensions)
	assert.Equal(t, def.Indexing, cfg.Indexing)
	assert.Equal(t, def.Search, cfg.Search)
	assert.Equal(t, def.Logging, cfg.Logging)
}
