package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default number of cached vectors.
// At 768 dimensions * 4 bytes * 1000 entries that is about 3MB.
const DefaultEmbeddingCacheSize = 1000

// CachedProvider wraps a Provider with an LRU cache so repeated queries do
// not spend remote quota. Failed items are never cached.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// Verify interface implementation at compile time
var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with a cache of cacheSize entries.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

// cacheKey hashes text together with the model name.
func (c *CachedProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Embed implements Provider.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch implements Provider. Only cache misses reach the inner provider.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	for j, idx := range missIdx {
		if j >= len(fresh) || fresh[j] == nil {
			continue
		}
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, err
}

// Available implements Provider.
func (c *CachedProvider) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Dimensions implements Provider.
func (c *CachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// Name implements Provider.
func (c *CachedProvider) Name() string {
	return c.inner.Name()
}

// Close implements Provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Inner returns the wrapped provider, for provider-specific status such as
// the quota governor.
func (c *CachedProvider) Inner() Provider {
	return c.inner
}

// Len returns the number of cached vectors.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}
