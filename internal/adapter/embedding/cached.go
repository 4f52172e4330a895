package embedding

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"tutorgrid/internal/domain"
)

// CachedEmbedder wraps a domain.EmbeddingProvider with an LRU cache keyed by
// exact text. A worker embeds the same query text twice per miss (lookup and
// store), so the cache halves provider traffic on the hot path.
type CachedEmbedder struct {
	inner domain.EmbeddingProvider
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU embedding cache of maxSize entries.
// If maxSize <= 0, the inner provider is returned directly.
func NewCachedEmbedder(inner domain.EmbeddingProvider, maxSize int) domain.EmbeddingProvider {
	if maxSize <= 0 {
		return inner
	}
	cache, err := lru.New[string, []float32](maxSize)
	if err != nil {
		return inner
	}
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed implements domain.EmbeddingProvider. Only texts missing from the cache
// are forwarded to the inner provider, in one batch.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			out[i] = slices.Clone(vec)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(vecs, missing, 0); err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		c.cache.Add(missing[j], slices.Clone(vec))
		out[missingIdx[j]] = vec
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Dimensions implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Name implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Name() string { return c.inner.Name() }

var _ domain.EmbeddingProvider = (*CachedEmbedder)(nil)
