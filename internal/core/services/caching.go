package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure CachingEmbedder implements the interface.
var _ driven.EmbeddingService = (*CachingEmbedder)(nil)

// CachingEmbedder serves repeated texts from an EmbeddingCache.
// Cache faults are logged and fall through to the wrapped embedder.
type CachingEmbedder struct {
	inner driven.EmbeddingService
	cache driven.EmbeddingCache
	ttl   time.Duration
}

// NewCachingEmbedder wraps inner with cache. ttl of zero never expires entries.
func NewCachingEmbedder(inner driven.EmbeddingService, cache driven.EmbeddingCache, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: cache, ttl: ttl}
}

// CacheKey identifies text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or embeds and caches text.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.inner.ModelName(), text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, preserving order.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.inner.ModelName()
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = CacheKey(model, text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}
	logger.Debug("Embedding cache: %d hits, %d misses", len(texts)-len(missTexts), len(missTexts))

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(vecs) {
			break
		}
		out[i] = vecs[j]
		c.store(ctx, keys[i], vecs[j])
	}
	return out, nil
}

func (c *CachingEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if dim := c.inner.Dimensions(); dim > 0 && len(vec) != dim {
		return nil, false
	}
	return vec, true
}

func (c *CachingEmbedder) store(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.cache.Set(ctx, key, vec, c.ttl); err != nil {
		logger.Warn("Embedding cache write failed: %v", err)
	}
}

// Dimensions returns the wrapped embedder's vector size.
func (c *CachingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the wrapped embedder's model.
func (c *CachingEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Ping checks the wrapped embedder.
func (c *CachingEmbedder) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// Close closes the wrapped embedder and the cache.
func (c *CachingEmbedder) Close() error {
	err := c.inner.Close()
	if cerr := c.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
