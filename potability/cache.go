package potability

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"aquamind/ml"
)

type sampleKey [9]float64

// CachedAdapter memoises successful single-sample results in memory.
// The model never changes after loading, so equal readings always give
// equal results. Failures and batch calls are never cached.
type CachedAdapter struct {
	inner Classifier
	cache *lru.Cache[sampleKey, Result]
}

// NewCachedAdapter wraps inner with an LRU holding up to size results.
func NewCachedAdapter(inner Classifier, size int) (*CachedAdapter, error) {
	cache, err := lru.New[sampleKey, Result](size)
	if err != nil {
		return nil, err
	}
	return &CachedAdapter{inner: inner, cache: cache}, nil
}

func (c *CachedAdapter) Classify(ctx context.Context, sample ml.WaterSample) Result {
	var key sampleKey
	copy(key[:], ml.FeatureVector(sample))
	if res, ok := c.cache.Get(key); ok {
		return res.clone()
	}
	res := c.inner.Classify(ctx, sample)
	if !res.Failed() {
		c.cache.Add(key, res.clone())
	}
	return res
}

func (c *CachedAdapter) ClassifyBatch(ctx context.Context, frame *ml.Frame) BatchResult {
	return c.inner.ClassifyBatch(ctx, frame)
}

func (c *CachedAdapter) Info() ml.ModelInfo {
	return c.inner.Info()
}

// Uncached returns the wrapped classifier, for callers that must reach the
// model on every call.
func (c *CachedAdapter) Uncached() Classifier {
	return c.inner
}

// Len returns the number of cached results.
func (c *CachedAdapter) Len() int {
	return c.cache.Len()
}
