package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/w-h-a/companion/embedder"
)

// cachedEmbedder is a read-through cache in front of another embedder.
// Game events repeat a lot (same achievement text for many players), so
// skipping the provider round trip is a cheap win.
type cachedEmbedder struct {
	options embedder.Options
	inner   embedder.Embedder
	cache   *ristretto.Cache
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.options.Model + "\x00" + text

	if v, found := e.cache.Get(key); found {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(key, vec, int64(len(vec)))

	return vec, nil
}

func (e *cachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var misses []string
	var missIdx []int

	for i, text := range texts {
		if v, found := e.cache.Get(e.options.Model + "\x00" + text); found {
			if vec, ok := v.([]float32); ok {
				vectors[i] = vec
				continue
			}
		}
		misses = append(misses, text)
		missIdx = append(missIdx, i)
	}

	if len(misses) == 0 {
		return vectors, nil
	}

	fetched, err := e.inner.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, err
	}

	for i, vec := range fetched {
		vectors[missIdx[i]] = vec
		e.cache.Set(e.options.Model+"\x00"+misses[i], vec, int64(len(vec)))
	}

	return vectors, nil
}

func NewEmbedder(inner embedder.Embedder, opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 26, // ~64MB of float32s
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	return &cachedEmbedder{
		options: options,
		inner:   inner,
		cache:   cache,
	}
}
