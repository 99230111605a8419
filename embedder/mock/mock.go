package mock

import (
	"context"

	"github.com/w-h-a/companion/embedder"
)

// mockEmbedder produces deterministic vectors from text bytes. No semantic
// meaning; identical text always maps to the identical vector, which is all
// local development and tests need.
type mockEmbedder struct {
	options embedder.Options
	dims    int
}

func (e *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	for i, b := range []byte(text) {
		vec[i%e.dims] += float32(b) / 255.0
	}

	return vec, nil
}

func (e *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}

	return vectors, nil
}

func NewEmbedder(dims int, opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if dims < 1 {
		dims = 384
	}

	return &mockEmbedder{
		options: options,
		dims:    dims,
	}
}
