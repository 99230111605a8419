package embedder

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations apply
// their configured timeout per call; a hang is a failure, never a pending
// success.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
