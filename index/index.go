package index

import (
	"context"
	"math"
	"time"

	"github.com/w-h-a/companion/memory"
)

// Index is the derived similarity index over memory embeddings. It never
// originates data and may be rebuilt at any time from the store. Every
// implementation filters by owner server-side; leaking another owner's
// memory is a correctness violation, not a bug.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, payload Payload) error
	Search(ctx context.Context, ownerId string, vector []float32, limit int, minImportance float64) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
}

// Payload mirrors the store columns needed for server-side filtering.
type Payload struct {
	OwnerID    string      `json:"owner_id"`
	Type       memory.Type `json:"type"`
	Importance float64     `json:"importance"`
	CreatedAt  time.Time   `json:"created_at"`
}

type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
