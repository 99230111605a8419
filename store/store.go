package store

import (
	"context"
	"time"

	"github.com/w-h-a/companion/memory"
)

// Store is the authoritative, owner-scoped home of memory records. The
// vector index is a derived copy; this is the source of truth.
type Store interface {
	Insert(ctx context.Context, m memory.Memory) error
	Get(ctx context.Context, ownerId string, ids []string) ([]memory.Memory, error)
	List(ctx context.Context, ownerId string, opts ...ListOption) ([]memory.Memory, error)
	UpdateImportance(ctx context.Context, id string, importance float64) (memory.Memory, error)
	DeleteMany(ctx context.Context, ownerId string, opts ...DeleteOption) ([]string, error)
	Decay(ctx context.Context, ownerId string, olderThan time.Time, factor, floor float64) (int64, error)
	Owners(ctx context.Context) ([]string, error)
}

// MaxListLimit is the server-side clamp applied to every List call.
const MaxListLimit = 100
