package retriever

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/store"
)

// Result is a memory with the similarity score the index assigned to it.
// Fallback results carry a zero score.
type Result struct {
	memory.Memory
	SimilarityScore float64 `json:"similarityScore"`
}

// Engine blends the authoritative store and the derived index into ranked,
// deduplicated result sets. Both operations are read-only and idempotent.
type Engine struct {
	options Options
}

// SearchMemories embeds the query, searches the index, and hydrates full
// records from the store. If embedding or the index fails or times out, it
// degrades to the store's importance/recency ordering instead of failing;
// the second return value reports that degradation.
func (e *Engine) SearchMemories(ctx context.Context, ownerId string, query string, limit int) ([]Result, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.options.Timeout)
	defer cancel()

	vec, err := e.options.Embedder.Embed(callCtx, query)
	if err != nil {
		perr := memory.ProviderError{Op: "embed", Err: err}
		slog.WarnContext(ctx, "falling back to store-only retrieval", "owner", ownerId, "error", perr)
		return e.fallback(ctx, ownerId, limit)
	}

	hits, err := e.options.Index.Search(callCtx, ownerId, vec, limit, 0)
	if err != nil {
		ierr := memory.IndexError{Op: "search", Err: err}
		slog.WarnContext(ctx, "falling back to store-only retrieval", "owner", ownerId, "error", ierr)
		return e.fallback(ctx, ownerId, limit)
	}

	if len(hits) == 0 {
		return []Result{}, false, nil
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
		scores[hit.ID] = hit.Score
	}

	records, err := e.options.Store.Get(callCtx, ownerId, ids)
	if err != nil {
		return nil, false, memory.StorageError{Op: "get", Err: err}
	}

	results := make([]Result, 0, len(records))
	for _, m := range records {
		results = append(results, Result{
			Memory:          m,
			SimilarityScore: scores[m.ID],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	return results, false, nil
}

// ContextForDialogue blends recent-important memories with semantically
// relevant ones. The two buckets run concurrently; if the semantic bucket
// fails or times out, the recency bucket alone is returned in degraded mode.
func (e *Engine) ContextForDialogue(ctx context.Context, ownerId string, eventText string, limit int) ([]memory.Memory, bool, error) {
	if limit < 1 {
		limit = 10
	}

	half := (limit + 1) / 2

	var wg sync.WaitGroup

	var bucketA []memory.Memory
	var errA error

	var bucketB []Result
	var degradedB bool
	var errB error

	wg.Add(2)

	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
		bucketA, errA = e.options.Store.List(
			callCtx,
			ownerId,
			store.WithListLimit(half),
			store.WithMinImportance(e.options.MinContextImportance),
			store.WithOrderByCreated(),
		)
	}()

	go func() {
		defer wg.Done()
		bucketB, degradedB, errB = e.SearchMemories(ctx, ownerId, eventText, half)
	}()

	wg.Wait()

	if errA != nil {
		return nil, false, memory.StorageError{Op: "list", Err: errA}
	}

	degraded := degradedB
	if errB != nil {
		slog.WarnContext(ctx, "dropping semantic bucket from dialogue context", "owner", ownerId, "error", errB)
		degraded = true
		bucketB = nil
	}

	// recent-important wins duplicate ids; a recency hit is more reliably
	// contextual than a similarity guess
	seen := make(map[string]bool, len(bucketA)+len(bucketB))
	merged := make([]memory.Memory, 0, len(bucketA)+len(bucketB))

	for _, m := range bucketA {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}

	for _, r := range bucketB {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		merged = append(merged, r.Memory)
	}

	e.rank(merged)

	if len(merged) > limit {
		merged = merged[:limit]
	}

	return merged, degraded, nil
}

// rank orders by banded importance: outside the band the weightier memory
// wins, inside it the two count as equals and freshness decides.
func (e *Engine) rank(memories []memory.Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		diff := memories[i].Importance - memories[j].Importance
		if math.Abs(diff) > e.options.ImportanceBand {
			return diff > 0
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
}

func (e *Engine) fallback(ctx context.Context, ownerId string, limit int) ([]Result, bool, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.options.Timeout)
	defer cancel()

	records, err := e.options.Store.List(callCtx, ownerId, store.WithListLimit(limit))
	if err != nil {
		return nil, true, memory.StorageError{Op: "list", Err: err}
	}

	results := make([]Result, 0, len(records))
	for _, m := range records {
		results = append(results, Result{Memory: m})
	}

	return results, true, nil
}

func NewEngine(opts ...Option) *Engine {
	options := NewOptions(opts...)

	if options.Store == nil || options.Index == nil || options.Embedder == nil {
		panic("missing store, index, or embedder for retrieval engine")
	}

	return &Engine{
		options: options,
	}
}
