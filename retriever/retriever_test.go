package retriever_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/companion/embedder"
	"github.com/w-h-a/companion/embedder/mock"
	"github.com/w-h-a/companion/index"
	memoryindex "github.com/w-h-a/companion/index/memory"
	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/retriever"
	"github.com/w-h-a/companion/store"
	memorystore "github.com/w-h-a/companion/store/memory"
)

type failingIndex struct{}

func (f *failingIndex) Upsert(ctx context.Context, id string, vector []float32, payload index.Payload) error {
	return errors.New("index unavailable")
}

func (f *failingIndex) Search(ctx context.Context, ownerId string, vector []float32, limit int, minImportance float64) ([]index.Hit, error) {
	return nil, errors.New("index unavailable")
}

func (f *failingIndex) Delete(ctx context.Context, ids []string) error {
	return errors.New("index unavailable")
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func seed(t *testing.T, st store.Store, ownerId string, content string, importance float64, age time.Duration) memory.Memory {
	t.Helper()

	m := memory.Memory{
		ID:         uuid.New().String(),
		OwnerID:    ownerId,
		Type:       memory.TypeEvent,
		Content:    content,
		Importance: importance,
		CreatedAt:  time.Now().UTC().Add(-age),
	}

	if err := st.Insert(context.Background(), m); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	return m
}

func indexOf(t *testing.T, idx index.Index, emb embedder.Embedder, m memory.Memory) {
	t.Helper()

	vec, err := emb.Embed(context.Background(), m.Content)
	if err != nil {
		t.Fatalf("failed to embed: %v", err)
	}

	err = idx.Upsert(context.Background(), m.ID, vec, index.Payload{
		OwnerID:    m.OwnerID,
		Type:       m.Type,
		Importance: m.Importance,
		CreatedAt:  m.CreatedAt,
	})
	if err != nil {
		t.Fatalf("failed to index: %v", err)
	}
}

func TestSearchMemoriesRanksBySimilarity(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()
	idx := memoryindex.NewIndex()
	emb := mock.NewEmbedder(64)

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(idx),
		retriever.WithEmbedder(emb),
	)

	dragon := seed(t, st, "player-1", "slew the elder dragon", 0.9, 0)
	fishing := seed(t, st, "player-1", "went fishing at dawn", 0.5, 0)
	indexOf(t, idx, emb, dragon)
	indexOf(t, idx, emb, fishing)

	results, degraded, err := engine.SearchMemories(ctx, "player-1", "slew the elder dragon", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if degraded {
		t.Error("expected a healthy search, got degraded")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != dragon.ID {
		t.Errorf("expected the exact-match memory first, got %q", results[0].Content)
	}
	if results[0].SimilarityScore < results[1].SimilarityScore {
		t.Error("results not sorted by similarity")
	}
}

func TestSearchMemoriesEmptyIndexReturnsEmpty(t *testing.T) {
	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(memoryindex.NewIndex()),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	seed(t, st, "player-1", "something happened", 0.6, 0)

	results, degraded, err := engine.SearchMemories(context.Background(), "player-1", "anything", 5)
	if err != nil {
		t.Fatalf("expected no error for an empty index, got %v", err)
	}
	if degraded {
		t.Error("an empty index is not a failure")
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchMemoriesFallsBackWhenIndexIsDown(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(&failingIndex{}),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	seed(t, st, "player-1", "low", 0.2, time.Hour)
	seed(t, st, "player-1", "high", 0.9, time.Hour)
	seed(t, st, "player-1", "mid", 0.5, time.Hour)

	results, degraded, err := engine.SearchMemories(ctx, "player-1", "anything", 10)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if !degraded {
		t.Error("expected the response to be marked degraded")
	}

	listed, err := st.List(ctx, "player-1", store.WithListLimit(10))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(results) != len(listed) {
		t.Fatalf("fallback returned %d results, list returned %d", len(results), len(listed))
	}
	for i := range results {
		if results[i].ID != listed[i].ID {
			t.Errorf("fallback order diverged from list order at %d", i)
		}
	}
}

func TestSearchMemoriesFallsBackWhenEmbeddingFails(t *testing.T) {
	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(memoryindex.NewIndex()),
		retriever.WithEmbedder(&failingEmbedder{}),
	)

	seed(t, st, "player-1", "the one memory", 0.8, 0)

	results, degraded, err := engine.SearchMemories(context.Background(), "player-1", "anything", 5)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if !degraded {
		t.Error("expected degraded mode on provider failure")
	}
	if len(results) != 1 {
		t.Errorf("expected the store's record, got %d results", len(results))
	}
}

func TestSearchMemoriesIsOwnerScoped(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()
	idx := memoryindex.NewIndex()
	emb := mock.NewEmbedder(64)

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(idx),
		retriever.WithEmbedder(emb),
	)

	mine := seed(t, st, "player-1", "my secret victory", 0.9, 0)
	theirs := seed(t, st, "player-2", "their secret victory", 0.9, 0)
	indexOf(t, idx, emb, mine)
	indexOf(t, idx, emb, theirs)

	results, _, err := engine.SearchMemories(ctx, "player-1", "secret victory", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	for _, r := range results {
		if r.OwnerID != "player-1" {
			t.Fatalf("owner scoping violated: got a memory of %q", r.OwnerID)
		}
	}
}

func TestContextForDialogueNeverDuplicates(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()
	idx := memoryindex.NewIndex()
	emb := mock.NewEmbedder(64)

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(idx),
		retriever.WithEmbedder(emb),
	)

	// important, recent, and indexed: lands in both buckets
	m := seed(t, st, "player-1", "won the championship", 0.9, 0)
	indexOf(t, idx, emb, m)

	memories, degraded, err := engine.ContextForDialogue(ctx, "player-1", "won the championship", 10)
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if degraded {
		t.Error("expected a healthy blend")
	}

	seen := map[string]int{}
	for _, got := range memories {
		seen[got.ID]++
	}
	if seen[m.ID] != 1 {
		t.Errorf("expected exactly one occurrence of %s, got %d", m.ID, seen[m.ID])
	}
}

func TestContextForDialogueBandedRanking(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(memoryindex.NewIndex()),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	older := seed(t, st, "player-1", "older but weighty", 0.90, 10*24*time.Hour)
	fresher := seed(t, st, "player-1", "fresher and close in weight", 0.95, 0)

	memories, _, err := engine.ContextForDialogue(ctx, "player-1", "what just happened", 10)
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("expected both memories, got %d", len(memories))
	}

	// 0.05 apart is inside the band, so recency decides
	if memories[0].ID != fresher.ID || memories[1].ID != older.ID {
		t.Errorf("expected recency to break the tie: got %q then %q", memories[0].Content, memories[1].Content)
	}
}

func TestContextForDialogueImportanceDominates(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(memoryindex.NewIndex()),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	fresh := seed(t, st, "player-1", "fresh but minor", 0.50, 0)
	weighty := seed(t, st, "player-1", "old but major", 0.90, 10*24*time.Hour)

	memories, _, err := engine.ContextForDialogue(ctx, "player-1", "what just happened", 10)
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("expected both memories, got %d", len(memories))
	}

	// 0.4 apart is outside the band, so importance wins regardless of age
	if memories[0].ID != weighty.ID || memories[1].ID != fresh.ID {
		t.Errorf("expected importance to dominate: got %q then %q", memories[0].Content, memories[1].Content)
	}
}

func TestContextForDialogueDegradesWithoutIndex(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(&failingIndex{}),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	seed(t, st, "player-1", "still retrievable", 0.8, 0)

	memories, degraded, err := engine.ContextForDialogue(ctx, "player-1", "anything", 10)
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if !degraded {
		t.Error("expected the blend to be marked degraded")
	}
	if len(memories) != 1 {
		t.Errorf("expected the recency bucket to carry the result, got %d", len(memories))
	}
}

func TestContextForDialogueTruncatesToLimit(t *testing.T) {
	ctx := context.Background()

	st := memorystore.NewStore()

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(memoryindex.NewIndex()),
		retriever.WithEmbedder(mock.NewEmbedder(64)),
	)

	for i := 0; i < 8; i++ {
		seed(t, st, "player-1", "memory", 0.9, time.Duration(i)*time.Minute)
	}

	memories, _, err := engine.ContextForDialogue(ctx, "player-1", "anything", 4)
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if len(memories) > 4 {
		t.Errorf("expected at most 4 memories, got %d", len(memories))
	}
}
