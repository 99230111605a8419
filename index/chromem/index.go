package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/w-h-a/companion/index"
	"github.com/w-h-a/companion/memory"
)

// chromemIndex is an embedded, pure-Go index. Each owner gets their own
// collection so scoping is enforced by the index itself, not by callers.
type chromemIndex struct {
	options     index.Options
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mtx         sync.RWMutex
}

func (c *chromemIndex) collection(ownerId string) (*chromem.Collection, error) {
	c.mtx.RLock()
	col, exists := c.collections[ownerId]
	c.mtx.RUnlock()

	if exists {
		return col, nil
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if col, exists := c.collections[ownerId]; exists {
		return col, nil
	}

	col, err := c.db.CreateCollection(
		fmt.Sprintf("owner_%s", ownerId),
		nil,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	c.collections[ownerId] = col

	return col, nil
}

func (c *chromemIndex) Upsert(ctx context.Context, id string, vector []float32, payload index.Payload) error {
	col, err := c.collection(payload.OwnerID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: vector,
		Metadata: map[string]string{
			"owner_id":   payload.OwnerID,
			"type":       string(payload.Type),
			"importance": strconv.FormatFloat(payload.Importance, 'f', -1, 64),
			"created_at": payload.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	return col.AddDocument(ctx, doc)
}

func (c *chromemIndex) Search(ctx context.Context, ownerId string, vector []float32, limit int, minImportance float64) ([]index.Hit, error) {
	if limit < 1 {
		return nil, nil
	}

	col, err := c.collection(ownerId)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, map[string]string{"owner_id": ownerId}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]index.Hit, 0, len(results))

	for _, result := range results {
		importance, _ := strconv.ParseFloat(result.Metadata["importance"], 64)
		if importance < minImportance {
			continue
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])

		hits = append(hits, index.Hit{
			ID:    result.ID,
			Score: float64(result.Similarity),
			Payload: index.Payload{
				OwnerID:    result.Metadata["owner_id"],
				Type:       memory.Type(result.Metadata["type"]),
				Importance: importance,
				CreatedAt:  createdAt,
			},
		})
	}

	return hits, nil
}

func (c *chromemIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	for _, col := range c.collections {
		if err := col.Delete(ctx, nil, nil, ids...); err != nil {
			return err
		}
	}

	return nil
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	return &chromemIndex{
		options:     options,
		db:          chromem.NewDB(),
		collections: map[string]*chromem.Collection{},
		mtx:         sync.RWMutex{},
	}
}
