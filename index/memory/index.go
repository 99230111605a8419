package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w-h-a/companion/index"
)

type point struct {
	vector  []float32
	payload index.Payload
}

type memoryIndex struct {
	options index.Options
	points  map[string]point
	mtx     sync.RWMutex
}

func (s *memoryIndex) Upsert(ctx context.Context, id string, vector []float32, payload index.Payload) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	cpy := make([]float32, len(vector))
	copy(cpy, vector)

	s.points[id] = point{
		vector:  cpy,
		payload: payload,
	}

	return nil
}

func (s *memoryIndex) Search(ctx context.Context, ownerId string, vector []float32, limit int, minImportance float64) ([]index.Hit, error) {
	if limit < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var hits []index.Hit

	for id, pt := range s.points {
		if pt.payload.OwnerID != ownerId {
			continue
		}
		if pt.payload.Importance < minImportance {
			continue
		}
		hits = append(hits, index.Hit{
			ID:      id,
			Score:   index.CosineSimilarity(vector, pt.vector),
			Payload: pt.payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

func (s *memoryIndex) Delete(ctx context.Context, ids []string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		delete(s.points, id)
	}

	return nil
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	return &memoryIndex{
		options: options,
		points:  map[string]point{},
		mtx:     sync.RWMutex{},
	}
}
