package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/store"
)

// memoryStore keeps records in process. Good enough for local development
// and tests; not durable.
type memoryStore struct {
	options store.Options
	records map[string]memory.Memory
	mtx     sync.RWMutex
}

func (s *memoryStore) Insert(ctx context.Context, m memory.Memory) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.records[m.ID] = m

	return nil
}

func (s *memoryStore) Get(ctx context.Context, ownerId string, ids []string) ([]memory.Memory, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var memories []memory.Memory

	for _, id := range ids {
		if m, exists := s.records[id]; exists && m.OwnerID == ownerId {
			memories = append(memories, m)
		}
	}

	return memories, nil
}

func (s *memoryStore) List(ctx context.Context, ownerId string, opts ...store.ListOption) ([]memory.Memory, error) {
	options := store.NewListOptions(opts...)

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]memory.Memory, 0, len(s.records))

	for _, m := range s.records {
		if m.OwnerID != ownerId {
			continue
		}
		if len(options.Type) > 0 && m.Type != options.Type {
			continue
		}
		if options.MinImportance > 0 && m.Importance < options.MinImportance {
			continue
		}
		candidates = append(candidates, m)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if options.OrderByCreated {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		if candidates[i].Importance != candidates[j].Importance {
			return candidates[i].Importance > candidates[j].Importance
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	if options.Offset >= len(candidates) {
		return nil, nil
	}
	candidates = candidates[options.Offset:]

	if len(candidates) > options.Limit {
		candidates = candidates[:options.Limit]
	}

	return candidates, nil
}

func (s *memoryStore) UpdateImportance(ctx context.Context, id string, importance float64) (memory.Memory, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	m, exists := s.records[id]
	if !exists {
		return memory.Memory{}, memory.ErrNotFound
	}

	m.Importance = importance
	s.records[id] = m

	return m, nil
}

func (s *memoryStore) DeleteMany(ctx context.Context, ownerId string, opts ...store.DeleteOption) ([]string, error) {
	options := store.NewDeleteOptions(opts...)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	cutoff := time.Time{}
	if options.MaxAge > 0 {
		cutoff = time.Now().UTC().Add(-options.MaxAge)
	}

	var deleted []string

	for id, m := range s.records {
		if m.OwnerID != ownerId {
			continue
		}
		if m.Importance >= options.MinImportance {
			continue
		}
		if !cutoff.IsZero() && !m.CreatedAt.Before(cutoff) {
			continue
		}
		delete(s.records, id)
		deleted = append(deleted, id)
	}

	return deleted, nil
}

func (s *memoryStore) Decay(ctx context.Context, ownerId string, olderThan time.Time, factor, floor float64) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var count int64

	for id, m := range s.records {
		if m.OwnerID != ownerId {
			continue
		}
		if !m.CreatedAt.Before(olderThan) {
			continue
		}
		if m.Importance <= floor {
			continue
		}
		decayed := m.Importance * factor
		if decayed < floor {
			decayed = floor
		}
		m.Importance = decayed
		s.records[id] = m
		count++
	}

	return count, nil
}

func (s *memoryStore) Owners(ctx context.Context) ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	seen := map[string]struct{}{}
	var owners []string

	for _, m := range s.records {
		if _, exists := seen[m.OwnerID]; exists {
			continue
		}
		seen[m.OwnerID] = struct{}{}
		owners = append(owners, m.OwnerID)
	}

	sort.Strings(owners)

	return owners, nil
}

func NewStore(opts ...store.Option) store.Store {
	options := store.NewOptions(opts...)

	return &memoryStore{
		options: options,
		records: map[string]memory.Memory{},
		mtx:     sync.RWMutex{},
	}
}
