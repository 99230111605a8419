package memories

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/companion/decay"
	"github.com/w-h-a/companion/index"
	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/retriever"
	"github.com/w-h-a/companion/store"
)

// Service is what the dialogue, emotion, and API layers talk to. It owns
// validation, importance scoring, and the write path's best-effort indexing;
// retrieval and batch maintenance are delegated.
type Service struct {
	options Options
}

// Create scores and persists a new memory. The insert is synchronous and
// authoritative; embedding and indexing are best-effort and never fail the
// request.
func (s *Service) Create(ctx context.Context, ownerId string, typ string, content string, emotion string, eventCtx memory.Context) (memory.Memory, error) {
	t, known := memory.ParseType(typ)
	if !known {
		return memory.Memory{}, memory.ValidationError{Field: "type", Reason: "unknown memory type"}
	}

	m := memory.Memory{
		ID:         uuid.New().String(),
		OwnerID:    strings.TrimSpace(ownerId),
		Type:       t,
		Content:    strings.TrimSpace(content),
		Emotion:    strings.TrimSpace(strings.ToLower(emotion)),
		Importance: memory.Score(t, strings.TrimSpace(strings.ToLower(emotion)), eventCtx),
		Context:    eventCtx,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.Validate(); err != nil {
		return memory.Memory{}, err
	}

	if err := s.options.Store.Insert(ctx, m); err != nil {
		return memory.Memory{}, memory.StorageError{Op: "insert", Err: err}
	}

	if s.options.SyncIndexing {
		s.indexMemory(ctx, m)
	} else {
		go s.indexMemory(context.WithoutCancel(ctx), m)
	}

	return m, nil
}

// indexMemory is the best-effort half of the write path. Failures are
// logged and absorbed; the reconciliation sweep picks up whatever is missed.
func (s *Service) indexMemory(ctx context.Context, m memory.Memory) {
	ctx, cancel := context.WithTimeout(ctx, s.options.IndexTimeout)
	defer cancel()

	vec, err := s.options.Embedder.Embed(ctx, m.Content)
	if err != nil {
		perr := memory.ProviderError{Op: "embed", Err: err}
		slog.WarnContext(ctx, "memory created without vector", "memory", m.ID, "owner", m.OwnerID, "error", perr)
		return
	}

	err = s.options.Index.Upsert(ctx, m.ID, vec, index.Payload{
		OwnerID:    m.OwnerID,
		Type:       m.Type,
		Importance: m.Importance,
		CreatedAt:  m.CreatedAt,
	})
	if err != nil {
		ierr := memory.IndexError{Op: "upsert", Err: err}
		slog.WarnContext(ctx, "memory created without vector", "memory", m.ID, "owner", m.OwnerID, "error", ierr)
	}
}

func (s *Service) List(ctx context.Context, ownerId string, limit, offset int, typ string) ([]memory.Memory, error) {
	if len(strings.TrimSpace(ownerId)) == 0 {
		return nil, memory.ValidationError{Field: "ownerId", Reason: "is required"}
	}

	opts := []store.ListOption{
		store.WithListLimit(limit),
		store.WithListOffset(offset),
	}

	if len(strings.TrimSpace(typ)) > 0 {
		t, known := memory.ParseType(typ)
		if !known {
			return nil, memory.ValidationError{Field: "type", Reason: "unknown memory type"}
		}
		opts = append(opts, store.WithListType(t))
	}

	memories, err := s.options.Store.List(ctx, ownerId, opts...)
	if err != nil {
		return nil, memory.StorageError{Op: "list", Err: err}
	}

	return memories, nil
}

func (s *Service) Search(ctx context.Context, ownerId string, query string, limit int) ([]retriever.Result, bool, error) {
	if len(strings.TrimSpace(ownerId)) == 0 {
		return nil, false, memory.ValidationError{Field: "ownerId", Reason: "is required"}
	}
	if len(strings.TrimSpace(query)) == 0 {
		return nil, false, memory.ValidationError{Field: "query", Reason: "is required"}
	}
	if limit < 1 || limit > store.MaxListLimit {
		limit = 10
	}

	return s.options.Engine.SearchMemories(ctx, ownerId, query, limit)
}

func (s *Service) Context(ctx context.Context, ownerId string, currentEvent string, limit int) ([]memory.Memory, bool, error) {
	if len(strings.TrimSpace(ownerId)) == 0 {
		return nil, false, memory.ValidationError{Field: "ownerId", Reason: "is required"}
	}
	if len(strings.TrimSpace(currentEvent)) == 0 {
		return nil, false, memory.ValidationError{Field: "currentEvent", Reason: "is required"}
	}

	return s.options.Engine.ContextForDialogue(ctx, ownerId, currentEvent, limit)
}

// UpdateImportance sets a memory's importance directly and best-effort
// refreshes the indexed copy so server-side filters see the new weight.
func (s *Service) UpdateImportance(ctx context.Context, id string, importance float64) (memory.Memory, error) {
	if importance < 0 || importance > 1 {
		return memory.Memory{}, memory.ValidationError{Field: "importance", Reason: "must be between 0 and 1"}
	}

	m, err := s.options.Store.UpdateImportance(ctx, id, importance)
	if errors.Is(err, memory.ErrNotFound) {
		return memory.Memory{}, err
	}
	if err != nil {
		return memory.Memory{}, memory.StorageError{Op: "update", Err: err}
	}

	if s.options.SyncIndexing {
		s.indexMemory(ctx, m)
	} else {
		go s.indexMemory(context.WithoutCancel(ctx), m)
	}

	return m, nil
}

func (s *Service) Cleanup(ctx context.Context, ownerId string, maxAge time.Duration, minImportance float64) (int, error) {
	if len(strings.TrimSpace(ownerId)) == 0 {
		return 0, memory.ValidationError{Field: "ownerId", Reason: "is required"}
	}

	opts := []decay.CleanupOption{
		decay.WithCleanupThreshold(minImportance),
	}
	if maxAge > 0 {
		opts = append(opts, decay.WithCleanupMaxAge(maxAge))
	}

	return s.options.Janitor.Cleanup(ctx, ownerId, opts...)
}

func New(opts ...Option) *Service {
	options := NewOptions(opts...)

	if options.Store == nil ||
		options.Index == nil ||
		options.Embedder == nil ||
		options.Engine == nil ||
		options.Janitor == nil {
		panic("missing dependencies for memories service")
	}

	return &Service{
		options: options,
	}
}
