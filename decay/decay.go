package decay

import (
	"context"
	"log/slog"
	"time"

	"github.com/w-h-a/companion/index"
	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/store"
)

// Manager ages down importance, purges low-value memories, and reconciles
// the derived index with the authoritative store. Every pass acts record by
// record with no global lock, so it is safe to run alongside live traffic
// and safe to restart mid-batch.
type Manager struct {
	options Options
}

// DecayOldMemories applies one geometric decay step toward the floor for
// every memory of this owner older than the configured age.
func (m *Manager) DecayOldMemories(ctx context.Context, ownerId string) (int64, error) {
	olderThan := time.Now().UTC().AddDate(0, 0, -m.options.DaysOld)

	count, err := m.options.Store.Decay(ctx, ownerId, olderThan, m.options.Factor, m.options.Floor)
	if err != nil {
		return 0, memory.StorageError{Op: "decay", Err: err}
	}

	return count, nil
}

// Cleanup deletes memories below the importance threshold (and, when a max
// age is given, older than it), then best-effort removes the same ids from
// the index. The store stays authoritative: an index failure leaves orphaned
// vectors for the reconciliation sweep, it never rolls back the deletion.
func (m *Manager) Cleanup(ctx context.Context, ownerId string, opts ...CleanupOption) (int, error) {
	options := NewCleanupOptions(opts...)

	deleteOpts := []store.DeleteOption{
		store.WithDeleteMinImportance(options.MinImportance),
	}
	if options.MaxAge > 0 {
		deleteOpts = append(deleteOpts, store.WithDeleteMaxAge(options.MaxAge))
	}

	ids, err := m.options.Store.DeleteMany(ctx, ownerId, deleteOpts...)
	if err != nil {
		return 0, memory.StorageError{Op: "delete", Err: err}
	}

	if len(ids) == 0 {
		return 0, nil
	}

	if err := m.options.Index.Delete(ctx, ids); err != nil {
		ierr := memory.IndexError{Op: "delete", Err: err}
		slog.WarnContext(ctx, "leaving orphaned vectors for reconciliation", "owner", ownerId, "count", len(ids), "error", ierr)
	}

	return len(ids), nil
}

// Reindex re-embeds and re-upserts every memory of this owner. Upserts are
// idempotent by id, so rerunning is harmless; this is how records that were
// created while the index or provider was down get their vectors back.
func (m *Manager) Reindex(ctx context.Context, ownerId string) (int, error) {
	var indexed int

	for offset := 0; ; offset += m.options.ReindexBatch {
		batch, err := m.options.Store.List(
			ctx,
			ownerId,
			store.WithListLimit(m.options.ReindexBatch),
			store.WithListOffset(offset),
		)
		if err != nil {
			return indexed, memory.StorageError{Op: "list", Err: err}
		}

		if len(batch) == 0 {
			return indexed, nil
		}

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
		}

		vectors, err := m.options.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, memory.ProviderError{Op: "embedBatch", Err: err}
		}

		for i, rec := range batch {
			err := m.options.Index.Upsert(ctx, rec.ID, vectors[i], index.Payload{
				OwnerID:    rec.OwnerID,
				Type:       rec.Type,
				Importance: rec.Importance,
				CreatedAt:  rec.CreatedAt,
			})
			if err != nil {
				return indexed, memory.IndexError{Op: "upsert", Err: err}
			}
			indexed++
		}

		if len(batch) < m.options.ReindexBatch {
			return indexed, nil
		}
	}
}

// Run loops the decay, cleanup, and reconciliation passes over every owner
// on the given interval until the context is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	owners, err := m.options.Store.Owners(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to enumerate owners for sweep", "error", err)
		return
	}

	for _, owner := range owners {
		if decayed, err := m.DecayOldMemories(ctx, owner); err != nil {
			slog.ErrorContext(ctx, "decay pass failed", "owner", owner, "error", err)
		} else if decayed > 0 {
			slog.InfoContext(ctx, "decayed memories", "owner", owner, "count", decayed)
		}

		if removed, err := m.Cleanup(ctx, owner, WithCleanupThreshold(m.options.CleanupMinImportance)); err != nil {
			slog.ErrorContext(ctx, "cleanup pass failed", "owner", owner, "error", err)
		} else if removed > 0 {
			slog.InfoContext(ctx, "cleaned up memories", "owner", owner, "count", removed)
		}

		if _, err := m.Reindex(ctx, owner); err != nil {
			slog.ErrorContext(ctx, "reindex pass failed", "owner", owner, "error", err)
		}
	}
}

func NewManager(opts ...Option) *Manager {
	options := NewOptions(opts...)

	if options.Store == nil || options.Index == nil || options.Embedder == nil {
		panic("missing store, index, or embedder for decay manager")
	}

	return &Manager{
		options: options,
	}
}
