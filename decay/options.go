package decay

import (
	"context"
	"time"

	"github.com/w-h-a/companion/embedder"
	"github.com/w-h-a/companion/index"
	"github.com/w-h-a/companion/store"
)

type Option func(*Options)

type Options struct {
	Store    store.Store
	Index    index.Index
	Embedder embedder.Embedder

	// DaysOld is the minimum age before a memory starts decaying.
	DaysOld int

	// Factor is the one-shot multiplier applied per decay pass. Repeated
	// passes on a schedule produce continuous geometric decay.
	Factor float64

	// Floor is the importance value decay never goes below.
	Floor float64

	// CleanupMinImportance is the threshold below which the periodic
	// sweep deletes memories outright.
	CleanupMinImportance float64

	// ReindexBatch is the page size for the reconciliation sweep.
	ReindexBatch int

	Context context.Context
}

func WithStore(s store.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

func WithIndex(i index.Index) Option {
	return func(o *Options) {
		o.Index = i
	}
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(o *Options) {
		o.Embedder = e
	}
}

func WithDaysOld(days int) Option {
	return func(o *Options) {
		o.DaysOld = days
	}
}

func WithFactor(factor float64) Option {
	return func(o *Options) {
		o.Factor = factor
	}
}

func WithFloor(floor float64) Option {
	return func(o *Options) {
		o.Floor = floor
	}
}

func WithCleanupMinImportance(min float64) Option {
	return func(o *Options) {
		o.CleanupMinImportance = min
	}
}

func WithReindexBatch(size int) Option {
	return func(o *Options) {
		o.ReindexBatch = size
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		DaysOld:              30,
		Factor:               0.8,
		Floor:                0.3,
		CleanupMinImportance: 0.3,
		ReindexBatch:         50,
		Context:              context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type CleanupOption func(*CleanupOptions)

type CleanupOptions struct {
	MaxAge        time.Duration
	MinImportance float64
}

func WithCleanupMaxAge(age time.Duration) CleanupOption {
	return func(o *CleanupOptions) {
		o.MaxAge = age
	}
}

func WithCleanupThreshold(min float64) CleanupOption {
	return func(o *CleanupOptions) {
		o.MinImportance = min
	}
}

func NewCleanupOptions(opts ...CleanupOption) CleanupOptions {
	options := CleanupOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
