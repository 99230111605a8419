package retriever

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

	// Timeout bounds each external fan-out (embedding, index search,
	// bucket queries). A timeout is a provider/index failure, never an
	// indefinite block.
	Timeout time.Duration

	// ImportanceBand is the width within which two memories are treated
	// as equally important and recency decides between them.
	ImportanceBand float64

	// MinContextImportance is the floor for the recent-important bucket
	// of dialogue context.
	MinContextImportance float64

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

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

func WithImportanceBand(band float64) Option {
	return func(o *Options) {
		o.ImportanceBand = band
	}
}

func WithMinContextImportance(min float64) Option {
	return func(o *Options) {
		o.MinContextImportance = min
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Timeout:              2 * time.Second,
		ImportanceBand:       0.2,
		MinContextImportance: 0.5,
		Context:              context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
