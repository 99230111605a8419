package memories

import (
	"context"
	"time"

	"github.com/w-h-a/companion/decay"
	"github.com/w-h-a/companion/embedder"
	"github.com/w-h-a/companion/index"
	"github.com/w-h-a/companion/retriever"
	"github.com/w-h-a/companion/store"
)

type Option func(*Options)

type Options struct {
	Store    store.Store
	Index    index.Index
	Embedder embedder.Embedder
	Engine   *retriever.Engine
	Janitor  *decay.Manager

	// IndexTimeout bounds the best-effort embed+upsert that follows a
	// successful insert.
	IndexTimeout time.Duration

	// SyncIndexing runs the best-effort indexing inline instead of in a
	// background goroutine. Its failure still never fails the request.
	SyncIndexing bool

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

func WithEngine(e *retriever.Engine) Option {
	return func(o *Options) {
		o.Engine = e
	}
}

func WithJanitor(j *decay.Manager) Option {
	return func(o *Options) {
		o.Janitor = j
	}
}

func WithIndexTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.IndexTimeout = timeout
	}
}

func WithSyncIndexing() Option {
	return func(o *Options) {
		o.SyncIndexing = true
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		IndexTimeout: 10 * time.Second,
		Context:      context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
