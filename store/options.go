package store

import (
	"context"
	"time"

	"github.com/w-h-a/companion/memory"
)

type Option func(*Options)

type Options struct {
	Location string
	Context  context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type ListOption func(*ListOptions)

type ListOptions struct {
	Limit          int
	Offset         int
	Type           memory.Type
	MinImportance  float64
	OrderByCreated bool
}

func WithListLimit(limit int) ListOption {
	return func(o *ListOptions) {
		o.Limit = limit
	}
}

func WithListOffset(offset int) ListOption {
	return func(o *ListOptions) {
		o.Offset = offset
	}
}

func WithListType(t memory.Type) ListOption {
	return func(o *ListOptions) {
		o.Type = t
	}
}

func WithMinImportance(min float64) ListOption {
	return func(o *ListOptions) {
		o.MinImportance = min
	}
}

// WithOrderByCreated orders purely by recency instead of the default
// importance-then-recency ordering.
func WithOrderByCreated() ListOption {
	return func(o *ListOptions) {
		o.OrderByCreated = true
	}
}

func NewListOptions(opts ...ListOption) ListOptions {
	options := ListOptions{
		Limit: 20,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Limit < 1 {
		options.Limit = 20
	}
	if options.Limit > MaxListLimit {
		options.Limit = MaxListLimit
	}
	if options.Offset < 0 {
		options.Offset = 0
	}
	return options
}

type DeleteOption func(*DeleteOptions)

type DeleteOptions struct {
	MaxAge        time.Duration
	MinImportance float64
}

func WithDeleteMaxAge(age time.Duration) DeleteOption {
	return func(o *DeleteOptions) {
		o.MaxAge = age
	}
}

func WithDeleteMinImportance(min float64) DeleteOption {
	return func(o *DeleteOptions) {
		o.MinImportance = min
	}
}

func NewDeleteOptions(opts ...DeleteOption) DeleteOptions {
	options := DeleteOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
