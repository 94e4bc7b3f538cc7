package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Engine fetches pages from a Collection. It keeps no state between calls
// and is safe for concurrent use.
type Engine[T any] struct {
	coll        Collection[T]
	defaultSize int
	maxSize     int
	logger      *zap.Logger
}

type Option func(*options)

type options struct {
	defaultSize int
	maxSize     int
	logger      *zap.Logger
}

func WithPageSizes(defaultSize, maxSize int) Option {
	return func(o *options) {
		if defaultSize > 0 {
			o.defaultSize = defaultSize
		}
		if maxSize > 0 {
			o.maxSize = maxSize
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewEngine[T any](coll Collection[T], opts ...Option) *Engine[T] {
	o := options{defaultSize: DefaultPageSize, maxSize: MaxPageSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultSize > o.maxSize {
		o.defaultSize = o.maxSize
	}
	return &Engine[T]{
		coll:        coll,
		defaultSize: o.defaultSize,
		maxSize:     o.maxSize,
		logger:      o.logger,
	}
}

// FetchPage returns one page of items. Invalid filters and directions are
// returned as errors wrapping ErrUnsupportedFilter. Backend failures return
// an empty page and an error wrapping ErrUnavailable. A cursor whose item has
// been deleted restarts the listing from the beginning.
func (e *Engine[T]) FetchPage(ctx context.Context, q Query) (Page[T], error) {
	empty := Page[T]{Items: []T{}}

	dir, err := ParseDirection(string(q.Direction))
	if err != nil {
		return empty, fmt.Errorf("%w: %w", ErrUnsupportedFilter, err)
	}
	if err := Validate(q.Filters); err != nil {
		return empty, err
	}
	size := e.pageSize(q.PageSize)

	plan := Plan{Filters: q.Filters, Limit: size}
	if q.Cursor != "" {
		anchor, err := e.coll.Anchor(ctx, q.Cursor)
		switch {
		case err == nil:
			plan.After = &anchor
			plan.Reverse = dir == Backward
		case errors.Is(err, ErrCursorNotFound):
			e.logger.Debug("stale cursor, restarting from the beginning", zap.String("cursor", q.Cursor))
		default:
			e.logger.Warn("cursor lookup failed", zap.String("cursor", q.Cursor), zap.Error(err))
			return empty, fmt.Errorf("%w: resolve cursor: %w", ErrUnavailable, err)
		}
	}

	items, err := e.coll.Find(ctx, plan)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFilter) {
			return empty, err
		}
		e.logger.Warn("page query failed", zap.Error(err))
		return empty, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(items) > size {
		items = items[:size]
	}
	if plan.Reverse {
		slices.Reverse(items)
	}
	if items == nil {
		items = []T{}
	}

	page := Page[T]{Items: items, HasMore: len(items) == size}
	if len(items) > 0 {
		page.FirstCursor = e.coll.Key(items[0])
		page.LastCursor = e.coll.Key(items[len(items)-1])
	}
	return page, nil
}

func (e *Engine[T]) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return e.defaultSize
	case requested > e.maxSize:
		return e.maxSize
	}
	return requested
}
