package listing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// FieldFunc returns the value of a named field of an item, or false when the
// item has no such field.
type FieldFunc[T any] func(item T, field string) (any, bool)

// MemoryCollection is a Collection held in process memory.
type MemoryCollection[T any] struct {
	mu        sync.RWMutex
	items     map[string]T
	key       func(T) string
	createdAt func(T) time.Time
	field     FieldFunc[T]
}

func NewMemoryCollection[T any](key func(T) string, createdAt func(T) time.Time, field FieldFunc[T]) *MemoryCollection[T] {
	return &MemoryCollection[T]{
		items:     make(map[string]T),
		key:       key,
		createdAt: createdAt,
		field:     field,
	}
}

// Put inserts or replaces items by key.
func (m *MemoryCollection[T]) Put(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[m.key(it)] = it
	}
}

func (m *MemoryCollection[T]) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

func (m *MemoryCollection[T]) Get(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	return it, ok
}

func (m *MemoryCollection[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCollection[T]) Key(item T) string {
	return m.key(item)
}

func (m *MemoryCollection[T]) Anchor(ctx context.Context, id string) (Anchor, error) {
	if err := ctx.Err(); err != nil {
		return Anchor{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return Anchor{}, ErrCursorNotFound
	}
	return m.anchorOf(it), nil
}

func (m *MemoryCollection[T]) Find(ctx context.Context, plan Plan) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	all := make([]T, 0, len(m.items))
	for _, it := range m.items {
		all = append(all, it)
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b T) int {
		aa, ba := m.anchorOf(a), m.anchorOf(b)
		switch {
		case aa.Before(ba):
			return -1
		case ba.Before(aa):
			return 1
		}
		return 0
	})
	if plan.Reverse {
		slices.Reverse(all)
	}

	out := make([]T, 0, plan.Limit)
	for _, it := range all {
		if plan.Limit > 0 && len(out) == plan.Limit {
			break
		}
		if plan.After != nil && !m.isAfter(it, *plan.After, plan.Reverse) {
			continue
		}
		ok, err := m.matches(it, plan.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *MemoryCollection[T]) anchorOf(it T) Anchor {
	return Anchor{CreatedAt: m.createdAt(it), ID: m.key(it)}
}

func (m *MemoryCollection[T]) isAfter(it T, anchor Anchor, reverse bool) bool {
	a := m.anchorOf(it)
	if reverse {
		return a.Before(anchor)
	}
	return anchor.Before(a)
}

func (m *MemoryCollection[T]) matches(it T, filters []Filter) (bool, error) {
	for _, f := range filters {
		var (
			v  any
			ok bool
		)
		if f.Field == SortField {
			v, ok = m.createdAt(it), true
		} else {
			v, ok = m.field(it, f.Field)
		}
		if !ok {
			return false, fmt.Errorf("%w: unknown field %s", ErrUnsupportedFilter, f.Field)
		}
		match, err := f.Matches(v)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}
