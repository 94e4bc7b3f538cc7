// Package listing implements cursor-based pagination over collections ordered
// newest-first by creation time.
package listing

import (
	"context"
	"errors"
	"time"
)

// SortField is the fixed sort key of every listed collection. Items are
// ordered by SortField descending, ties broken by id descending.
const SortField = "created_at"

var (
	ErrCursorNotFound    = errors.New("cursor item not found")
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrUnavailable       = errors.New("listing unavailable")
)

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// ParseDirection maps an empty string to Forward.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Forward:
		return Forward, nil
	case Backward:
		return Backward, nil
	}
	return "", errors.New("direction must be forward or backward")
}

type Query struct {
	Filters   []Filter
	Cursor    string
	Direction Direction
	PageSize  int
}

type Page[T any] struct {
	Items       []T    `json:"items"`
	FirstCursor string `json:"first_cursor,omitempty"`
	LastCursor  string `json:"last_cursor,omitempty"`
	// HasMore is false when the page came back short, meaning there is
	// nothing further in the requested direction.
	HasMore bool `json:"has_more"`
}

// Anchor is the position of a cursor item in the sort order.
type Anchor struct {
	CreatedAt time.Time
	ID        string
}

// Plan is what a Collection executes. When After is set the collection
// returns items strictly after it: in natural (newest-first) order, or, with
// Reverse, in oldest-first order starting right before the anchor.
type Plan struct {
	Filters []Filter
	After   *Anchor
	Reverse bool
	Limit   int
}

// Collection is an ordered store of T that can be queried by Plan.
type Collection[T any] interface {
	// Anchor resolves an item id. It returns ErrCursorNotFound when the item
	// no longer exists.
	Anchor(ctx context.Context, id string) (Anchor, error)
	Find(ctx context.Context, plan Plan) ([]T, error)
	Key(item T) string
}

// Before reports whether a sorts ahead of b in natural order.
func (a Anchor) Before(b Anchor) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
