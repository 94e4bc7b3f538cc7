package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const createdAtPath = "createdAt"

// Decoder turns a document into an item.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// Collection is a listing.Collection over one Firestore collection ordered by
// (createdAt, document id).
type Collection[T any] struct {
	Client *firestore.Client
	name   string
	fields map[string]string
	decode Decoder[T]
	key    func(T) string
}

// NewCollection maps listing field names to document paths through fields.
// listing.SortField always maps to createdAt.
func NewCollection[T any](client *firestore.Client, name string, fields map[string]string, decode Decoder[T], key func(T) string) *Collection[T] {
	paths := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		paths[k] = v
	}
	paths[listing.SortField] = createdAtPath
	return &Collection[T]{
		Client: client,
		name:   name,
		fields: paths,
		decode: decode,
		key:    key,
	}
}

func (c *Collection[T]) col() *firestore.CollectionRef {
	return c.Client.Collection(c.name)
}

func (c *Collection[T]) Key(item T) string {
	return c.key(item)
}

func (c *Collection[T]) Anchor(ctx context.Context, id string) (listing.Anchor, error) {
	snap, err := c.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return listing.Anchor{}, listing.ErrCursorNotFound
		}
		return listing.Anchor{}, fmt.Errorf("failed to resolve cursor %s: %w", id, err)
	}
	raw, err := snap.DataAt(createdAtPath)
	if err != nil {
		return listing.Anchor{}, fmt.Errorf("cursor %s has no %s: %w", id, createdAtPath, err)
	}
	createdAt, ok := raw.(time.Time)
	if !ok {
		return listing.Anchor{}, fmt.Errorf("cursor %s: %s is %T", id, createdAtPath, raw)
	}
	return listing.Anchor{CreatedAt: createdAt, ID: id}, nil
}

func (c *Collection[T]) Find(ctx context.Context, plan listing.Plan) ([]T, error) {
	clauses, err := whereClauses(plan.Filters, c.fields)
	if err != nil {
		return nil, err
	}

	q := c.col().Query
	for _, w := range clauses {
		q = q.Where(w.path, w.op, w.value)
	}
	dir := firestore.Desc
	if plan.Reverse {
		dir = firestore.Asc
	}
	q = q.OrderBy(createdAtPath, dir).OrderBy(firestore.DocumentID, dir)
	if plan.After != nil {
		q = q.StartAfter(plan.After.CreatedAt, plan.After.ID)
	}
	q = q.Limit(plan.Limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	items := make([]T, 0, plan.Limit)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
		}
		item, err := c.decode(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", c.name, snap.Ref.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

type whereClause struct {
	path  string
	op    string
	value any
}

func whereClauses(filters []listing.Filter, fields map[string]string) ([]whereClause, error) {
	clauses := make([]whereClause, 0, len(filters))
	for _, f := range filters {
		path, ok := fields[f.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %s", listing.ErrUnsupportedFilter, f.Field)
		}
		switch f.Op {
		case listing.OpEq, listing.OpGt, listing.OpGte, listing.OpLt, listing.OpLte:
		default:
			return nil, fmt.Errorf("%w: operator %q", listing.ErrUnsupportedFilter, f.Op)
		}
		value := f.Value
		// prices are stored as numbers so that range filters order numerically
		if d, ok := value.(decimal.Decimal); ok {
			value = d.InexactFloat64()
		}
		clauses = append(clauses, whereClause{path: path, op: string(f.Op), value: value})
	}
	return clauses, nil
}
