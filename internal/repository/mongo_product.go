package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoProductFields = map[string]string{
	"category":        "category",
	"active":          "active",
	"price":           "price",
	"sku":             "sku",
	listing.SortField: "created_at",
}

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description,omitempty"`
	Category    string               `bson:"category"`
	Price       primitive.Decimal128 `bson:"price"`
	SKU         string               `bson:"sku,omitempty"`
	ImageURL    string               `bson:"image_url,omitempty"`
	Active      bool                 `bson:"active"`
	CreatedAt   time.Time            `bson:"created_at"`
}

type MongoProductStore struct {
	collection *mongo.Collection
}

func NewMongoProductStore(db *mongo.Database) *MongoProductStore {
	return &MongoProductStore{
		collection: db.Collection("products"),
	}
}

func (m *MongoProductStore) CreateProduct(ctx context.Context, p domain.Product) error {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return fmt.Errorf("failed to encode price: %w", err)
	}

	doc := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       price,
		SKU:         p.SKU,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.UTC().Truncate(time.Millisecond),
	}

	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (m *MongoProductStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var doc productDoc
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return productFromDoc(doc)
}

func (m *MongoProductStore) Key(p domain.Product) string {
	return p.ID
}

func (m *MongoProductStore) Anchor(ctx context.Context, id string) (listing.Anchor, error) {
	var doc struct {
		ID        string    `bson:"_id"`
		CreatedAt time.Time `bson:"created_at"`
	}
	opts := options.FindOne().SetProjection(bson.M{"created_at": 1})
	err := m.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return listing.Anchor{}, listing.ErrCursorNotFound
		}
		return listing.Anchor{}, fmt.Errorf("failed to resolve cursor: %w", err)
	}
	return listing.Anchor{CreatedAt: doc.CreatedAt, ID: doc.ID}, nil
}

func (m *MongoProductStore) Find(ctx context.Context, plan listing.Plan) ([]domain.Product, error) {
	filter, err := mongoFilter(plan, mongoProductFields)
	if err != nil {
		return nil, err
	}

	order := -1
	if plan.Reverse {
		order = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: order}, {Key: "_id", Value: order}}).
		SetLimit(int64(plan.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]domain.Product, 0, plan.Limit)
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := productFromDoc(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}

	return products, nil
}

func productFromDoc(doc productDoc) (domain.Product, error) {
	price, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to decode price of %s: %w", doc.ID, err)
	}
	return domain.Product{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       price,
		SKU:         doc.SKU,
		ImageURL:    doc.ImageURL,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
	}, nil
}

func (m *MongoProductStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

var mongoOps = map[listing.Op]string{
	listing.OpEq:  "$eq",
	listing.OpGt:  "$gt",
	listing.OpGte: "$gte",
	listing.OpLt:  "$lt",
	listing.OpLte: "$lte",
}

// mongoFilter translates a plan into a query document ordered by
// (created_at, _id).
func mongoFilter(plan listing.Plan, fields map[string]string) (bson.M, error) {
	conds := bson.M{}
	for _, f := range plan.Filters {
		name, ok := fields[f.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %s", listing.ErrUnsupportedFilter, f.Field)
		}
		op, ok := mongoOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("%w: operator %q", listing.ErrUnsupportedFilter, f.Op)
		}
		value, err := mongoValue(f.Value)
		if err != nil {
			return nil, err
		}
		fieldConds, _ := conds[name].(bson.M)
		if fieldConds == nil {
			fieldConds = bson.M{}
			conds[name] = fieldConds
		}
		fieldConds[op] = value
	}

	if plan.After == nil {
		return conds, nil
	}

	cmp := "$lt"
	if plan.Reverse {
		cmp = "$gt"
	}
	after := bson.M{"$or": bson.A{
		bson.M{"created_at": bson.M{cmp: plan.After.CreatedAt}},
		bson.M{"created_at": plan.After.CreatedAt, "_id": bson.M{cmp: plan.After.ID}},
	}}
	return bson.M{"$and": bson.A{conds, after}}, nil
}

func mongoValue(v any) (any, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		d, err := primitive.ParseDecimal128(val.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", listing.ErrUnsupportedFilter, err)
		}
		return d, nil
	case string, bool, int, int32, int64, float64, time.Time:
		return val, nil
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", listing.ErrUnsupportedFilter, v)
}
