package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDoc holds the whole account cart in one document, so a replacement is
// a single atomic write.
type cartDoc struct {
	UserID    string        `bson:"user_id"`
	Items     []cartItemDoc `bson:"items"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type cartItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	UnitPrice string `bson:"unit_price"`
	Quantity  int    `bson:"quantity"`
	ImageURL  string `bson:"image_url,omitempty"`
	SKU       string `bson:"sku,omitempty"`
}

type MongoCartStore struct {
	collection *mongo.Collection
}

func NewMongoCartStore(db *mongo.Database) *MongoCartStore {
	return &MongoCartStore{
		collection: db.Collection("carts"),
	}
}

func (m *MongoCartStore) FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrMissingAccount
	}

	var doc cartDoc
	err := m.collection.FindOne(ctx, bson.M{"user_id": accountID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []domain.CartLine{}, nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return linesFromDocs(doc.Items), nil
}

func (m *MongoCartStore) ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrMissingAccount
	}
	now := time.Now()

	filter := bson.M{"user_id": accountID}
	update := bson.M{
		"$set": bson.M{
			"items":      docsFromLines(lines),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	return nil
}

func (m *MongoCartStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func docsFromLines(lines []domain.CartLine) []cartItemDoc {
	docs := make([]cartItemDoc, 0, len(lines))
	for _, l := range lines {
		docs = append(docs, cartItemDoc{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.String(),
			Quantity:  l.Quantity,
			ImageURL:  l.ImageURL,
			SKU:       l.SKU,
		})
	}
	return docs
}

// linesFromDocs drops records whose price does not parse or that fail line
// validation.
func linesFromDocs(docs []cartItemDoc) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(docs))
	for _, d := range docs {
		price, err := decimal.NewFromString(d.UnitPrice)
		if err != nil {
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID: d.ProductID,
			Name:      d.Name,
			UnitPrice: price,
			Quantity:  d.Quantity,
			ImageURL:  d.ImageURL,
			SKU:       d.SKU,
		})
	}
	return domain.Normalize(lines)
}
