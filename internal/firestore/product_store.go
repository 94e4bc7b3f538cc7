package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// productDoc stores the price twice: priceText keeps the exact decimal,
// price is the number that range filters run against.
type productDoc struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Category    string    `firestore:"category"`
	Price       float64   `firestore:"price"`
	PriceText   string    `firestore:"priceText"`
	SKU         string    `firestore:"sku,omitempty"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

var productPaths = map[string]string{
	"category": "category",
	"active":   "active",
	"price":    "price",
	"sku":      "sku",
}

type ProductStore struct {
	*Collection[domain.Product]
}

func NewProductStore(client *firestore.Client) *ProductStore {
	return &ProductStore{
		Collection: NewCollection(client, "products", productPaths, decodeProduct,
			func(p domain.Product) string { return p.ID }),
	}
}

func (s *ProductStore) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := s.col().Doc(p.ID).Create(ctx, productToDoc(p))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return repository.ErrDuplicateProduct
		}
		return fmt.Errorf("failed to create product %s: %w", p.ID, err)
	}
	return nil
}

func (s *ProductStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	snap, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Product{}, repository.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return decodeProduct(snap)
}

func productToDoc(p domain.Product) productDoc {
	return productDoc{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.InexactFloat64(),
		PriceText:   p.Price.String(),
		SKU:         p.SKU,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, err
	}
	return productFromDoc(snap.Ref.ID, doc), nil
}

func productFromDoc(id string, doc productDoc) domain.Product {
	price, err := decimal.NewFromString(doc.PriceText)
	if err != nil {
		price = decimal.NewFromFloat(doc.Price)
	}
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       price,
		SKU:         doc.SKU,
		ImageURL:    doc.ImageURL,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
	}
}
