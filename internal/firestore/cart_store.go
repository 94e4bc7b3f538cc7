package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// maxWrites is the Firestore limit on writes in one transaction.
const maxWrites = 500

var ErrCartTooLarge = errors.New("cart replacement exceeds the transaction write limit")

// cartLineDoc is one document of users/{uid}/cart, keyed by product id.
type cartLineDoc struct {
	Name      string    `firestore:"name"`
	UnitPrice string    `firestore:"unitPrice"`
	Quantity  int       `firestore:"quantity"`
	ImageURL  string    `firestore:"imageUrl,omitempty"`
	SKU       string    `firestore:"sku,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CartStore keeps each account cart as a subcollection of the user document.
type CartStore struct {
	Client *firestore.Client
}

func NewCartStore(client *firestore.Client) *CartStore {
	return &CartStore{Client: client}
}

func (s *CartStore) col(accountID string) *firestore.CollectionRef {
	return s.Client.Collection("users").Doc(accountID).Collection("cart")
}

func (s *CartStore) FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, repository.ErrMissingAccount
	}

	iter := s.col(accountID).Documents(ctx)
	defer iter.Stop()

	var lines []domain.CartLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cart of %s: %w", accountID, err)
		}
		var doc cartLineDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cart line %s: %w", snap.Ref.ID, err)
		}
		if line, ok := lineFromDoc(snap.Ref.ID, doc); ok {
			lines = append(lines, line)
		}
	}
	return domain.Normalize(lines), nil
}

// ReplaceCart deletes every line document and writes the new set in one
// transaction, so readers never observe a partial cart.
func (s *CartStore) ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error {
	if strings.TrimSpace(accountID) == "" {
		return repository.ErrMissingAccount
	}
	lines = domain.Normalize(lines)
	col := s.col(accountID)

	return s.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(col).GetAll()
		if err != nil {
			return fmt.Errorf("failed to read cart of %s: %w", accountID, err)
		}

		keep := make(map[string]bool, len(lines))
		for _, l := range lines {
			keep[l.ProductID] = true
		}
		var stale []*firestore.DocumentRef
		for _, snap := range existing {
			if !keep[snap.Ref.ID] {
				stale = append(stale, snap.Ref)
			}
		}
		if len(stale)+len(lines) > maxWrites {
			return fmt.Errorf("%w: %d writes", ErrCartTooLarge, len(stale)+len(lines))
		}

		for _, ref := range stale {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		for _, l := range lines {
			if err := tx.Set(col.Doc(l.ProductID), docFromLine(l, now)); err != nil {
				return err
			}
		}
		return nil
	})
}

func docFromLine(l domain.CartLine, now time.Time) cartLineDoc {
	return cartLineDoc{
		Name:      l.Name,
		UnitPrice: l.UnitPrice.String(),
		Quantity:  l.Quantity,
		ImageURL:  l.ImageURL,
		SKU:       l.SKU,
		UpdatedAt: now,
	}
}

func lineFromDoc(productID string, doc cartLineDoc) (domain.CartLine, bool) {
	price, err := decimal.NewFromString(doc.UnitPrice)
	if err != nil {
		return domain.CartLine{}, false
	}
	return domain.CartLine{
		ProductID: productID,
		Name:      doc.Name,
		UnitPrice: price,
		Quantity:  doc.Quantity,
		ImageURL:  doc.ImageURL,
		SKU:       doc.SKU,
	}, true
}
