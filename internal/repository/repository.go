package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
)

var (
	ErrDuplicateProduct = errors.New("product already exists")
	ErrProductNotFound  = errors.New("product not found")
	ErrMissingAccount   = errors.New("account id is empty")
)

// CartStore is the account-scoped remote cart. ReplaceCart is all-or-nothing.
// FetchCart returns an empty cart, not an error, for accounts without one.
type CartStore interface {
	FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error)
	ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error
}

type ProductStore interface {
	listing.Collection[domain.Product]
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type AuditStore interface {
	listing.Collection[domain.AuditEntry]
	RecordAudit(ctx context.Context, e domain.AuditEntry) error
}

// ProductField and AuditField resolve the filterable fields of the listed
// entities for in-process collections.
func ProductField(p domain.Product, field string) (any, bool) {
	switch field {
	case "category":
		return p.Category, true
	case "active":
		return p.Active, true
	case "price":
		return p.Price, true
	case "sku":
		return p.SKU, true
	}
	return nil, false
}

func AuditField(e domain.AuditEntry, field string) (any, bool) {
	switch field {
	case "actor":
		return e.Actor, true
	case "action":
		return e.Action, true
	case "entity":
		return e.Entity, true
	case "entity_id":
		return e.EntityID, true
	}
	return nil, false
}
