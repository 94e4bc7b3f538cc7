package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCartStore_FetchMissingAccountReturnsEmpty(t *testing.T) {
	store := NewMemoryCartStore()

	lines, err := store.FetchCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestMemoryCartStore_ReplaceIsACopy(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()
	lines := []domain.CartLine{{ProductID: "p1", Name: "Mug", UnitPrice: decimal.RequireFromString("9.50"), Quantity: 2}}

	require.NoError(t, store.ReplaceCart(ctx, "user-1", lines))
	lines[0].Quantity = 7

	got, err := store.FetchCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Quantity)
}

func TestMemoryCartStore_RejectsEmptyAccount(t *testing.T) {
	store := NewMemoryCartStore()

	_, err := store.FetchCart(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingAccount)

	err = store.ReplaceCart(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrMissingAccount)
}

func TestMemoryProductStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryProductStore()
	ctx := context.Background()
	p := domain.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(5), CreatedAt: time.Now()}

	require.NoError(t, store.CreateProduct(ctx, p))
	assert.ErrorIs(t, store.CreateProduct(ctx, p), ErrDuplicateProduct)
	assert.Equal(t, 1, store.Len())

	got, err := store.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)

	_, err = store.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryProductStore_PagesByPriceRange(t *testing.T) {
	store := NewMemoryProductStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 6; i++ {
		require.NoError(t, store.CreateProduct(ctx, domain.Product{
			ID:        string(rune('a' + i)),
			Name:      "item",
			Category:  "kitchen",
			Price:     decimal.NewFromInt(int64(i * 10)),
			Active:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	engine := listing.NewEngine[domain.Product](store)
	page, err := engine.FetchPage(ctx, listing.Query{
		Filters: []listing.Filter{
			listing.Eq("category", "kitchen"),
			listing.AtLeast("price", decimal.NewFromInt(20)),
			listing.AtMost("price", decimal.NewFromInt(40)),
		},
		PageSize: 10,
	})

	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "e", page.Items[0].ID)
	assert.Equal(t, "c", page.Items[2].ID)
	assert.False(t, page.HasMore)
}

func TestMemoryAuditStore_RecordAndFilter(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.RecordAudit(ctx, domain.AuditEntry{ID: "1", Actor: "admin", Action: domain.ActionProductCreate, CreatedAt: now}))
	require.NoError(t, store.RecordAudit(ctx, domain.AuditEntry{ID: "2", Actor: "system", Action: domain.ActionCheckoutHandoff, CreatedAt: now.Add(time.Second)}))

	engine := listing.NewEngine[domain.AuditEntry](store)
	page, err := engine.FetchPage(ctx, listing.Query{Filters: []listing.Filter{listing.Eq("actor", "system")}})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.ActionCheckoutHandoff, page.Items[0].Action)
}
