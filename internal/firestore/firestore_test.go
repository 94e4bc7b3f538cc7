package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereClauses_MapsFieldsAndPrices(t *testing.T) {
	coll := NewCollection[domain.Product](nil, "products", productPaths, decodeProduct,
		func(p domain.Product) string { return p.ID })
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	clauses, err := whereClauses([]listing.Filter{
		listing.Eq("category", "kitchen"),
		listing.AtLeast("price", decimal.RequireFromString("12.50")),
		listing.After(listing.SortField, since),
	}, coll.fields)

	require.NoError(t, err)
	assert.Equal(t, []whereClause{
		{path: "category", op: "==", value: "kitchen"},
		{path: "price", op: ">=", value: 12.5},
		{path: "createdAt", op: ">", value: since},
	}, clauses)
}

func TestWhereClauses_UnknownField(t *testing.T) {
	_, err := whereClauses([]listing.Filter{listing.Eq("name", "x")}, auditPaths)

	assert.ErrorIs(t, err, listing.ErrUnsupportedFilter)
}

func TestLineFromDoc(t *testing.T) {
	now := time.Now()
	line := domain.CartLine{ProductID: "p1", Name: "Mug", UnitPrice: decimal.RequireFromString("3.10"), Quantity: 4, SKU: "MUG-1"}

	got, ok := lineFromDoc("p1", docFromLine(line, now))
	require.True(t, ok)
	assert.True(t, line.UnitPrice.Equal(got.UnitPrice))
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, "MUG-1", got.SKU)

	_, ok = lineFromDoc("p2", cartLineDoc{UnitPrice: "not a number", Quantity: 1})
	assert.False(t, ok)
}

func TestProductFromDoc_FallsBackToNumericPrice(t *testing.T) {
	p := productFromDoc("p1", productDoc{Name: "Mug", Price: 7.25})

	assert.Equal(t, "7.25", p.Price.String())
	assert.Equal(t, "p1", p.ID)
}

// The remaining tests talk to the Firestore emulator and run only when
// FIRESTORE_EMULATOR_HOST is set.
func emulatorClient(t *testing.T) *CartStore {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := NewClient(context.Background(), "storefront-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewCartStore(client)
}

func TestCartStore_ReplaceIsWholesale(t *testing.T) {
	store := emulatorClient(t)
	ctx := context.Background()
	account := fmt.Sprintf("user-%d", time.Now().UnixNano())

	require.NoError(t, store.ReplaceCart(ctx, account, []domain.CartLine{
		{ProductID: "p1", Name: "Mug", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		{ProductID: "p2", Name: "Tea", UnitPrice: decimal.NewFromInt(2), Quantity: 3},
	}))
	require.NoError(t, store.ReplaceCart(ctx, account, []domain.CartLine{
		{ProductID: "p2", Name: "Tea", UnitPrice: decimal.NewFromInt(2), Quantity: 1},
	}))

	lines, err := store.FetchCart(ctx, account)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].ProductID)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestProductStore_PagesWithEmulator(t *testing.T) {
	carts := emulatorClient(t)
	store := NewProductStore(carts.Client)
	ctx := context.Background()
	prefix := fmt.Sprintf("t%d", time.Now().UnixNano())
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateProduct(ctx, domain.Product{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Name:      "item",
			Category:  prefix,
			Price:     decimal.NewFromInt(int64(i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	engine := listing.NewEngine[domain.Product](store)
	page, err := engine.FetchPage(ctx, listing.Query{
		Filters:  []listing.Filter{listing.Eq("category", prefix)},
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, prefix+"-4", page.FirstCursor)

	next, err := engine.FetchPage(ctx, listing.Query{
		Filters:  []listing.Filter{listing.Eq("category", prefix)},
		PageSize: 2,
		Cursor:   page.LastCursor,
	})
	require.NoError(t, err)
	assert.Equal(t, prefix+"-2", next.FirstCursor)
	assert.Equal(t, prefix+"-1", next.LastCursor)
}
