package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineOpts = cmp.Options{
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	cmpopts.SortSlices(func(a, b CartLine) bool { return a.ProductID < b.ProductID }),
}

func line(id string, qty int) CartLine {
	return CartLine{ProductID: id, Name: "product " + id, UnitPrice: decimal.RequireFromString("10.50"), Quantity: qty}
}

func TestMerge_DisjointKeepsEveryLine(t *testing.T) {
	local := []CartLine{line("A", 1), line("B", 2)}
	remote := []CartLine{line("C", 3), line("D", 4), line("E", 5)}

	merged := Merge(local, remote)

	require.Len(t, merged, len(local)+len(remote))
	want := append(append([]CartLine{}, local...), remote...)
	if diff := cmp.Diff(want, merged, lineOpts); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_OverlapSumsQuantities(t *testing.T) {
	local := []CartLine{line("A", 2)}
	remote := []CartLine{line("A", 1), line("B", 3)}

	merged := Merge(local, remote)

	want := []CartLine{line("A", 3), line("B", 3)}
	if diff := cmp.Diff(want, merged, lineOpts); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_DropsNonPositiveQuantities(t *testing.T) {
	local := []CartLine{line("A", 0), line("B", 2)}
	remote := []CartLine{line("A", 4), line("B", -1), line("C", -5)}

	merged := Merge(local, remote)

	want := []CartLine{line("A", 4), line("B", 2)}
	if diff := cmp.Diff(want, merged, lineOpts); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_LocalMetadataWins(t *testing.T) {
	local := CartLine{ProductID: "A", Name: "new name", UnitPrice: decimal.NewFromInt(5), Quantity: 1}
	remote := CartLine{ProductID: "A", Name: "old name", UnitPrice: decimal.NewFromInt(4), Quantity: 1, SKU: "SKU-A"}

	merged := Merge([]CartLine{local}, []CartLine{remote})

	require.Len(t, merged, 1)
	assert.Equal(t, "new name", merged[0].Name)
	assert.True(t, decimal.NewFromInt(5).Equal(merged[0].UnitPrice))
	assert.Equal(t, "SKU-A", merged[0].SKU)
	assert.Equal(t, 2, merged[0].Quantity)
}

func TestMerge_EmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Len(t, Merge(nil, []CartLine{line("A", 1)}), 1)
}

func TestTotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: "A", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
		{ProductID: "B", UnitPrice: decimal.RequireFromString("0.01"), Quantity: 1},
	}
	assert.Equal(t, "59.98", Total(lines).StringFixed(2))
	assert.True(t, Total(nil).IsZero())
}

func TestCartLine_Validate(t *testing.T) {
	assert.NoError(t, line("A", 1).Validate())
	assert.ErrorIs(t, line("", 1).Validate(), ErrInvalidLine)
	assert.ErrorIs(t, line("A", 0).Validate(), ErrInvalidQuantity)

	negative := line("A", 1)
	negative.UnitPrice = decimal.NewFromInt(-1)
	assert.ErrorIs(t, negative.Validate(), ErrInvalidLine)
}

func TestCloneLines_DoesNotShareBackingArray(t *testing.T) {
	src := []CartLine{line("A", 1)}
	dst := CloneLines(src)
	dst[0].Quantity = 9
	assert.Equal(t, 1, src[0].Quantity)
	assert.NotNil(t, CloneLines(nil))
}
