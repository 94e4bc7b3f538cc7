package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLine     = errors.New("invalid cart line")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

type Cart struct {
	AccountID string     `json:"account_id,omitempty"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
	SKU       string          `json:"sku,omitempty"`
}

// Validate reports whether the line may live in a persisted cart.
func (l CartLine) Validate() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return fmt.Errorf("%w: product_id is empty", ErrInvalidLine)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidLine, l.ProductID, ErrInvalidQuantity)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: %s: unit_price is negative", ErrInvalidLine, l.ProductID)
	}
	return nil
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total is the sum of unit_price * quantity over all lines.
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Normalize folds lines sharing a product id into one line whose quantity is
// the sum of the folded quantities, and drops lines that fail Validate.
// The first occurrence of a product keeps its position and its metadata.
func Normalize(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Validate() != nil {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			fillMissing(&out[i], l)
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// Merge combines a device cart with an account cart. Quantities of products
// present in both are summed; local metadata wins over remote metadata.
func Merge(local, remote []CartLine) []CartLine {
	all := make([]CartLine, 0, len(local)+len(remote))
	all = append(all, local...)
	all = append(all, remote...)
	return Normalize(all)
}

func fillMissing(dst *CartLine, src CartLine) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
	if dst.SKU == "" {
		dst.SKU = src.SKU
	}
	if dst.UnitPrice.IsZero() {
		dst.UnitPrice = src.UnitPrice
	}
}

// CloneLines returns a copy that does not share the backing array.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return []CartLine{}
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
