// Package checkout hands a signed-in cart off to an external messaging
// channel: it renders the order as text, publishes a handoff event and empties
// the cart.
package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrNotSignedIn = errors.New("checkout requires a signed-in account")
)

// Handoff is the event published for one checkout.
type Handoff struct {
	ID        string            `json:"handoff_id"`
	AccountID string            `json:"user_id"`
	Lines     []domain.CartLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewHandoff(accountID string, lines []domain.CartLine, now time.Time) (Handoff, error) {
	if strings.TrimSpace(accountID) == "" {
		return Handoff{}, ErrNotSignedIn
	}
	lines = domain.Normalize(lines)
	if len(lines) == 0 {
		return Handoff{}, ErrEmptyCart
	}
	return Handoff{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Lines:     lines,
		Total:     domain.Total(lines),
		CreatedAt: now.UTC(),
	}, nil
}

// Message renders the order the way it is sent to the channel.
func (h Handoff) Message() string {
	var b strings.Builder
	ref := h.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	fmt.Fprintf(&b, "Order %s\n", ref)
	for _, l := range h.Lines {
		fmt.Fprintf(&b, "- %s", l.Name)
		if l.SKU != "" {
			fmt.Fprintf(&b, " (%s)", l.SKU)
		}
		fmt.Fprintf(&b, " x%d: %s\n", l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s", h.Total.StringFixed(2))
	return b.String()
}

// ChannelURL appends the message as the text parameter of base. An empty
// base yields an empty link.
func ChannelURL(base, message string) (string, error) {
	if base == "" {
		return "", nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid channel url: %w", err)
	}
	q := u.Query()
	q.Set("text", message)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
