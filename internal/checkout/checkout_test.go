package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func testLines() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: "p1", Name: "Mug", SKU: "MUG-1", UnitPrice: decimal.RequireFromString("12.5"), Quantity: 2},
		{ProductID: "p2", Name: "Tea", UnitPrice: decimal.RequireFromString("3.99"), Quantity: 1},
	}
}

func TestNewHandoff(t *testing.T) {
	h, err := NewHandoff("user-1", testLines(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "28.99", h.Total.String())
	assert.NotEmpty(t, h.ID)

	_, err = NewHandoff("", testLines(), time.Now())
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = NewHandoff("user-1", nil, time.Now())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestHandoffMessage(t *testing.T) {
	h, err := NewHandoff("user-1", testLines(), time.Now())
	require.NoError(t, err)

	msg := h.Message()

	assert.Contains(t, msg, "- Mug (MUG-1) x2: 25.00\n")
	assert.Contains(t, msg, "- Tea x1: 3.99\n")
	assert.Contains(t, msg, "Total: 28.99")
}

func TestChannelURL(t *testing.T) {
	link, err := ChannelURL("https://wa.me/15550001111", "Order 1\nTotal: 5.00")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Order 1\nTotal: 5.00", u.Query().Get("text"))

	link, err = ChannelURL("", "x")
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w)
	h, err := NewHandoff("user-1", testLines(), time.Now())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), h))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "user-1", string(w.msgs[0].Key))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "user-1", decoded["user_id"])
	assert.Equal(t, h.ID, decoded["handoff_id"])
}

func newSignedInEngine(t *testing.T) *cart.Engine {
	t.Helper()
	e := cart.NewEngine(repository.NewMemoryCartStore(), cache.NewMemoryMirror(), "cart:device:d1", cart.Options{Debounce: time.Hour})
	t.Cleanup(e.Close)
	ctx := context.Background()
	require.NoError(t, e.ReconcileOnSignIn(ctx, "user-1"))
	for _, l := range testLines() {
		require.NoError(t, e.AddLine(ctx, l))
	}
	return e
}

func TestService_CheckoutClearsCart(t *testing.T) {
	w := &mockWriter{}
	svc := NewService(NewKafkaPublisher(w), "https://t.me/share/url", nil)
	e := newSignedInEngine(t)

	res, err := svc.Checkout(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, "28.99", res.Total.String())
	assert.Contains(t, res.ChannelURL, "text=")
	assert.Empty(t, e.Lines())
	assert.Len(t, w.msgs, 1)
}

func TestService_PublishFailureKeepsCart(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	svc := NewService(NewKafkaPublisher(w), "", nil)
	e := newSignedInEngine(t)

	_, err := svc.Checkout(context.Background(), e)

	assert.Error(t, err)
	assert.Len(t, e.Lines(), 2)
}

func TestService_AnonymousCartRejected(t *testing.T) {
	svc := NewService(LogPublisher{}, "", nil)
	e := cart.NewEngine(repository.NewMemoryCartStore(), cache.NewMemoryMirror(), "k", cart.Options{})
	t.Cleanup(e.Close)

	_, err := svc.Checkout(context.Background(), e)

	assert.ErrorIs(t, err, ErrNotSignedIn)
}

type blockingWriter struct {
	mockWriter
	started chan struct{}
	release chan struct{}
}

func (b *blockingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	close(b.started)
	<-b.release
	return b.mockWriter.WriteMessages(ctx, msgs...)
}

func TestService_LineAddedDuringPublishStaysInCart(t *testing.T) {
	w := &blockingWriter{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(NewKafkaPublisher(w), "", nil)
	e := newSignedInEngine(t)
	ctx := context.Background()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Checkout(ctx, e)
		done <- outcome{res, err}
	}()

	<-w.started
	late := domain.CartLine{ProductID: "p3", Name: "Spoon", UnitPrice: decimal.NewFromInt(2), Quantity: 1}
	require.NoError(t, e.AddLine(ctx, late))
	require.NoError(t, e.AddLine(ctx, domain.CartLine{ProductID: "p1", Name: "Mug", UnitPrice: decimal.RequireFromString("12.5"), Quantity: 1}))
	close(w.release)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "28.99", out.res.Total.String())

	var h Handoff
	require.Len(t, w.msgs, 1)
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &h))
	assert.Len(t, h.Lines, 2)

	lines := e.Lines()
	require.Len(t, lines, 2)
	byID := map[string]int{}
	for _, l := range lines {
		byID[l.ProductID] = l.Quantity
	}
	assert.Equal(t, map[string]int{"p1": 1, "p3": 1}, byID)
}
