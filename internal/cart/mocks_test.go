package cart

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type mockCartStore struct {
	mu         sync.Mutex
	carts      map[string][]domain.CartLine
	fetchErr   error
	replaceErr error
	// blockFetch makes FetchCart wait for the context to end.
	blockFetch bool
	fetches    int
	replaces   []replaceCall
}

type replaceCall struct {
	accountID string
	lines     []domain.CartLine
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string][]domain.CartLine)}
}

func (m *mockCartStore) FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	m.fetches++
	block, err := m.blockFetch, m.fetchErr
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneLines(m.carts[accountID]), nil
}

func (m *mockCartStore) ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces = append(m.replaces, replaceCall{accountID: accountID, lines: domain.CloneLines(lines)})
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.carts[accountID] = domain.CloneLines(lines)
	return nil
}

func (m *mockCartStore) seed(accountID string, lines ...domain.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[accountID] = lines
}

func (m *mockCartStore) setFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *mockCartStore) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *mockCartStore) replaceCalls() []replaceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]replaceCall(nil), m.replaces...)
}

func (m *mockCartStore) stored(accountID string) []domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneLines(m.carts[accountID])
}
