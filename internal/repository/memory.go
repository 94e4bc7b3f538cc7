package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
)

type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLine
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string][]domain.CartLine)}
}

func (m *MemoryCartStore) FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrMissingAccount
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CloneLines(m.carts[accountID]), nil
}

func (m *MemoryCartStore) ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return ErrMissingAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[accountID] = domain.CloneLines(lines)
	return nil
}

type MemoryProductStore struct {
	*listing.MemoryCollection[domain.Product]
	createMu sync.Mutex
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{
		MemoryCollection: listing.NewMemoryCollection(
			func(p domain.Product) string { return p.ID },
			func(p domain.Product) time.Time { return p.CreatedAt },
			ProductField,
		),
	}
}

func (m *MemoryProductStore) CreateProduct(ctx context.Context, p domain.Product) error {
	m.createMu.Lock()
	defer m.createMu.Unlock()
	if _, err := m.Anchor(ctx, p.ID); err == nil {
		return ErrDuplicateProduct
	}
	m.Put(p)
	return nil
}

func (m *MemoryProductStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := m.Get(id)
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

type MemoryAuditStore struct {
	*listing.MemoryCollection[domain.AuditEntry]
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{
		MemoryCollection: listing.NewMemoryCollection(
			func(e domain.AuditEntry) string { return e.ID },
			func(e domain.AuditEntry) time.Time { return e.CreatedAt },
			AuditField,
		),
	}
}

func (m *MemoryAuditStore) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Put(e)
	return nil
}
