// Package admin is the back-office surface: product creation and the
// cursor-paginated product and audit-log listings.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrMissingActor = errors.New("missing actor")
)

type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url"`
	Active      bool            `json:"active"`
}

type Service struct {
	products repository.ProductStore
	audit    repository.AuditStore
	listP    *listing.Engine[domain.Product]
	listA    *listing.Engine[domain.AuditEntry]
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(products repository.ProductStore, audit repository.AuditStore, logger *zap.Logger, opts ...listing.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]listing.Option{listing.WithLogger(logger)}, opts...)
	return &Service{
		products: products,
		audit:    audit,
		listP:    listing.NewEngine[domain.Product](products, opts...),
		listA:    listing.NewEngine[domain.AuditEntry](audit, opts...),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateProduct stores a new product and records who created it. A failed
// audit write is logged; the product stays created.
func (s *Service) CreateProduct(ctx context.Context, actor string, in ProductInput) (domain.Product, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return domain.Product{}, ErrMissingActor
	}
	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		SKU:         strings.TrimSpace(in.SKU),
		ImageURL:    in.ImageURL,
		Active:      in.Active,
		CreatedAt:   s.now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    domain.ActionProductCreate,
		Entity:    "product",
		EntityID:  p.ID,
		Details:   fmt.Sprintf("name=%q price=%s", p.Name, p.Price.String()),
		CreatedAt: p.CreatedAt,
	}
	if err := s.audit.RecordAudit(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", zap.String("product_id", p.ID), zap.Error(err))
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, q ProductQuery) (listing.Page[domain.Product], error) {
	return s.listP.FetchPage(ctx, listing.Query{
		Filters:   q.Filters(),
		Cursor:    q.Page.Cursor,
		Direction: q.Page.Direction,
		PageSize:  q.Page.PageSize,
	})
}

func (s *Service) ListAuditLogs(ctx context.Context, q AuditQuery) (listing.Page[domain.AuditEntry], error) {
	return s.listA.FetchPage(ctx, listing.Query{
		Filters:   q.Filters(),
		Cursor:    q.Page.Cursor,
		Direction: q.Page.Direction,
		PageSize:  q.Page.PageSize,
	})
}
