package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DeviceIDHeader = "X-Device-ID"
	maxQuantity    = 99
)

type CartHandler struct {
	sessions *cart.Sessions
	catalog  repository.ProductStore
	checkout *checkout.Service
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(sessions *cart.Sessions, catalog repository.ProductStore, co *checkout.Service, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		checkout: co,
		timeout:  timeout,
		logger:   logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	AccountID string            `json:"account_id,omitempty"`
	Lines     []domain.CartLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
}

// engine resolves the device's cart and applies the request's auth state to
// it. It writes the error response itself and returns nil on failure.
func (h *CartHandler) engine(ctx context.Context, w http.ResponseWriter, r *http.Request) *cart.Engine {
	e, err := h.sessions.Get(ctx, r.Header.Get(DeviceIDHeader))
	if err != nil {
		if errors.Is(err, cart.ErrMissingDevice) {
			respondError(w, http.StatusBadRequest, "missing_device_id", "X-Device-ID header is required")
			return nil
		}
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart sessions are shutting down")
		return nil
	}
	if err := e.Observe(ctx, auth.FromContext(r.Context())); err != nil {
		h.logger.Warn("auth state not applied", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart unavailable")
		return nil
	}
	return e
}

func cartResponse(e *cart.Engine) CartResponse {
	s := e.Snapshot()
	return CartResponse{AccountID: s.AccountID, Lines: s.Lines, Total: domain.Total(s.Lines)}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(e))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		h.logger.Warn("product lookup failed", zap.String("product_id", req.ProductID), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog unavailable")
		return
	}
	if !product.Active {
		respondError(w, http.StatusConflict, "product_inactive", "product is not available")
		return
	}

	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}
	if err := e.AddLine(ctx, product.Line(req.Quantity)); err != nil {
		h.handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(e))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}
	if err := e.SetQuantity(ctx, productID, req.Quantity); err != nil {
		h.handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(e))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}
	if err := e.RemoveLine(ctx, productID); err != nil {
		h.handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(e))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}
	if err := e.Clear(ctx); err != nil {
		h.handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(e))
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !auth.FromContext(r.Context()).Authenticated() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	e := h.engine(ctx, w, r)
	if e == nil {
		return
	}

	res, err := h.checkout.Checkout(ctx, e)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, res)
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrNotSignedIn):
		// the remote cart could not be fetched yet, so the device is still anonymous
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "account cart not loaded, retry")
	default:
		h.handleCartError(w, err)
	}
}

func (h *CartHandler) handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
	case errors.Is(err, domain.ErrInvalidLine):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, cart.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.logger.Error("cart request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
