package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/admin"
	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc     *admin.Service
	timeout time.Duration
	logger  *zap.Logger
}

func NewAdminHandler(svc *admin.Service, timeout time.Duration, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{svc: svc, timeout: timeout, logger: logger}
}

// unavailablePage is the body of a listing that failed on the backend: an
// empty page plus the error.
type unavailablePage struct {
	Items []any  `json:"items"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := admin.ParseProductQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	page, err := h.svc.ListProducts(ctx, q)
	if err != nil {
		h.listError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := admin.ParseAuditQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	page, err := h.svc.ListAuditLogs(ctx, q)
	if err != nil {
		h.listError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in admin.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, err := h.svc.CreateProduct(ctx, auth.FromContext(r.Context()).AccountID, in)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, p)
	case errors.Is(err, admin.ErrMissingActor):
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "sign in required")
	case errors.Is(err, domain.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repository.ErrDuplicateProduct):
		respondError(w, http.StatusConflict, "already_exists", "product already exists")
	default:
		h.logger.Error("create product failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *AdminHandler) listError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, listing.ErrUnsupportedFilter):
		respondError(w, http.StatusBadRequest, "unsupported_filter", err.Error())
	case errors.Is(err, listing.ErrUnavailable):
		h.logger.Warn("listing unavailable", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, unavailablePage{
			Items: []any{},
			Error: "listing temporarily unavailable",
			Code:  "service_unavailable",
		})
	default:
		h.logger.Error("listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
