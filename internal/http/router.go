package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Cart           *CartHandler
	Admin          *AdminHandler
	Verifier       auth.Verifier
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// AccessLog enables chi's request logger.
	AccessLog bool
	// AllowedOrigins enables CORS for browser clients on other origins.
	AllowedOrigins []string
	// AdminAccounts may use the admin routes without the admin claim.
	AdminAccounts []string
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	if cfg.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", DeviceIDHeader, auth.UserIDHeader},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Verifier, cfg.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
			r.Post("/checkout", cfg.Cart.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(cfg.AdminAccounts, cfg.Logger))
			r.Get("/products", cfg.Admin.ListProducts)
			r.Post("/products", cfg.Admin.CreateProduct)
			r.Get("/audit-logs", cfg.Admin.ListAuditLogs)
		})
	})

	return r
}
