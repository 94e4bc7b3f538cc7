package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/admin"
	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"go.uber.org/zap"
)

// App is the storefront server assembled from a Config.
type App struct {
	Handler  http.Handler
	Sessions *cart.Sessions
	Admin    *admin.Service
	// Poller is nil when no Kafka brokers are configured.
	Poller *poller.Poller

	stores    *Stores
	publisher checkout.Publisher
	logger    *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, stores, logger)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, stores *Stores, logger *zap.Logger) (*App, error) {
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	remote := circuitbreaker.NewCartStore(stores.Carts, circuitbreaker.DefaultSettings(), logger)
	sessions := cart.NewSessions(remote, stores.Mirror, cart.Options{
		Debounce:      cfg.CartDebounce,
		RemoteTimeout: cfg.RemoteTimeout,
		Logger:        logger.Named("cart"),
	})

	a := &App{Sessions: sessions, stores: stores, logger: logger}

	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = checkout.NewKafkaPublisher(checkout.NewKafkaWriter(cfg.CheckoutTopic, cfg.KafkaBrokers...))
		reader := poller.NewKafkaReader(cfg.CheckoutTopic, cfg.CheckoutGroupID, cfg.KafkaBrokers...)
		a.Poller = poller.NewPoller(stores.Audit, reader, logger.Named("poller"))
	} else {
		logger.Warn("no Kafka brokers configured, checkout handoffs are only logged")
		a.publisher = checkout.LogPublisher{Logger: logger.Named("checkout")}
	}

	co := checkout.NewService(a.publisher, cfg.CheckoutChannelURL, logger.Named("checkout"))
	a.Admin = NewAdminService(cfg, stores, logger)

	a.Handler = h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(sessions, stores.Products, co, cfg.RequestTimeout, logger.Named("http")),
		Admin:          h.NewAdminHandler(a.Admin, cfg.RequestTimeout, logger.Named("http")),
		Verifier:       verifier,
		Logger:         logger.Named("auth"),
		RequestTimeout: cfg.RequestTimeout,
		AccessLog:      true,
		AllowedOrigins: cfg.AllowedOrigins,
		AdminAccounts:  cfg.AdminAccounts,
	})
	return a, nil
}

// NewAdminService builds the back-office service over already opened stores.
func NewAdminService(cfg *config.Config, stores *Stores, logger *zap.Logger) *admin.Service {
	return admin.NewService(stores.Products, stores.Audit, logger.Named("admin"),
		listing.WithPageSizes(cfg.PageSizeDefault, cfg.PageSizeMax),
		listing.WithLogger(logger.Named("listing")))
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthHeader:
		return auth.HeaderVerifier{}, nil
	case config.AuthFirebase:
		client, err := auth.NewFirebaseAuthClient(ctx, cfg.FirebaseProject, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, err
		}
		return auth.NewFirebaseVerifier(client), nil
	default:
		return nil, fmt.Errorf("%w: auth mode %q", config.ErrInvalidConfig, cfg.AuthMode)
	}
}

// Close flushes pending cart saves before releasing the backends.
func (a *App) Close() error {
	a.Sessions.Close()
	var errs []error
	if a.Poller != nil {
		a.Poller.Close()
	}
	if p, ok := a.publisher.(*checkout.KafkaPublisher); ok {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
