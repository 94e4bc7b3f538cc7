// Package circuitbreaker guards the remote cart store so that an unreachable
// backend fails fast instead of holding every save for the full timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial requests allowed while half-open.
	HalfOpenRequests uint32
}

func DefaultSettings() Settings {
	return Settings{
		Name:                "remote-cart",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// CartStore wraps a repository.CartStore with one breaker per operation.
type CartStore struct {
	next    repository.CartStore
	fetch   *gobreaker.CircuitBreaker[[]domain.CartLine]
	replace *gobreaker.CircuitBreaker[struct{}]
}

func NewCartStore(next repository.CartStore, s Settings, logger *zap.Logger) *CartStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartStore{
		next:    next,
		fetch:   gobreaker.NewCircuitBreaker[[]domain.CartLine](settings(s, "fetch", logger)),
		replace: gobreaker.NewCircuitBreaker[struct{}](settings(s, "replace", logger)),
	}
}

func settings(s Settings, op string, logger *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        s.Name + "." + op,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// caller mistakes and cancellations say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, repository.ErrMissingAccount) ||
				errors.Is(err, context.Canceled)
		},
	}
}

func (c *CartStore) FetchCart(ctx context.Context, accountID string) ([]domain.CartLine, error) {
	return c.fetch.Execute(func() ([]domain.CartLine, error) {
		return c.next.FetchCart(ctx, accountID)
	})
}

func (c *CartStore) ReplaceCart(ctx context.Context, accountID string, lines []domain.CartLine) error {
	_, err := c.replace.Execute(func() (struct{}, error) {
		return struct{}{}, c.next.ReplaceCart(ctx, accountID, lines)
	})
	return err
}

// Open reports whether either breaker currently rejects calls.
func (c *CartStore) Open() bool {
	return c.fetch.State() == gobreaker.StateOpen || c.replace.State() == gobreaker.StateOpen
}
