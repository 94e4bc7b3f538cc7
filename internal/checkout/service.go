package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Result struct {
	HandoffID  string          `json:"handoff_id"`
	Total      decimal.Decimal `json:"total"`
	Message    string          `json:"message"`
	ChannelURL string          `json:"channel_url,omitempty"`
}

type Service struct {
	publisher  Publisher
	channelURL string
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(publisher Publisher, channelURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		publisher:  publisher,
		channelURL: channelURL,
		logger:     logger,
		now:        time.Now,
	}
}

// Checkout publishes the engine's cart and removes the published lines from
// it. Lines added while the handoff is being published stay in the cart. The
// cart is kept when publishing fails.
func (s *Service) Checkout(ctx context.Context, engine *cart.Engine) (Result, error) {
	snapshot := engine.Snapshot()
	h, err := NewHandoff(snapshot.AccountID, snapshot.Lines, s.now())
	if err != nil {
		return Result{}, err
	}

	msg := h.Message()
	link, err := ChannelURL(s.channelURL, msg)
	if err != nil {
		return Result{}, err
	}

	if err := s.publisher.Publish(ctx, h); err != nil {
		s.logger.Error("checkout handoff failed", zap.String("account_id", h.AccountID), zap.Error(err))
		return Result{}, err
	}
	if err := engine.RemoveHandedOff(ctx, h.AccountID, h.Lines); err != nil {
		return Result{}, fmt.Errorf("handoff %s published but cart not cleared: %w", h.ID, err)
	}

	s.logger.Info("checkout handed off",
		zap.String("handoff_id", h.ID),
		zap.String("account_id", h.AccountID),
		zap.Int("lines", len(h.Lines)))

	return Result{HandoffID: h.ID, Total: h.Total, Message: msg, ChannelURL: link}, nil
}
