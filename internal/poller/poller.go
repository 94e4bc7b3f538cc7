// Package poller consumes checkout handoff events and records each handoff
// in the audit log. The remote cart is left alone: the checking-out session
// already removed the handed-off lines, and anything in the cart now was
// added after the handoff.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultGroupID = "storefront-handoff-consumer"

// MessageReader is the part of *kafka.Reader used by Poller.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	audit   repository.AuditStore
	reader  MessageReader
	logger  *zap.Logger
	backoff time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(audit repository.AuditStore, reader MessageReader, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		audit:   audit,
		reader:  reader,
		logger:  logger,
		backoff: time.Second,
	}
}

// Run reads until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("error reading handoff message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}
		if err := p.handleMessage(ctx, m); err != nil {
			p.logger.Warn("handoff message skipped",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

var errMalformed = errors.New("malformed handoff event")

func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	var h checkout.Handoff
	if err := json.Unmarshal(m.Value, &h); err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	if h.AccountID == "" || h.ID == "" {
		return fmt.Errorf("%w: missing user_id or handoff_id", errMalformed)
	}

	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		Actor:     h.AccountID,
		Action:    domain.ActionCheckoutHandoff,
		Entity:    "checkout",
		EntityID:  h.ID,
		Details:   fmt.Sprintf("lines=%d total=%s", len(h.Lines), h.Total.String()),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.audit.RecordAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to record handoff %s: %w", h.ID, err)
	}

	p.logger.Info("handoff processed", zap.String("handoff_id", h.ID), zap.String("account_id", h.AccountID))
	return nil
}
