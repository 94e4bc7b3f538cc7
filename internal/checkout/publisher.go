package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "checkout-handoff"

type Publisher interface {
	Publish(ctx context.Context, h Handoff) error
}

// MessageWriter is the part of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish keys the message by account so handoffs of one account stay in
// order on a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, h Handoff) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(h.AccountID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("checkout.handoff")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish handoff %s: %w", h.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs handoffs. It is used when no brokers are configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, h Handoff) error {
	if p.Logger != nil {
		p.Logger.Info("checkout handoff (no broker configured)",
			zap.String("handoff_id", h.ID),
			zap.String("account_id", h.AccountID),
			zap.String("total", h.Total.String()))
	}
	return nil
}
