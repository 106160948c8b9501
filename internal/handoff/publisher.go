package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Request is one buyer-to-seller handoff.
type Request struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Seller     string    `json:"seller"`
	Phone      string    `json:"phone"`
	URL        string    `json:"url"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher hands requests to the seller notification pipeline.
type KafkaPublisher struct {
	writer  MessageWriter
	breaker *circuitbreaker.Breaker
}

func NewKafkaPublisher(writer MessageWriter, breaker *circuitbreaker.Breaker) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, breaker: breaker}
}

// NewKafkaWriter returns a writer for topic with the settings used by the
// handoff and outbox publishers.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
}

func (p *KafkaPublisher) Open(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(req.SnapshotID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("OrderHandoff")},
		},
	}
	return p.breaker.Do(func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
}

// LogPublisher records handoffs in the log when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Open(_ context.Context, req Request) error {
	p.log.Info("order handoff prepared",
		zap.String("snapshot_id", req.SnapshotID.String()),
		zap.String("seller", req.Seller),
		zap.String("url", req.URL))
	return nil
}
