// Package consumer keeps an instance's cached shop data in step with orders
// created or confirmed by other instances.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OrderEvent is the outbox payload published for order changes.
type OrderEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Refresher reloads cached shop data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

const defaultRetryDelay = time.Second

type Consumer struct {
	shop       Refresher
	reader     MessageReader
	log        *zap.Logger
	retryDelay time.Duration // wait after a failed read
}

// NewKafkaReader reads topic in its own consumer group, so every instance
// sees every event.
func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
}

func NewConsumer(shop Refresher, reader MessageReader, log *zap.Logger) *Consumer {
	return &Consumer{shop: shop, reader: reader, log: log, retryDelay: defaultRetryDelay}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.processMessage(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return err
		}
		c.log.Warn("error reading order event", zap.Error(err))
		return err
	}

	eventType := header(m, "event_type")
	if eventType != domain.EventOrderCreated && eventType != domain.EventOrderConfirmed {
		return nil
	}

	var event OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Warn("error parsing order event", zap.String("event_type", eventType), zap.Error(err))
		return nil
	}

	if err := c.shop.Refresh(ctx); err != nil {
		c.log.Warn("shop refresh after order event failed",
			zap.String("order_id", event.OrderID), zap.Error(err))
		return nil
	}
	c.log.Debug("shop refreshed after order event",
		zap.String("event_type", eventType), zap.String("order_id", event.OrderID))
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
