package publisher

import (
	"context"
	"time"

	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const batchSize = 100

// EventSource is the outbox table.
type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller publishes order events written by the repository to Kafka.
// Events are marked processed only after the broker accepted them, so an
// event can be delivered more than once but is never lost.
type OutboxPoller struct {
	eventTick time.Duration
	source    EventSource
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	log       *zap.Logger
}

func NewOutboxPoller(source EventSource, writer MessageWriter, breaker *circuitbreaker.Breaker, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		eventTick: time.Second,
		source:    source,
		writer:    writer,
		breaker:   breaker,
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	if p.breaker.State() == "open" {
		return
	}

	events, err := p.source.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Warn("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Warn("failed to publish outbox event",
				zap.Int("event_id", event.ID), zap.String("event_type", event.EventType), zap.Error(err))
			if circuitbreaker.IsOpen(err) {
				return
			}
			continue
		}

		if err := p.source.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Warn("failed to mark outbox event as processed", zap.Int("event_id", event.ID), zap.Error(err))
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.breaker.Do(func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
}
