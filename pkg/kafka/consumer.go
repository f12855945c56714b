package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxDeliveryAttempts bounds handler retries per message. After the final
// attempt the message is committed and routed to the DLQ so a poison event
// cannot block its partition.
const maxDeliveryAttempts = 3

// Handler processes a decoded event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer reads one topic on behalf of a consumer group and feeds each
// decoded event to its handler. Offsets are committed only after the handler
// outcome is settled, so delivery is at-least-once.
type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	handler   Handler
	dlq       *DLQProducer
	closeOnce sync.Once
}

// NewConsumer creates a consumer for a single topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		}),
		logger:  logger,
		handler: handler,
	}
}

// WithDLQ routes messages that exhaust all handler retries to the dead-letter
// queue instead of dropping them.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start blocks, fetching and processing messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID

	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", slog.String("topic", topic))
			return c.Close()
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		ConsumerMessagesReceived.WithLabelValues(topic, group).Inc()
		c.process(ctx, msg, topic, group)
	}
}

// process settles a single message: decode, hand to the handler with
// retries, then commit. Undecodable and poison messages go to the DLQ.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, topic, group string) {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		ConsumerMessagesFailed.WithLabelValues(topic, group).Inc()
		c.sendToDLQ(ctx, msg, err, group)
		c.commit(ctx, msg)
		return
	}

	// Resume the producer's trace, if one was propagated.
	msgCtx := ExtractTraceContext(ctx, msg.Headers)

	start := time.Now()
	err = c.deliver(msgCtx, event, msg)
	ConsumerProcessingDuration.WithLabelValues(topic, group).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down mid-retry. Leave the message uncommitted so the
			// next instance redelivers it.
			return
		}
		c.logger.Error("handler exhausted retries, routing poison message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempts", maxDeliveryAttempts),
		)
		ConsumerMessagesFailed.WithLabelValues(topic, group).Inc()
		c.sendToDLQ(ctx, msg, err, group)
		c.commit(ctx, msg)
		return
	}

	ConsumerMessagesProcessed.WithLabelValues(topic, group).Inc()
	c.commit(ctx, msg)
}

// deliver runs the handler with linear backoff between attempts. Returns nil
// on the first success, the handler's error once attempts are exhausted, or
// ctx.Err() if canceled while waiting to retry.
func (c *Consumer) deliver(ctx context.Context, event *Event, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, event)
		if err == nil {
			return nil
		}
		if attempt == maxDeliveryAttempts {
			return err
		}

		c.logger.Warn("handler failed, retrying",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxDeliveryAttempts),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
}

// commit marks the message consumed. Commit failures are logged and tolerated;
// the idempotency guard absorbs the resulting redelivery.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// sendToDLQ publishes a failed message to the dead-letter queue when one is
// configured. Publish failures are logged but never block the consumer.
func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, cause error, group string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, group); err != nil {
		c.logger.Error("failed to publish to DLQ, message dropped",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return
	}
	ConsumerDLQPublished.WithLabelValues(msg.Topic, group).Inc()
}

// Close closes the consumer. Safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
