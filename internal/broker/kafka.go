package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"export-import-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// eventTypeHeader carries the event type so consumers can route without
// decoding the payload first.
const eventTypeHeader = "event_type"

const (
	// maxHandlerAttempts bounds retries of one message before it is skipped.
	// Ledger events only drive cache invalidation, so a poison message must
	// not stall the partition.
	maxHandlerAttempts = 3
	minBackoff         = 200 * time.Millisecond
	maxBackoff         = 10 * time.Second
)

// Producer writes ledger events. Messages are hashed by key onto partitions,
// so all events of one identity keep their order.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer}
}

// PublishEvent marshals event and writes it under key with an event type header
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := newMessage(key, eventType, payload)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}

	util.GetLogger().Debug("Published ledger event",
		zap.String("topic", p.writer.Topic),
		zap.String("key", key),
		zap.String("type", eventType))
	return nil
}

func newMessage(key, eventType string, payload []byte) kafka.Message {
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(eventType)}},
		Time:    time.Now(),
	}
}

// headerValue returns the value of header key, or "" when absent
func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes pending writes and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads ledger events as part of a consumer group
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer that starts at the newest offset the first
// time the group joins. Older events describe caches that have long expired.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{reader: reader}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler processes one fetched message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is done. A message is committed
// once its handler succeeds or it has been tried maxHandlerAttempts times.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	logger := util.GetLogger().With(zap.String("topic", c.reader.Config().Topic))
	logger.Info("Starting Kafka consumer")

	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			fetchFailures++
			logger.Warn("Error fetching message", zap.Int("failures", fetchFailures), zap.Error(err))
			if err := sleepCtx(ctx, backoff(fetchFailures)); err != nil {
				return err
			}
			continue
		}
		fetchFailures = 0

		if err := handleWithRetry(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Skipping ledger event after retries",
				zap.String("type", headerValue(msg, eventTypeHeader)),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn("Error committing message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func handleWithRetry(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxHandlerAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == maxHandlerAttempts {
			break
		}
		if serr := sleepCtx(ctx, backoff(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// backoff doubles from minBackoff per attempt, capped at maxBackoff
func backoff(attempt int) time.Duration {
	d := minBackoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
