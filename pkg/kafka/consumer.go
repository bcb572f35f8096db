// Package kafka carries analytics events from the searcher to the analytics
// service over segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. A non-nil error leaves the message
// uncommitted so the group redelivers it after a rebalance or restart.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ConsumerStats summarises a consumer for health reporting.
type ConsumerStats struct {
	Lag       int64 `json:"lag"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

func (s ConsumerStats) String() string {
	return fmt.Sprintf("lag %d, processed %d, failed %d", s.Lag, s.Processed, s.Failed)
}

// Consumer reads one topic as a member of the configured group.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	logger    *slog.Logger
	processed atomic.Int64
	failed    atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.FirstOffset,
		}),
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. Messages are
// committed one at a time after their handler succeeds.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		if err != nil {
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		if !c.process(ctx, msg) {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.failed.Add(1)
		c.logger.Error("failed to process message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return false
	}
	c.processed.Add(1)
	return true
}

// Stats reports group lag and handler outcomes so far.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Lag:       c.reader.Stats().Lag,
		Processed: c.processed.Load(),
		Failed:    c.failed.Load(),
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
