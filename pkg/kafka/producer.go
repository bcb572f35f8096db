package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one analytics record. Key picks the partition; Value is sent as
// JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes analytics events to one topic. Writes wait for the
// partition leader only; analytics tolerate the rare lost record.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch writes events in one call. Events that cannot be encoded are
// skipped and reported in the returned error; the rest are still sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	messages, encodeErr := encode(events, time.Now())
	if len(messages) > 0 {
		if err := p.writer.WriteMessages(ctx, messages...); err != nil {
			return errors.Join(encodeErr, fmt.Errorf("writing %d messages: %w", len(messages), err))
		}
		p.logger.Debug("messages published", "count", len(messages))
	}
	return encodeErr
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(events []Event, now time.Time) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(events))
	var errs []error
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("encoding event %q: %w", event.Key, err))
			continue
		}
		messages = append(messages, kafka.Message{Key: []byte(event.Key), Value: value, Time: now})
	}
	return messages, errors.Join(errs...)
}
