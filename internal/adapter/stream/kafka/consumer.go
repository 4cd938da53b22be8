package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/linkcut/linkcut/internal/entity"
	"github.com/segmentio/kafka-go"
)

// DefaultConsumerGroup is the analytics consumer group id.
const DefaultConsumerGroup = "analytics"

// NewReader builds the kafka reader the consumer fetches from.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	if groupID == "" {
		groupID = DefaultConsumerGroup
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// messageReader is the subset of kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ClickHandler processes one consumed click event.
type ClickHandler interface {
	HandleClick(ctx context.Context, event *entity.ClickEvent) error
}

// ClickConsumer runs the fetch/handle/commit loop feeding the analytics
// aggregator. Malformed payloads are logged, committed, and skipped; handler
// failures leave the message uncommitted so it is retried after a rebalance.
type ClickConsumer struct {
	reader  messageReader
	handler ClickHandler
	logger  *slog.Logger
}

func NewClickConsumer(reader messageReader, handler ClickHandler, logger *slog.Logger) *ClickConsumer {
	return &ClickConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
	}
}

// Run consumes until ctx is canceled or the reader is closed.
func (c *ClickConsumer) Run(ctx context.Context) error {
	const op = "adapter.stream.kafka.ClickConsumer.Run"

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("%s: failed to fetch message: %w", op, err)
		}

		var event entity.ClickEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("skipping malformed click event",
				slog.String("key", string(msg.Key)),
				slog.Any("err", err))

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("%s: failed to commit message: %w", op, err)
			}
			continue
		}

		if err := c.handler.HandleClick(ctx, &event); err != nil {
			c.logger.Error("failed to process click event",
				slog.String("short_code", event.ShortCode),
				slog.Any("err", err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("%s: failed to commit message: %w", op, err)
		}
	}
}
