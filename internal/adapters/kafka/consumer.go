package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Message is one record read from a pipeline topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string // run id
	Type      string // event type header, empty for records written by other producers
	Value     []byte
	Time      time.Time
}

// MessageHandler processes one message. A returned error is logged and the
// consumer moves on.
type MessageHandler func(ctx context.Context, msg Message) error

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	// Topics lists the topics to follow. More than one requires a GroupID.
	Topics   []string
	MinBytes int
	MaxBytes int
	// FromStart replays from the first offset when the group has none committed.
	FromStart bool
}

// Validate reports a configuration kafka-go would reject.
func (c ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.NewValidationError("KAFKA_BROKERS", "at least one broker is required", "")
	}
	if len(c.Topics) == 0 {
		return errors.NewValidationError("topic", "at least one topic is required", "")
	}
	if len(c.Topics) > 1 && c.GroupID == "" {
		return errors.NewValidationError("KAFKA_GROUP_ID", "a consumer group is required to follow several topics", "")
	}
	return nil
}

// Consumer follows one or more pipeline event topics.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer validates cfg and creates the reader.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	start := kafka.LastOffset
	if cfg.FromStart {
		start = kafka.FirstOffset
	}

	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: start,
	}
	if len(cfg.Topics) == 1 {
		rc.Topic = cfg.Topics[0]
	} else {
		rc.GroupTopics = cfg.Topics
	}

	log := logger.Get().With("component", "kafka_consumer")
	log.Infow("Kafka consumer created", "brokers", cfg.Brokers, "group_id", cfg.GroupID, "topics", cfg.Topics)

	return &Consumer{reader: kafka.NewReader(rc), log: log}, nil
}

// Consume reads messages until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.log.Warnw("Failed to read message", "error", err)
			continue
		}

		if err := handler(ctx, fromKafka(msg)); err != nil {
			c.log.Warnw("Failed to handle message",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"run_id", string(msg.Key),
				"error", err,
			)
		}
	}
}

// read checks for shutdown before blocking on the reader.
func (c *Consumer) read(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil && ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	return msg, err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func fromKafka(m kafka.Message) Message {
	out := Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     m.Value,
		Time:      m.Time,
	}
	for _, h := range m.Headers {
		if h.Key == HeaderEventType {
			out.Type = string(h.Value)
		}
	}
	return out
}
