package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes domain events as JSON. The topic is set per message, so a
// single writer serves every topic.
type Publisher struct {
	writer messageWriter
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a publisher writing to topicPrefix-prefixed topics on brokers.
func NewPublisher(brokers []string, topicPrefix string, logger *zap.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}, topicPrefix, logger)
}

func newPublisher(w messageWriter, topicPrefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		writer: w,
		prefix: topicPrefix,
		logger: logger.Named("kafka"),
	}
}

// Publish keys the message so events for one trade or user land on one
// partition and keep their order.
func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", event, err)
	}

	msg := kafka.Message{
		Topic: p.prefix + topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(fmt.Sprintf("%T", event))},
		},
		Time: time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("kafka write failed", zap.String("topic", msg.Topic), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	p.logger.Debug("event published", zap.String("topic", msg.Topic), zap.String("key", key))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
