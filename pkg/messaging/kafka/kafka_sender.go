package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

const sendTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender publishes order events to Kafka as JSON
type Sender struct {
	writer messageWriter
	topic  string
}

// NewSender creates a Kafka sender writing to topic
func NewSender(brokers []string, topic string) (*Sender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("empty kafka topic")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &Sender{
		writer: writer,
		topic:  topic,
	}, nil
}

// Send writes event keyed by its symbol
func (k *Sender) Send(ctx context.Context, event *messaging.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   event.Key(),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka writer
func (k *Sender) Close() error {
	return k.writer.Close()
}

var _ messaging.Sender = (*Sender)(nil)
