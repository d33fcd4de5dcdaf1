package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/erain9/tickbook/pkg/messaging"
)

const maxRetry = 5

// overridable in tests
var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

// Sender publishes order events to Kafka in protobuf wire format through
// a sarama sync producer
type Sender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSender connects a sync producer to brokers
func NewSender(brokers []string, topic string) (*Sender, error) {
	if topic == "" {
		return nil, fmt.Errorf("empty kafka topic")
	}

	producer, err := newSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Sender{
		producer: producer,
		topic:    topic,
	}, nil
}

// Send encodes event and waits for the broker acknowledgement
func (q *Sender) Send(ctx context.Context, event *messaging.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.ByteEncoder(event.Key()),
		Value: sarama.ByteEncoder(messaging.MarshalOrderEvent(event)),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (q *Sender) Close() error {
	return q.producer.Close()
}

var _ messaging.Sender = (*Sender)(nil)

// Consumer reads order events written by Sender from one partition
type Consumer struct {
	consumer  sarama.Consumer
	topic     string
	partition int32
	offset    int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewConsumer connects to brokers and reads topic's partition from offset
// (sarama.OffsetOldest or sarama.OffsetNewest)
func NewConsumer(brokers []string, topic string, partition int32, offset int64) (*Consumer, error) {
	consumer, err := newConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:  consumer,
		topic:     topic,
		partition: partition,
		offset:    offset,
		done:      make(chan struct{}),
	}, nil
}

// Consume decodes every message and passes it to handle until Close is
// called or the partition is drained and closed
func (c *Consumer) Consume(handle func(*messaging.OrderEvent) error) error {
	pc, err := c.consumer.ConsumePartition(c.topic, c.partition, c.offset)
	if err != nil {
		return fmt.Errorf("failed to consume partition %d: %w", c.partition, err)
	}
	defer pc.Close()

	for {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			event, err := messaging.UnmarshalOrderEvent(msg.Value)
			if err != nil {
				return fmt.Errorf("offset %d: %w", msg.Offset, err)
			}
			if err := handle(event); err != nil {
				return err
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			return cerr
		case <-c.done:
			return nil
		}
	}
}

// Close stops Consume and closes the consumer
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.consumer.Close()
	})
	return err
}
