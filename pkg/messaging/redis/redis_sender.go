package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options represents configuration options for Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client from opts
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// Sender publishes order events on a Redis channel and keeps the latest
// event per order in a hash, so late subscribers can catch up with HGETALL.
type Sender struct {
	client  *redis.Client
	channel string
	lastKey string
	logger  *zap.Logger
}

// NewSender creates a sender publishing on channel
func NewSender(client *redis.Client, channel string, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		client:  client,
		channel: channel,
		lastKey: fmt.Sprintf("%s:last", channel),
		logger:  logger,
	}
}

// LastKey is the hash holding the latest event of every order
func (s *Sender) LastKey() string {
	return s.lastKey
}

// Send publishes event and records it as the order's latest state
func (s *Sender) Send(ctx context.Context, event *messaging.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.lastKey, event.OrderID, data)
	publish := pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to publish order event",
			zap.String("orderID", event.OrderID),
			zap.Uint64("eventSeq", event.EventSeq),
			zap.Error(err))
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	s.logger.Debug("published order event",
		zap.String("orderID", event.OrderID),
		zap.String("state", string(event.State)),
		zap.Int64("subscribers", publish.Val()))
	return nil
}

// Last returns the latest published event of orderID
func (s *Sender) Last(ctx context.Context, orderID string) (*messaging.OrderEvent, error) {
	data, err := s.client.HGet(ctx, s.lastKey, orderID).Bytes()
	if err != nil {
		return nil, err
	}

	var event messaging.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}

// Close closes the Redis client
func (s *Sender) Close() error {
	return s.client.Close()
}

var _ messaging.Sender = (*Sender)(nil)
