// Package publisher builds the order event sender selected by configuration
package publisher

import (
	"fmt"

	"github.com/erain9/tickbook/config"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/messaging/kafka"
	"github.com/erain9/tickbook/pkg/messaging/queue"
	"github.com/erain9/tickbook/pkg/messaging/redis"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// Factory returns a constructor for single senders of kind cfg.Kind
func Factory(cfg config.PublisherConfig) (func() (messaging.Sender, error), error) {
	switch cfg.Kind {
	case config.PublisherNone, "":
		return func() (messaging.Sender, error) { return messaging.Discard, nil }, nil
	case config.PublisherKafka:
		return func() (messaging.Sender, error) {
			sender, err := kafka.NewSender(cfg.Brokers, cfg.Topic)
			if err != nil {
				return nil, err
			}
			return sender, nil
		}, nil
	case config.PublisherSarama:
		return func() (messaging.Sender, error) {
			sender, err := queue.NewSender(cfg.Brokers, cfg.Topic)
			if err != nil {
				return nil, err
			}
			return sender, nil
		}, nil
	case config.PublisherRedis:
		return func() (messaging.Sender, error) {
			client := redis.NewClient(redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			logger, err := zap.NewProduction()
			if err != nil {
				logger = zap.NewNop()
			}
			return redis.NewSender(client, cfg.RedisChannel, logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown publisher kind %q", cfg.Kind)
	}
}

// New builds the sender for cfg. Brokered kinds share a pool of PoolSize
// connections.
func New(cfg config.PublisherConfig, logger zerolog.Logger) (messaging.Sender, error) {
	factory, err := Factory(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Kind == config.PublisherNone || cfg.Kind == "" {
		logger.Info().Msg("Order events are discarded")
		return messaging.Discard, nil
	}

	pool, err := messaging.NewPool(cfg.PoolSize, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s publisher: %w", cfg.Kind, err)
	}

	logger.Info().
		Str("kind", cfg.Kind).
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("redis_channel", cfg.RedisChannel).
		Int("pool_size", cfg.PoolSize).
		Msg("Publishing order events")
	return pool, nil
}
