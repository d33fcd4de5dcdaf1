// Command tail prints the order events a book publishes to Kafka. It is a
// developer aid for watching a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/erain9/tickbook/config"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/messaging/kafka"
	"github.com/erain9/tickbook/pkg/messaging/queue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	groupID := flag.String("group", "tickbook-tail", "Consumer group for the kafka publisher")
	partition := flag.Int("partition", 0, "Partition to read for the sarama publisher")
	fromStart := flag.Bool("from-start", false, "Read the sarama partition from the oldest offset")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(logging.Config{Level: cfg.Logging.Level, Pretty: true, Output: os.Stdout})
	logger := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := eventLogger(logger)

	switch cfg.Publisher.Kind {
	case config.PublisherKafka:
		consumer := kafka.NewConsumer(cfg.Publisher.Brokers, cfg.Publisher.Topic, *groupID, logger)
		defer consumer.Close()

		logger.Info().Str("topic", cfg.Publisher.Topic).Str("group", *groupID).Msg("Starting Kafka consumer")
		if err := consumer.Consume(ctx, handle); err != nil {
			logger.Fatal().Err(err).Msg("Kafka consumer error")
		}

	case config.PublisherSarama:
		offset := sarama.OffsetNewest
		if *fromStart {
			offset = sarama.OffsetOldest
		}
		consumer, err := queue.NewConsumer(cfg.Publisher.Brokers, cfg.Publisher.Topic, int32(*partition), offset)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
		}
		go func() {
			<-ctx.Done()
			_ = consumer.Close()
		}()

		logger.Info().Str("topic", cfg.Publisher.Topic).Int("partition", *partition).Msg("Starting Kafka consumer")
		if err := consumer.Consume(handle); err != nil {
			logger.Fatal().Err(err).Msg("Kafka consumer error")
		}

	default:
		logger.Fatal().Str("kind", cfg.Publisher.Kind).Msg("publisher.kind must be kafka or sarama to tail events")
	}
}

// eventLogger logs every received event
func eventLogger(logger zerolog.Logger) func(*messaging.OrderEvent) error {
	return func(event *messaging.OrderEvent) error {
		logger.Info().
			Uint64("event_seq", event.EventSeq).
			Str("order_id", event.OrderID).
			Str("symbol", event.Symbol).
			Str("side", event.Side.String()).
			Str("state", string(event.State)).
			Int64("price", event.Price).
			Str("price_decimal", event.PriceDecimal).
			Int64("qty_open", event.QtyOpen).
			Int64("qty_filled", event.QtyFilled).
			Interface("fills", event.Fills).
			Msg("Received order event")
		return nil
	}
}
