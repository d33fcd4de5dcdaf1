package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/tickbook/config"
	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/marketmaker"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/messaging/publisher"
	"github.com/erain9/tickbook/pkg/otel"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	restorePath := flag.String("restore", "", "Start from a JSON book snapshot, e.g. one written by replay -snapshot")
	withMarketMaker := flag.Bool("market-maker", false, "Run the in-process market maker (configured from the environment)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to print configuration: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Responses own stdout, logs go to stderr
	logging.Setup(cfg.Logging.Logging(os.Stderr))
	logger := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
		RuntimeMetrics:   cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer cleanup()

	metrics, err := otel.NewOrderBookMetrics(otel.Meter())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create metrics")
	}

	sender, err := publisher.New(cfg.Publisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create publisher")
	}

	format, err := messaging.NewPriceFormat(cfg.Engine.TickSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid tick size")
	}

	engine, err := openEngine(cfg.Engine, *restorePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order book")
	}

	book := service.NewBook(engine, sender,
		service.WithPriceFormat(format),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)
	defer func() {
		if err := book.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close publisher")
		}
	}()

	logger.Info().
		Str("symbol", engine.Symbol()).
		Str("tick_size", cfg.Engine.TickSize).
		Str("publisher", cfg.Publisher.Kind).
		Int("restored_orders", engine.Len()).
		Msg("Order book ready")

	var mm *marketmaker.MarketMaker
	if *withMarketMaker {
		if mm, err = startMarketMaker(ctx, cfg, book); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start market maker")
		}
	}

	h := &handler{book: book, logger: logger}
	if err := h.serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("Request loop failed")
	}

	if mm != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mm.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("Market maker shutdown error")
		}
		cancel()
	}

	logger.Info().Msg("Shutdown complete")
}

// openEngine creates the book, restoring it from the snapshot file at path
// when one is given
func openEngine(cfg config.EngineConfig, path string) (*core.OrderBook, error) {
	if path == "" {
		return core.NewOrderBook(cfg.Core())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return core.Restore(cfg.Core(), snap)
}

func startMarketMaker(ctx context.Context, cfg *config.Config, book *service.Book) (*marketmaker.MarketMaker, error) {
	mmCfg, err := marketmaker.LoadConfig()
	if err != nil {
		return nil, err
	}
	mmCfg.MarketSymbol = cfg.Engine.Symbol

	fetcher := marketmaker.NewRandomWalk(mmCfg.MidPrice, mmCfg.DriftTicks, cfg.Engine.MinPrice, mmCfg.Seed)
	strategy := marketmaker.NewLayeredSymmetricQuoting(mmCfg, log.Logger)
	mm := marketmaker.NewMarketMaker(mmCfg, log.Logger, book, fetcher, strategy)
	mm.Start(ctx)
	return mm, nil
}
