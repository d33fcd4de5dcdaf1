package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/erain9/tickbook/config"
	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/marketmaker"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/messaging/publisher"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	workers := flag.Int("workers", 8, "Concurrent callers")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for the order flow")
	requote := flag.Duration("requote", 100*time.Millisecond, "Market maker requote interval, 0 disables requoting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Logging(os.Stderr))
	logger := log.Logger

	if err := validateLoadgen(cfg.Loadgen); err != nil {
		logger.Fatal().Err(err).Msg("Invalid load generator settings")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sender, err := publisher.New(cfg.Publisher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create publisher")
	}
	engine, err := core.NewOrderBook(cfg.Engine.Core())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order book")
	}
	format, err := messaging.NewPriceFormat(cfg.Engine.TickSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid tick size")
	}
	book := service.NewBook(engine, sender, service.WithPriceFormat(format), service.WithLogger(logger))
	defer book.Close()

	mm := newMarketMaker(cfg, *seed, *requote, book)
	if _, err := mm.Requote(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed quotes")
	}
	if *requote > 0 {
		mm.Start(ctx)
	}

	logger.Info().
		Int("orders", cfg.Loadgen.Orders).
		Int("rate", cfg.Loadgen.Rate).
		Int("workers", *workers).
		Int64("seed", *seed).
		Msg("Starting load test")

	rep, err := run(ctx, book, newGenerator(cfg.Loadgen, cfg.Engine.Symbol, *seed), *workers)
	if err != nil {
		logger.Error().Err(err).Msg("Load test interrupted")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := mm.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Market maker shutdown error")
	}

	if rep != nil {
		printReport(os.Stdout, rep, book)
	}
}

func validateLoadgen(cfg config.LoadgenConfig) error {
	switch {
	case cfg.Orders <= 0:
		return fmt.Errorf("loadgen.orders must be positive")
	case cfg.Rate < 0:
		return fmt.Errorf("loadgen.rate must not be negative")
	case cfg.Levels <= 0:
		return fmt.Errorf("loadgen.levels must be positive")
	case cfg.SpreadTicks <= 0, cfg.StepTicks <= 0:
		return fmt.Errorf("loadgen.spread_ticks and loadgen.step_ticks must be positive")
	case cfg.OrderQty <= 0:
		return fmt.Errorf("loadgen.order_qty must be positive")
	case cfg.MidPrice <= 0:
		return fmt.Errorf("loadgen.mid_price must be positive")
	case cfg.CancelRatio < 0 || cfg.CancelRatio > 100:
		return fmt.Errorf("loadgen.cancel_ratio must be a percentage")
	}
	return nil
}

func newMarketMaker(cfg *config.Config, seed int64, interval time.Duration, book *service.Book) *marketmaker.MarketMaker {
	if interval <= 0 {
		interval = time.Second
	}
	mmCfg := &marketmaker.Config{
		MarketSymbol:   cfg.Engine.Symbol,
		MarketMakerID:  "loadtest-mm",
		MidPrice:       cfg.Loadgen.MidPrice,
		NumLevels:      cfg.Loadgen.Levels,
		SpreadTicks:    cfg.Loadgen.SpreadTicks,
		StepTicks:      cfg.Loadgen.StepTicks,
		OrderQty:       cfg.Loadgen.OrderQty * 5,
		DriftTicks:     cfg.Loadgen.StepTicks,
		UpdateInterval: interval,
		Seed:           seed,
	}
	fetcher := marketmaker.NewRandomWalk(mmCfg.MidPrice, mmCfg.DriftTicks, cfg.Engine.MinPrice, seed)
	strategy := marketmaker.NewLayeredSymmetricQuoting(mmCfg, log.Logger)
	return marketmaker.NewMarketMaker(mmCfg, log.Logger, book, fetcher, strategy)
}

func printReport(w io.Writer, rep *report, book *service.Book) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	good := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, title("Load test results"))
	fmt.Fprintf(w, "  elapsed      %v\n", rep.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  throughput   %s calls/s\n", good(fmt.Sprintf("%.0f", rep.Throughput())))
	fmt.Fprintf(w, "  submitted    %d\n", rep.Submitted)
	fmt.Fprintf(w, "  cancelled    %d\n", rep.Cancelled)
	if rep.Rejected > 0 {
		fmt.Fprintf(w, "  rejected     %s\n", bad(rep.Rejected))
	} else {
		fmt.Fprintf(w, "  rejected     0\n")
	}
	fmt.Fprintf(w, "  trades       %d (volume %d)\n", rep.Trades, rep.Volume)

	fmt.Fprintln(w, title("Latency (µs)"))
	for _, q := range []float64{50, 90, 99, 99.9} {
		fmt.Fprintf(w, "  p%-10v %d\n", q, rep.Latency.ValueAtQuantile(q))
	}
	fmt.Fprintf(w, "  max         %d\n", rep.Latency.Max())
	fmt.Fprintf(w, "  mean        %.1f\n", rep.Latency.Mean())

	bid, ask, ok := book.Spread()
	if ok {
		fmt.Fprintf(w, "%s %d / %d\n", title("Final spread"), bid, ask)
	}
}
