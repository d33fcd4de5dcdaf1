package marketmaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/rs/zerolog"
)

// OrderPlacer defines the interface for placing and canceling orders.
// *service.Book implements it.
type OrderPlacer interface {
	Submit(ctx context.Context, req core.OrderRequest) (*service.Result, error)
	Cancel(ctx context.Context, id string) (*service.Result, error)
}

// MarketMaker keeps a ladder of quotes on the book, replacing them every
// UpdateInterval around the latest mid price
type MarketMaker struct {
	cfg          *Config
	logger       zerolog.Logger
	orderPlacer  OrderPlacer
	priceFetcher PriceFetcher
	strategy     MarketMakerStrategy

	mu           sync.Mutex
	activeOrders map[string]struct{}
	round        uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMarketMaker creates a new market maker
func NewMarketMaker(cfg *Config, logger zerolog.Logger, orderPlacer OrderPlacer, priceFetcher PriceFetcher, strategy MarketMakerStrategy) *MarketMaker {
	return &MarketMaker{
		cfg:          cfg,
		logger:       logger.With().Str("component", "MarketMaker").Logger(),
		orderPlacer:  orderPlacer,
		priceFetcher: priceFetcher,
		strategy:     strategy,
		activeOrders: make(map[string]struct{}),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the market making loop
func (m *MarketMaker) Start(ctx context.Context) {
	m.logger.Info().
		Str("market_symbol", m.cfg.MarketSymbol).
		Dur("update_interval", m.cfg.UpdateInterval).
		Msg("Starting market maker")

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop shuts the loop down and cancels every quote still resting
func (m *MarketMaker) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for market maker to stop: %w", ctx.Err())
	}

	if err := m.cancelAllOrders(ctx); err != nil {
		return fmt.Errorf("failed to cancel orders during shutdown: %w", err)
	}

	m.logger.Info().Msg("Market maker stopped")
	return nil
}

func (m *MarketMaker) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if _, err := m.Requote(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Failed to update orders")
			}
		}
	}
}

// Requote cancels the current quotes and places a fresh ladder. It returns
// how many quotes were placed.
func (m *MarketMaker) Requote(ctx context.Context) (int, error) {
	price, err := m.priceFetcher.FetchPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price: %w", err)
	}

	m.mu.Lock()
	m.round++
	round := m.round
	m.mu.Unlock()

	orders, err := m.strategy.CalculateOrders(ctx, price, round)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate orders: %w", err)
	}

	if err := m.cancelAllOrders(ctx); err != nil {
		return 0, fmt.Errorf("failed to cancel existing orders: %w", err)
	}

	placed := 0
	for _, order := range orders {
		result, err := m.orderPlacer.Submit(ctx, order)
		if err != nil && result == nil {
			m.logger.Error().Err(err).
				Str("order_id", order.ID).
				Str("side", order.Side.String()).
				Int64("price", order.Price).
				Msg("Failed to place order")
			continue
		}
		placed++

		// a quote that crossed and filled outright has nothing to cancel later
		if stillOpen(result, order.ID) {
			m.mu.Lock()
			m.activeOrders[order.ID] = struct{}{}
			m.mu.Unlock()
		}
	}

	m.logger.Debug().
		Int64("mid", price).
		Uint64("round", round).
		Int("placed", placed).
		Msg("Requoted")
	return placed, nil
}

// Active returns the ids of quotes the market maker believes are resting
func (m *MarketMaker) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.activeOrders))
	for id := range m.activeOrders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MarketMaker) cancelAllOrders(ctx context.Context) error {
	var errs []error
	for _, id := range m.Active() {
		_, err := m.orderPlacer.Cancel(ctx, id)
		switch {
		case err == nil,
			errors.Is(err, core.ErrOrderNotCancelable),
			errors.Is(err, core.ErrOrderNotFound):
			// filled in the meantime, or gone
		case errors.Is(err, service.ErrPublishFailed):
			// cancelled on the book, only the event was lost
			m.logger.Warn().Err(err).Str("order_id", id).Msg("Cancel not published")
		default:
			m.logger.Error().Err(err).Str("order_id", id).Msg("Failed to cancel order")
			errs = append(errs, err)
			continue
		}

		m.mu.Lock()
		delete(m.activeOrders, id)
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// stillOpen reports the state of id in its last event of result
func stillOpen(result *service.Result, id string) bool {
	for i := len(result.Events) - 1; i >= 0; i-- {
		if result.Events[i].OrderID == id {
			return result.Events[i].State == core.StateOpen
		}
	}
	return true
}
