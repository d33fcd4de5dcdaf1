package marketmaker

import (
	"context"
	"fmt"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/rs/zerolog"
)

// MarketMakerStrategy defines the interface for market making strategies
type MarketMakerStrategy interface {
	// CalculateOrders returns the quotes to place around mid for one round
	CalculateOrders(ctx context.Context, mid int64, round uint64) ([]core.OrderRequest, error)
}

// LayeredSymmetricQuoting quotes NumLevels bids and asks symmetrically
// around the mid price, StepTicks apart, with SpreadTicks between the
// innermost bid and ask
type LayeredSymmetricQuoting struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewLayeredSymmetricQuoting creates a new LayeredSymmetricQuoting strategy
func NewLayeredSymmetricQuoting(cfg *Config, logger zerolog.Logger) MarketMakerStrategy {
	return &LayeredSymmetricQuoting{
		cfg:    cfg,
		logger: logger.With().Str("component", "LayeredSymmetricQuoting").Logger(),
	}
}

// CalculateOrders implements MarketMakerStrategy. Bid levels that would fall
// below one tick are skipped.
func (s *LayeredSymmetricQuoting) CalculateOrders(_ context.Context, mid int64, round uint64) ([]core.OrderRequest, error) {
	if mid <= 0 {
		return nil, fmt.Errorf("invalid mid price %d", mid)
	}

	halfSpread := s.cfg.SpreadTicks / 2
	orders := make([]core.OrderRequest, 0, s.cfg.NumLevels*2)

	for i := 1; i <= s.cfg.NumLevels; i++ {
		offset := halfSpread + int64(i-1)*s.cfg.StepTicks
		bidPrice := mid - offset
		askPrice := mid + offset
		if s.cfg.SpreadTicks%2 == 1 {
			askPrice++
		}

		if bidPrice >= 1 {
			orders = append(orders, core.OrderRequest{
				ID:     fmt.Sprintf("%s-buy-%d-%d", s.cfg.MarketMakerID, i, round),
				Side:   core.Buy,
				Price:  bidPrice,
				Qty:    s.cfg.OrderQty,
				Symbol: s.cfg.MarketSymbol,
			})
		}
		orders = append(orders, core.OrderRequest{
			ID:     fmt.Sprintf("%s-sell-%d-%d", s.cfg.MarketMakerID, i, round),
			Side:   core.Sell,
			Price:  askPrice,
			Qty:    s.cfg.OrderQty,
			Symbol: s.cfg.MarketSymbol,
		})

		s.logger.Debug().
			Int("level", i).
			Int64("bid_price", bidPrice).
			Int64("ask_price", askPrice).
			Int64("quantity", s.cfg.OrderQty).
			Msg("Calculated order pair")
	}

	return orders, nil
}
