package marketmaker

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the market maker
type Config struct {
	MarketSymbol  string
	MarketMakerID string

	// Quote ladder, all in ticks
	MidPrice    int64
	NumLevels   int
	SpreadTicks int64
	StepTicks   int64
	OrderQty    int64

	// DriftTicks bounds the random walk of the mid price per update
	DriftTicks     int64
	UpdateInterval time.Duration
	Seed           int64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("MARKET_SYMBOL", "BTC-USD")
	v.SetDefault("MARKET_MAKER_ID", "mm-01")
	v.SetDefault("MID_PRICE", 10000)
	v.SetDefault("NUM_LEVELS", 3)
	v.SetDefault("SPREAD_TICKS", 10)
	v.SetDefault("STEP_TICKS", 5)
	v.SetDefault("ORDER_QTY", 10)
	v.SetDefault("DRIFT_TICKS", 3)
	v.SetDefault("UPDATE_INTERVAL_MS", 500)
	v.SetDefault("SEED", 1)

	v.AutomaticEnv()

	cfg := &Config{
		MarketSymbol:   v.GetString("MARKET_SYMBOL"),
		MarketMakerID:  v.GetString("MARKET_MAKER_ID"),
		MidPrice:       v.GetInt64("MID_PRICE"),
		NumLevels:      v.GetInt("NUM_LEVELS"),
		SpreadTicks:    v.GetInt64("SPREAD_TICKS"),
		StepTicks:      v.GetInt64("STEP_TICKS"),
		OrderQty:       v.GetInt64("ORDER_QTY"),
		DriftTicks:     v.GetInt64("DRIFT_TICKS"),
		UpdateInterval: time.Duration(v.GetInt("UPDATE_INTERVAL_MS")) * time.Millisecond,
		Seed:           v.GetInt64("SEED"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.MarketSymbol == "" {
		return fmt.Errorf("MARKET_SYMBOL must not be empty")
	}
	if cfg.MarketMakerID == "" {
		return fmt.Errorf("MARKET_MAKER_ID must not be empty")
	}
	if cfg.MidPrice <= 0 {
		return fmt.Errorf("MID_PRICE must be positive")
	}
	if cfg.NumLevels <= 0 {
		return fmt.Errorf("NUM_LEVELS must be positive")
	}
	if cfg.SpreadTicks <= 0 {
		return fmt.Errorf("SPREAD_TICKS must be positive")
	}
	if cfg.StepTicks <= 0 {
		return fmt.Errorf("STEP_TICKS must be positive")
	}
	if cfg.OrderQty <= 0 {
		return fmt.Errorf("ORDER_QTY must be positive")
	}
	if cfg.DriftTicks < 0 {
		return fmt.Errorf("DRIFT_TICKS must not be negative")
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_MS must be positive")
	}
	return nil
}
