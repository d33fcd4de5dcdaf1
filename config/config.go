package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TICKBOOK_ENGINE_SYMBOL
const EnvPrefix = "TICKBOOK"

// Publisher kinds
const (
	PublisherNone   = "none"
	PublisherKafka  = "kafka"
	PublisherSarama = "sarama"
	PublisherRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Publisher PublisherConfig `mapstructure:"publisher" yaml:"publisher"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Loadgen   LoadgenConfig   `mapstructure:"loadgen" yaml:"loadgen"`
}

// EngineConfig describes the traded instrument
type EngineConfig struct {
	Symbol   string `mapstructure:"symbol" yaml:"symbol"`
	MinPrice int64  `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice int64  `mapstructure:"max_price" yaml:"max_price"`
	MaxQty   int64  `mapstructure:"max_qty" yaml:"max_qty"`
	// TickSize is the decimal value of one price tick, used for display only
	TickSize string `mapstructure:"tick_size" yaml:"tick_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// PublisherConfig selects where order events go
type PublisherConfig struct {
	Kind          string   `mapstructure:"kind" yaml:"kind"`
	Brokers       []string `mapstructure:"brokers" yaml:"brokers"`
	Topic         string   `mapstructure:"topic" yaml:"topic"`
	PoolSize      int      `mapstructure:"pool_size" yaml:"pool_size"`
	RedisAddr     string   `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string   `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int      `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannel  string   `mapstructure:"redis_channel" yaml:"redis_channel"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// LoadgenConfig drives cmd/loadtest
type LoadgenConfig struct {
	Orders      int   `mapstructure:"orders" yaml:"orders"`
	Rate        int   `mapstructure:"rate" yaml:"rate"`
	Levels      int   `mapstructure:"levels" yaml:"levels"`
	SpreadTicks int64 `mapstructure:"spread_ticks" yaml:"spread_ticks"`
	StepTicks   int64 `mapstructure:"step_ticks" yaml:"step_ticks"`
	OrderQty    int64 `mapstructure:"order_qty" yaml:"order_qty"`
	MidPrice    int64 `mapstructure:"mid_price" yaml:"mid_price"`
	CancelRatio int   `mapstructure:"cancel_ratio" yaml:"cancel_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.symbol", "BTC-USD")
	v.SetDefault("engine.min_price", 1)
	v.SetDefault("engine.max_price", core.DefaultMaxPrice)
	v.SetDefault("engine.max_qty", core.DefaultMaxQty)
	v.SetDefault("engine.tick_size", "0.01")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("publisher.kind", PublisherNone)
	v.SetDefault("publisher.brokers", []string{"localhost:9092"})
	v.SetDefault("publisher.topic", "tickbook-orders")
	v.SetDefault("publisher.pool_size", 4)
	v.SetDefault("publisher.redis_addr", "localhost:6379")
	v.SetDefault("publisher.redis_password", "")
	v.SetDefault("publisher.redis_db", 0)
	v.SetDefault("publisher.redis_channel", "tickbook:orders")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "tickbook")

	v.SetDefault("loadgen.orders", 100000)
	v.SetDefault("loadgen.rate", 50000)
	v.SetDefault("loadgen.levels", 5)
	v.SetDefault("loadgen.spread_ticks", 10)
	v.SetDefault("loadgen.step_ticks", 5)
	v.SetDefault("loadgen.order_qty", 10)
	v.SetDefault("loadgen.mid_price", 10000)
	v.SetDefault("loadgen.cancel_ratio", 10)
}

// Load reads the configuration from path (optional), then environment
// variables prefixed with TICKBOOK, on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	engine := c.Engine.Core()
	if err := engine.Validate(); err != nil {
		return err
	}
	tick, err := c.Engine.Tick()
	if err != nil {
		return err
	}
	if limit := messaging.MaxTicks(tick); engine.MaxPrice > limit {
		return fmt.Errorf("engine.max_price %d overflows tick size %s, largest is %d", engine.MaxPrice, c.Engine.TickSize, limit)
	}

	switch c.Logging.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be json or pretty, got %q", c.Logging.Format)
	}

	switch c.Publisher.Kind {
	case PublisherNone:
	case PublisherKafka, PublisherSarama:
		if len(c.Publisher.Brokers) == 0 {
			return errors.New("publisher.brokers must not be empty")
		}
		if c.Publisher.Topic == "" {
			return errors.New("publisher.topic must not be empty")
		}
	case PublisherRedis:
		if c.Publisher.RedisAddr == "" {
			return errors.New("publisher.redis_addr must not be empty")
		}
		if c.Publisher.RedisChannel == "" {
			return errors.New("publisher.redis_channel must not be empty")
		}
	default:
		return fmt.Errorf("unknown publisher.kind %q", c.Publisher.Kind)
	}
	if c.Publisher.PoolSize <= 0 {
		return errors.New("publisher.pool_size must be positive")
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint must not be empty")
	}
	return nil
}

// Core converts the engine section for core.NewOrderBook
func (e EngineConfig) Core() core.Config {
	return core.Config{
		Symbol:   e.Symbol,
		MinPrice: e.MinPrice,
		MaxPrice: e.MaxPrice,
		MaxQty:   e.MaxQty,
	}
}

// Tick parses TickSize
func (e EngineConfig) Tick() (fpdecimal.Decimal, error) {
	tick, err := messaging.ParseTick(e.TickSize)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("engine.tick_size: %w", err)
	}
	return tick, nil
}

// Logging converts the logging section for logging.Setup
func (l LoggingConfig) Logging(out io.Writer) logging.Config {
	return logging.Config{
		Level:  l.Level,
		Pretty: l.Format == "pretty",
		Output: out,
	}
}

// Dump renders the effective configuration as YAML
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
