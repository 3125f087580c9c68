// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig                 `yaml:"app"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Strategy  StrategyConfig            `yaml:"strategy"`
	Monitor   MonitorConfig             `yaml:"monitor"`
	Engine    EngineConfig              `yaml:"engine"`
	System    SystemConfig              `yaml:"system"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Exchange     string `yaml:"exchange"`      // exchange handler to run against
	DatabasePath string `yaml:"database_path"` // sqlite file path
	PriceFeedURL string `yaml:"price_feed_url"`
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey    string  `yaml:"api_key"`
	SecretKey string  `yaml:"secret_key"`
	BaseURL   string  `yaml:"base_url"`
	FeeRate   float64 `yaml:"fee_rate"`
}

// StrategyConfig contains the strategy parameters. Owned by configuration,
// read-only to strategies.
type StrategyConfig struct {
	Kinds             []string `yaml:"kinds"`
	MinMarketCap      float64  `yaml:"min_market_cap"`
	MaxAgeHours       float64  `yaml:"max_age_hours"`
	MaxInvestment     float64  `yaml:"max_investment"`
	MinVolumeIncrease float64  `yaml:"min_volume_increase"`
	StopLossPct       float64  `yaml:"stop_loss_pct"`
	TakeProfitPct     float64  `yaml:"take_profit_pct"`
}

// MonitorConfig contains position monitor settings
type MonitorConfig struct {
	PeakDropWaitSeconds int     `yaml:"peak_drop_wait_seconds"`
	StopLossPct         float64 `yaml:"stop_loss_pct"`
	PriceHistorySize    int     `yaml:"price_history_size"`
}

// EngineConfig contains the polling loop settings
type EngineConfig struct {
	PollIntervalSeconds    int    `yaml:"poll_interval_seconds"`
	MaxBackoffSeconds      int    `yaml:"max_backoff_seconds"`
	ExchangeTimeoutSeconds int    `yaml:"exchange_timeout_seconds"`
	QuoteCurrency          string `yaml:"quote_currency"`
	FetchPoolSize          int    `yaml:"fetch_pool_size"`
	OrderRateLimit         int    `yaml:"order_rate_limit"`
	OrderRateBurst         int    `yaml:"order_rate_burst"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.Expand(string(data), os.Getenv)

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.PollIntervalSeconds == 0 {
		c.Engine.PollIntervalSeconds = 5
	}
	if c.Engine.MaxBackoffSeconds == 0 {
		c.Engine.MaxBackoffSeconds = 80
	}
	if c.Engine.ExchangeTimeoutSeconds == 0 {
		c.Engine.ExchangeTimeoutSeconds = 10
	}
	if c.Engine.QuoteCurrency == "" {
		c.Engine.QuoteCurrency = "USDT"
	}
	if c.Engine.FetchPoolSize == 0 {
		c.Engine.FetchPoolSize = 4
	}
	if c.Engine.OrderRateLimit == 0 {
		c.Engine.OrderRateLimit = 25
	}
	if c.Engine.OrderRateBurst == 0 {
		c.Engine.OrderRateBurst = 30
	}
	if c.Monitor.PeakDropWaitSeconds == 0 {
		c.Monitor.PeakDropWaitSeconds = 30
	}
	if c.Monitor.PriceHistorySize == 0 {
		c.Monitor.PriceHistorySize = 288
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if len(c.Strategy.Kinds) == 0 {
		c.Strategy.Kinds = []string{"volume_spike"}
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateStrategyConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateMonitorConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	if c.App.Exchange == "" {
		return ValidationError{
			Field:   "app.exchange",
			Message: "an exchange must be selected",
		}
	}
	if c.App.DatabasePath == "" {
		return ValidationError{
			Field:   "app.database_path",
			Message: "database path is required",
		}
	}
	return nil
}

func (c *Config) validateStrategyConfig() error {
	if c.Strategy.MaxInvestment <= 0 {
		return ValidationError{
			Field:   "strategy.max_investment",
			Value:   c.Strategy.MaxInvestment,
			Message: "max investment must be positive",
		}
	}
	if c.Strategy.StopLossPct < 0 {
		return ValidationError{
			Field:   "strategy.stop_loss_pct",
			Value:   c.Strategy.StopLossPct,
			Message: "stop loss percentage must not be negative",
		}
	}
	if c.Strategy.TakeProfitPct < 0 {
		return ValidationError{
			Field:   "strategy.take_profit_pct",
			Value:   c.Strategy.TakeProfitPct,
			Message: "take profit percentage must not be negative",
		}
	}
	return nil
}

func (c *Config) validateMonitorConfig() error {
	if c.Monitor.PeakDropWaitSeconds < 0 {
		return ValidationError{
			Field:   "monitor.peak_drop_wait_seconds",
			Value:   c.Monitor.PeakDropWaitSeconds,
			Message: "wait must not be negative",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// PollInterval returns the engine polling interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// MaxBackoff returns the engine backoff ceiling as a duration
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Engine.MaxBackoffSeconds) * time.Second
}

// ExchangeTimeout returns the per-call exchange timeout as a duration
func (c *Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.Engine.ExchangeTimeoutSeconds) * time.Second
}

// PeakDropWait returns the trailing-exit confirmation window as a duration
func (c *Config) PeakDropWait() time.Duration {
	return time.Duration(c.Monitor.PeakDropWaitSeconds) * time.Second
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	configCopy.Exchanges = make(map[string]ExchangeConfig, len(c.Exchanges))
	for name, exchange := range c.Exchanges {
		exchange.APIKey = maskString(exchange.APIKey)
		exchange.SecretKey = maskString(exchange.SecretKey)
		configCopy.Exchanges[name] = exchange
	}

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		App: AppConfig{
			Exchange:     "paper",
			DatabasePath: "trade_engine.db",
		},
		Exchanges: map[string]ExchangeConfig{
			"paper": {FeeRate: 0.001},
		},
		Strategy: StrategyConfig{
			Kinds:             []string{"volume_spike", "trending_coins"},
			MinMarketCap:      1_000_000,
			MaxAgeHours:       72,
			MaxInvestment:     100,
			MinVolumeIncrease: 50,
			StopLossPct:       5,
			TakeProfitPct:     10,
		},
		Monitor: MonitorConfig{
			PeakDropWaitSeconds: 30,
			StopLossPct:         5,
			PriceHistorySize:    288,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9091,
			EnableMetrics: false,
		},
	}
	cfg.applyDefaults()
	return cfg
}
