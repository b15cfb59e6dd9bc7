package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Symbol           string  `mapstructure:"symbol"`
	TradeCurrency    string  `mapstructure:"trade_currency"`
	MinProfitPercent float64 `mapstructure:"min_profit_percent"`
	TradeAmount      float64 `mapstructure:"trade_amount"`
	MaxTradeAmount   float64 `mapstructure:"max_trade_amount"`
	InitialBalance   float64 `mapstructure:"initial_balance"`
	LogLevel         string  `mapstructure:"log_level"`

	CheckInterval     time.Duration `mapstructure:"check_interval"`
	OrderTimeout      time.Duration `mapstructure:"order_timeout"`
	OrderPollInterval time.Duration `mapstructure:"order_poll_interval"`

	Venues   []VenueConfig  `mapstructure:"venues"`
	Database DatabaseConfig `mapstructure:"database"`
}

// VenueConfig defines settings for a single trading venue.
type VenueConfig struct {
	Name         string  `mapstructure:"name"`
	TakerFee     float64 `mapstructure:"taker_fee"`
	MakerFee     float64 `mapstructure:"maker_fee"`
	Symbol       string  `mapstructure:"symbol"`
	APIKeyEnv    string  `mapstructure:"api_key_env"`
	SecretKeyEnv string  `mapstructure:"secret_key_env"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("check_interval", 5*time.Second)
	viper.SetDefault("order_timeout", 60*time.Second)
	viper.SetDefault("order_poll_interval", 5*time.Second)
	viper.SetDefault("log_level", "info")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}
	err = config.Validate()
	return
}

// Validate checks the required parameters. A validation failure is fatal at
// startup; the live loop never revalidates.
func (c *Config) Validate() error {
	if len(c.Venues) == 0 {
		return fmt.Errorf("config: at least one venue is required")
	}
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("config: venue with empty name")
		}
		if v.TakerFee < 0 {
			return fmt.Errorf("config: venue %s: negative taker_fee", v.Name)
		}
	}
	if !strings.Contains(c.Symbol, "/") {
		return fmt.Errorf("config: symbol %q must be in BASE/QUOTE form", c.Symbol)
	}
	if c.TradeCurrency == "" {
		return fmt.Errorf("config: trade_currency is required")
	}
	if c.MinProfitPercent <= 0 {
		return fmt.Errorf("config: min_profit_percent must be positive")
	}
	if c.TradeAmount <= 0 {
		return fmt.Errorf("config: trade_amount must be positive")
	}
	if c.MaxTradeAmount < c.TradeAmount {
		return fmt.Errorf("config: max_trade_amount must be >= trade_amount")
	}
	if c.CheckInterval <= 0 || c.OrderTimeout <= 0 || c.OrderPollInterval <= 0 {
		return fmt.Errorf("config: intervals and timeouts must be positive")
	}
	return nil
}

// BaseCurrency returns the base leg of the canonical symbol ("BTC" of "BTC/USD").
func (c *Config) BaseCurrency() string {
	base, _, _ := strings.Cut(c.Symbol, "/")
	return base
}

// QuoteCurrency returns the quote leg of the canonical symbol ("USD" of "BTC/USD").
func (c *Config) QuoteCurrency() string {
	_, quote, _ := strings.Cut(c.Symbol, "/")
	return quote
}

// VenueSymbol returns the symbol a venue trades the instrument under,
// falling back to the canonical symbol when no override is configured.
func (c *Config) VenueSymbol(venue string) string {
	for _, v := range c.Venues {
		if v.Name == venue && v.Symbol != "" {
			return v.Symbol
		}
	}
	return c.Symbol
}

// FeeTable returns venue name -> taker fee fraction.
func (c *Config) FeeTable() map[string]float64 {
	fees := make(map[string]float64, len(c.Venues))
	for _, v := range c.Venues {
		fees[v.Name] = v.TakerFee
	}
	return fees
}

// SlogLevel maps the configured log_level string to a slog level,
// defaulting to info on unknown values.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
