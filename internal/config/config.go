// Package config loads the bot configuration from environment variables.
//
// Configuration is read once at process startup; there is no hot-reload.
// Credentials are carried verbatim and must never be logged.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/utils"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultListenAddr  = ":5000"
	DefaultBaseURL     = "https://testnet.binance.vision"
	DefaultTradingPair = "BTCUSDT"
	DefaultTradeAmount = "0.001"
	DefaultLedgerPath  = "trade_history.csv"
)

// defaultBalanceAssets is the fixed allow-list reported by the balance
// endpoint when BALANCE_ASSETS is not set.
var defaultBalanceAssets = []string{"USDT", "BTC", "ETH", "BNB"}

// Config collects every runtime setting for the webhook server.
type Config struct {
	ListenAddr string // HTTP listen address

	// Exchange credentials and endpoint. Empty credentials are allowed so
	// the server can start and report an unconfigured state on /health.
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string

	TradingPair string          // Default trading pair when a payload omits the symbol
	TradeAmount decimal.Decimal // Default trade size in base-asset units

	LedgerPath    string   // Trade history CSV location
	BalanceAssets []string // Asset allow-list for the balance endpoint

	MultiFormat bool   // Enables the full multi-encoding payload normalizer
	LogLevel    string // zerolog level name
}

// Load reads the configuration from the environment and applies defaults.
func Load() (*Config, error) {
	amount, err := decimal.NewFromString(envOrDefault("TRADE_AMOUNT", DefaultTradeAmount))
	if err != nil {
		return nil, fmt.Errorf("invalid TRADE_AMOUNT: %w", err)
	}

	cfg := &Config{
		ListenAddr:       envOrDefault("LISTEN_ADDR", DefaultListenAddr),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceBaseURL:   envOrDefault("BINANCE_BASE_URL", DefaultBaseURL),
		TradingPair:      utils.NormalizeSymbol(envOrDefault("TRADING_PAIR", DefaultTradingPair)),
		TradeAmount:      amount,
		LedgerPath:       envOrDefault("TRADE_HISTORY_FILE", DefaultLedgerPath),
		BalanceAssets:    splitAssets(os.Getenv("BALANCE_ASSETS")),
		MultiFormat:      envOrDefault("WEBHOOK_MULTI_FORMAT", "true") == "true",
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if err := utils.ValidateSymbol(c.TradingPair); err != nil {
		return fmt.Errorf("invalid default trading pair %q: %w", c.TradingPair, err)
	}
	if !c.TradeAmount.IsPositive() {
		return fmt.Errorf("trade amount must be positive, got %s", c.TradeAmount)
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("trade history path cannot be empty")
	}
	return nil
}

// CredentialsConfigured reports whether both API credentials are present.
// Placeholder values from the sample env file count as unconfigured.
func (c *Config) CredentialsConfigured() bool {
	if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
		return false
	}
	return c.BinanceAPIKey != "your_testnet_api_key" &&
		c.BinanceAPISecret != "your_testnet_api_secret"
}

// splitAssets parses a comma-separated asset list, falling back to the
// default allow-list when the input is empty.
func splitAssets(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		out := make([]string, len(defaultBalanceAssets))
		copy(out, defaultBalanceAssets)
		return out
	}

	parts := strings.Split(raw, ",")
	assets := make([]string, 0, len(parts))
	for _, p := range parts {
		if a := strings.ToUpper(strings.TrimSpace(p)); a != "" {
			assets = append(assets, a)
		}
	}
	return assets
}

// envOrDefault gets an environment variable or returns a default value.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
