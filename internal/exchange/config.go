// Package exchange provides the Binance Spot REST connector used for
// account state, market prices, and order placement.
//
// This file contains shared configuration structures and validation used by
// the connector. It provides a common foundation for configuration
// management and error handling.
package exchange

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConfig indicates that the provided Config contains invalid values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredentials indicates a signed endpoint was called without
	// API credentials configured.
	ErrMissingCredentials = errors.New("binance api credentials not configured")
)

// Config provides connection parameters for the Binance REST connector.
type Config struct {
	// BaseURL is the REST endpoint of the exchange API. The default points
	// at the spot testnet; production requires an explicit override.
	BaseURL string

	// APIKey and APISecret authenticate signed endpoints (account, orders).
	// They may be empty, in which case only public endpoints work and the
	// health surface reports credentials as unconfigured.
	APIKey    string
	APISecret string

	// Timeout bounds every REST call so a stalled exchange surfaces as an
	// error instead of a hung webhook.
	Timeout time.Duration

	// RecvWindow is the signed-request validity window in milliseconds.
	RecvWindow int64
}

// defaultConfig provides sensible default configuration values for testnet
// connections.
var defaultConfig = Config{
	BaseURL:    "https://testnet.binance.vision",
	Timeout:    15 * time.Second,
	RecvWindow: 5000,
}

// validateConfig ensures all required configuration fields are present and
// valid, applying defaults for optional fields when possible.
func validateConfig(cfg *Config, defaultCfg *Config) error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCfg.BaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCfg.Timeout
	}

	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = defaultCfg.RecvWindow
	}

	return nil
}
