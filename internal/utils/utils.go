// Package utils provides common utility functions for trading-pair symbols.
//
// This package contains utilities for validating trading pair symbols and for
// splitting a concatenated pair such as "BTCUSDT" into its base and quote
// assets, which the executor needs to pick the correct balance for a sell.
package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions for symbol functions
var (
	ErrEmptySymbol     = errors.New("symbol cannot be empty")
	ErrUnknownQuote    = errors.New("symbol does not end in a supported quote asset")
	ErrMalformedSymbol = errors.New("malformed symbol")
)

// QuoteAssetSet contains the supported quote assets for trading pairs.
// This map is used for O(1) lookup performance when splitting symbols.
//
// Order matters when matching suffixes, so SplitSymbol checks the longer
// quotes first (see quoteSuffixes).
var QuoteAssetSet = map[string]bool{
	"USDT": true, // Tether USD
	"BUSD": true, // Binance USD
	"USD":  true, // US Dollar
	"BTC":  true, // Bitcoin
	"ETH":  true, // Ethereum
	"BNB":  true, // Binance Coin
}

// quoteSuffixes lists quote assets in matching order: longer suffixes first
// so "BTCUSDT" resolves to quote "USDT" rather than "USD".
var quoteSuffixes = []string{"USDT", "BUSD", "USD", "BTC", "ETH", "BNB"}

// supportedQuotesCache is a pre-computed string of supported quote assets
// to avoid rebuilding this string on every validation error.
var supportedQuotesCache = strings.Join(quoteSuffixes, ", ")

// NormalizeSymbol uppercases and trims a symbol string.
//
// Inbound webhook payloads are produced by external alerting templates and
// arrive in inconsistent casing; all internal symbol handling is uppercase.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol validates that a trading pair symbol is a concatenated
// BASEQUOTE pair ending in a supported quote asset (e.g. "BTCUSDT").
//
// The validation is case-insensitive. An empty base (a bare quote asset such
// as "USDT") is rejected.
func ValidateSymbol(symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return ErrEmptySymbol
	}

	_, _, err := SplitSymbol(symbol)
	return err
}

// SplitSymbol splits a concatenated trading pair into base and quote assets.
//
// For "BTCUSDT" it returns ("BTC", "USDT"). The quote asset is recognized by
// suffix against the supported quote set; unknown suffixes are an error so a
// sell-side balance check never silently queries the wrong asset.
func SplitSymbol(symbol string) (base, quote string, err error) {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return "", "", ErrEmptySymbol
	}

	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) {
			b := strings.TrimSuffix(s, q)
			if b == "" {
				return "", "", fmt.Errorf("%w: %q has no base asset", ErrMalformedSymbol, symbol)
			}
			return b, q, nil
		}
	}

	return "", "", fmt.Errorf("%w: %q (supported quotes: %s)",
		ErrUnknownQuote, symbol, supportedQuotesCache)
}

// BaseAsset returns the base asset of a trading pair ("BTC" for "BTCUSDT").
func BaseAsset(symbol string) (string, error) {
	base, _, err := SplitSymbol(symbol)
	return base, err
}
