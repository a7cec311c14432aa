/*
Package main runs the TradingView webhook trading server.

The server receives TradingView alert webhooks, validates them against the
Binance account balance, places market orders on Binance Spot (testnet by
default), and records every processed signal in an append-only CSV trade
history. It exposes health, balance, history, and prometheus metrics
endpoints alongside the webhook itself.

Usage:

	BINANCE_API_KEY=... BINANCE_API_SECRET=... go run ./cmd/server

Configuration is taken from environment variables, with a .env file loaded
first when present. Without credentials the server still starts and serves
public endpoints; trading requests fail with a credentials error.
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/config"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/exchange"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/executor"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/ledger"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/server"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/service"
	tradesignal "github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/signal"
)

// main is the entry point of the webhook trading server.
// It loads configuration, wires the signal pipeline together, starts the
// HTTP server, and handles graceful shutdown on interrupt signals.
func main() {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Initialize structured logger with timestamp and console output
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	srv, client, err := newServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initiate trading server")
	}

	if !cfg.CredentialsConfigured() {
		log.Warn().Msg("binance credentials not configured, trading requests will be rejected")
	}

	// Probe exchange connectivity at startup. A failed probe is logged but
	// not fatal; the exchange may come back while the server is running.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Ping(probeCtx); err != nil {
		log.Warn().Err(err).Msg("exchange unreachable at startup")
	} else {
		log.Info().Str("base_url", cfg.BinanceBaseURL).Msg("exchange reachable")
	}
	cancelProbe()

	// Set up signal handling for graceful shutdown so in-flight webhooks
	// finish and their ledger rows are written before the process exits.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("initiating graceful shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("trading_pair", cfg.TradingPair).
		Str("trade_amount", cfg.TradeAmount.String()).
		Bool("multi_format", cfg.MultiFormat).
		Msg("server starting")

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to serve")
	}
}

// newServer wires the payload normalizer, Binance connector, trade executor,
// ledger store, and webhook pipeline into a ready-to-run HTTP server.
func newServer(cfg *config.Config) (*server.Server, *exchange.Client, error) {
	client, err := exchange.NewClient(&exchange.Config{
		BaseURL:   cfg.BinanceBaseURL,
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create Binance connector")
		return nil, nil, err
	}

	normalizer, err := tradesignal.NewNormalizer(tradesignal.Config{
		DefaultSymbol: cfg.TradingPair,
		MultiFormat:   cfg.MultiFormat,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create payload normalizer")
		return nil, nil, err
	}

	exec, err := executor.New(executor.Config{DefaultQuantity: cfg.TradeAmount}, client)
	if err != nil {
		log.Error().Err(err).Msg("failed to create trade executor")
		return nil, nil, err
	}

	store, err := ledger.NewStore(&ledger.Config{Path: cfg.LedgerPath})
	if err != nil {
		log.Error().Err(err).Msg("failed to create trade history store")
		return nil, nil, err
	}

	pipeline, err := service.NewPipeline(normalizer, exec, store)
	if err != nil {
		log.Error().Err(err).Msg("failed to create webhook pipeline")
		return nil, nil, err
	}

	srv, err := server.New(&server.Config{
		ListenAddr:    cfg.ListenAddr,
		BalanceAssets: cfg.BalanceAssets,
	}, pipeline, client)
	if err != nil {
		log.Error().Err(err).Msg("failed to create http server")
		return nil, nil, err
	}

	return srv, client, nil
}
