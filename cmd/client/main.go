/*
Package main implements a command-line client for exercising the webhook
trading server.

It can send trade signals in every encoding the server accepts (JSON, form
fields, templated text, query parameters) and query the read-only endpoints.
Intended for manual testing against a locally running server with testnet
credentials.

Usage:

	go run ./cmd/client -cmd health
	go run ./cmd/client -cmd buy -symbol BTCUSDT -price 50000
	go run ./cmd/client -cmd sell -format text
	go run ./cmd/client -cmd history
*/
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Command-line flags for configuring the client behavior
var (
	// addr is the base URL of the running webhook server
	addr = flag.String("addr", "http://localhost:5000", "Server base URL")
	// cmd selects the request to send
	cmd = flag.String("cmd", "health", "One of: health, balance, history, buy, sell, invalid")
	// symbol is the trading pair for buy/sell signals
	symbol = flag.String("symbol", "BTCUSDT", "Trading pair symbol")
	// price is the optional price hint included in the signal
	price = flag.String("price", "50000", "Price hint for the signal")
	// format selects the payload encoding for trade signals
	format = flag.String("format", "json", "Signal encoding: json, form, text, query")
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	client := resty.New().
		SetBaseURL(*addr).
		SetTimeout(30 * time.Second)

	var (
		resp *resty.Response
		err  error
	)

	switch *cmd {
	case "health":
		resp, err = client.R().Get("/health")
	case "balance":
		resp, err = client.R().Get("/balance")
	case "history":
		resp, err = client.R().Get("/history")
	case "buy", "sell":
		resp, err = sendSignal(client, *cmd)
	case "invalid":
		resp, err = client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(fmt.Sprintf(`{"signal":"hold","symbol":%q}`, *symbol)).
			Post("/webhook")
	default:
		log.Fatal().Str("cmd", *cmd).Msg("unknown command")
	}

	if err != nil {
		log.Fatal().Err(err).Msg("request failed")
	}

	log.Info().
		Int("status", resp.StatusCode()).
		Dur("elapsed", resp.Time()).
		Msg("response received")
	fmt.Println(string(resp.Body()))
}

// sendSignal posts one trade signal in the encoding selected by -format.
func sendSignal(client *resty.Client, action string) (*resty.Response, error) {
	switch *format {
	case "json":
		return client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(fmt.Sprintf(`{"signal":%q,"symbol":%q,"price":%s}`, action, *symbol, *price)).
			Post("/webhook")
	case "form":
		return client.R().
			SetFormData(map[string]string{
				"signal": action,
				"symbol": *symbol,
				"price":  *price,
			}).
			Post("/webhook")
	case "text":
		return client.R().
			SetHeader("Content-Type", "text/plain").
			SetBody(fmt.Sprintf("order %s @ 0.001 filled on %s", action, *symbol)).
			Post("/webhook")
	case "query":
		q := url.Values{}
		q.Set("signal", action)
		q.Set("symbol", *symbol)
		q.Set("price", *price)
		return client.R().Post("/webhook?" + q.Encode())
	default:
		return nil, fmt.Errorf("unknown format %q", *format)
	}
}
