// Package model defines core data types for the webhook trading bot.
//
// This package contains the fundamental data structures passed between the
// payload normalizer, the trade executor, and the ledger writer. All monetary
// values use decimal.Decimal for precise financial calculations to avoid
// floating-point precision issues common in financial applications.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action represents the direction of a trade signal.
type Action string

const (
	// ActionBuy represents a market buy signal.
	ActionBuy Action = "BUY"

	// ActionSell represents a market sell signal.
	ActionSell Action = "SELL"
)

// ParseAction converts a raw signal string into an Action.
//
// The match is case-insensitive ("buy", "Buy", "BUY" are all accepted).
// Any value outside the two-member enum is rejected with an error; callers
// must not forward an unvalidated action to the executor.
func ParseAction(raw string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ActionBuy):
		return ActionBuy, nil
	case string(ActionSell):
		return ActionSell, nil
	default:
		return "", fmt.Errorf("invalid signal: %q. Must be 'buy' or 'sell'", raw)
	}
}

// TradeSignal is the canonical parsed trading intent produced by the
// payload normalizer.
//
// A signal carries the validated direction, the trading pair, and two
// optional hints: a limit-price hint used only for the balance check and a
// requested quantity. Zero values for Price and Quantity mean "fetch current
// market price" and "use the configured default trade size" respectively.
type TradeSignal struct {
	RawAction  string          // Action string exactly as received, kept for audit rows
	Action     Action          // Validated trade direction
	Symbol     string          // Uppercase trading pair (e.g. "BTCUSDT")
	Price      decimal.Decimal // Price hint; zero means unset
	Quantity   decimal.Decimal // Requested quantity; zero means unset
	ReceivedAt time.Time       // Ingestion timestamp, set by the normalizer
}

// OutcomeStatus is the terminal status of one execution attempt.
type OutcomeStatus string

const (
	// StatusSuccess indicates the exchange accepted the market order.
	StatusSuccess OutcomeStatus = "success"

	// StatusError indicates the signal failed validation, the balance check,
	// or order dispatch.
	StatusError OutcomeStatus = "error"
)

// TradeOutcome is the immutable result of one execution attempt.
//
// An outcome is created exactly once per signal, never revised after the
// executor returns, and written to the ledger exactly once. OrderID and
// ExecutedQty are populated only on success; ErrorMessage only on error.
type TradeOutcome struct {
	Status       OutcomeStatus
	OrderID      *int64          // Exchange order id, nil unless the exchange returned one
	ExecutedQty  decimal.Decimal // Quantity the exchange reports as immediately executed
	ErrorMessage string          // Human-readable failure reason, empty on success
}

// LedgerRecord is one row of the append-only trade history.
//
// Field names mirror the CSV header columns:
// timestamp, signal, symbol, price, order_id, status, quantity, error.
// OrderID, Quantity, and Error may be empty; consumers must tolerate that.
type LedgerRecord struct {
	Timestamp string `json:"timestamp"`
	Signal    string `json:"signal"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Quantity  string `json:"quantity"`
	Error     string `json:"error"`
}

// Row returns the record as CSV fields in header column order.
func (r LedgerRecord) Row() []string {
	return []string{r.Timestamp, r.Signal, r.Symbol, r.Price, r.OrderID, r.Status, r.Quantity, r.Error}
}

// AssetBalance is a point-in-time snapshot of one asset in the exchange
// account. It is consumed for a single validation decision or a balance
// report and never persisted.
type AssetBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// OrderAck is the exchange acknowledgment for a submitted market order.
//
// Acceptance of the order request is sufficient for a success outcome; the
// executed quantity may be partial or zero when the exchange reports fills
// asynchronously. This system does not poll for later fills.
type OrderAck struct {
	OrderID     int64
	ExecutedQty decimal.Decimal
	Status      string // Exchange order state, e.g. "FILLED", "NEW"
}
