// Package executor turns validated trade signals into market orders.
//
// Each signal runs through a linear state machine: resolve the trade
// quantity, resolve a price hint, validate the account balance, then
// dispatch one market order. There are no retries and no order tracking;
// the exchange acknowledgment is the terminal event.
//
// Key features:
//   - Single-dispatch guarantee: at most one order per accepted signal
//   - Balance validation before dispatch, under a per-symbol lock so
//     concurrent same-symbol signals cannot both pass the same balance
//   - Advisory price resolution: a failed price lookup degrades the
//     balance check instead of failing the trade
//   - Every failure converts into an error outcome; nothing propagates
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/metrics"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/utils"
)

// ErrInvalidConfig indicates that the provided Config contains invalid values.
var ErrInvalidConfig = errors.New("invalid configuration")

// BalanceOracle reports account state needed for pre-trade validation.
type BalanceOracle interface {
	// FreeBalance returns the available balance of one asset. An error means
	// the balance is unavailable, which blocks the trade; it never means zero.
	FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

// PriceSource provides market price hints for the balance check.
type PriceSource interface {
	// CurrentPrice returns the latest traded price for a symbol.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// OrderDispatcher submits market orders to the exchange.
type OrderDispatcher interface {
	// PlaceMarketOrder submits a market order and returns the exchange ack.
	PlaceMarketOrder(ctx context.Context, symbol string, side model.Action, qty decimal.Decimal) (model.OrderAck, error)
}

// Exchange is the full exchange surface the executor consumes. The Binance
// connector satisfies it; tests substitute fakes per concern.
type Exchange interface {
	BalanceOracle
	PriceSource
	OrderDispatcher
}

// Config provides configuration for the trade executor.
type Config struct {
	// DefaultQuantity is the trade size used when a signal does not carry an
	// explicit quantity. Must be positive.
	DefaultQuantity decimal.Decimal
}

// Result is the full outcome of one execution attempt, pairing the terminal
// TradeOutcome with the price the balance check used (zero when unavailable)
// and the quantity that was resolved for the trade.
type Result struct {
	Outcome  model.TradeOutcome
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Executor validates and dispatches market orders for trade signals.
//
// An Executor is safe for concurrent use. Signals for the same symbol are
// serialized through a per-symbol lock; signals for different symbols run
// independently.
type Executor struct {
	cfg      Config
	exchange Exchange

	mu    sync.Mutex             // Guards locks map
	locks map[string]*sync.Mutex // Per-symbol execution locks
}

// New creates a trade executor backed by the given exchange.
func New(cfg Config, exchange Exchange) (*Executor, error) {
	if exchange == nil {
		return nil, fmt.Errorf("%w: exchange must not be nil", ErrInvalidConfig)
	}
	if !cfg.DefaultQuantity.IsPositive() {
		return nil, fmt.Errorf("%w: default quantity must be positive, got %s", ErrInvalidConfig, cfg.DefaultQuantity)
	}

	return &Executor{
		cfg:      cfg,
		exchange: exchange,
		locks:    map[string]*sync.Mutex{},
	}, nil
}

// Execute runs one signal through the full trade machine and returns its
// terminal result.
//
// Execute never returns an error: every failure mode is captured in the
// result's outcome so the caller always has exactly one record to persist.
func (e *Executor) Execute(ctx context.Context, sig model.TradeSignal) Result {
	qty := sig.Quantity
	if !qty.IsPositive() {
		qty = e.cfg.DefaultQuantity
	}

	lock := e.symbolLock(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	price := e.resolvePrice(ctx, sig)

	if err := e.checkBalance(ctx, sig, qty, price); err != nil {
		log.Warn().
			Err(err).
			Str("symbol", sig.Symbol).
			Str("side", string(sig.Action)).
			Msg("trade rejected before dispatch")
		return failedResult(price, qty, err)
	}

	ack, err := e.exchange.PlaceMarketOrder(ctx, sig.Symbol, sig.Action, qty)
	if err != nil {
		log.Error().
			Err(err).
			Str("symbol", sig.Symbol).
			Str("side", string(sig.Action)).
			Msg("order dispatch failed")
		return failedResult(price, qty, err)
	}

	metrics.OrdersTotal.WithLabelValues(sig.Symbol, string(sig.Action)).Inc()
	log.Info().
		Int64("order_id", ack.OrderID).
		Str("symbol", sig.Symbol).
		Str("side", string(sig.Action)).
		Str("quantity", qty.String()).
		Msg("trade executed")

	orderID := ack.OrderID
	return Result{
		Outcome: model.TradeOutcome{
			Status:      model.StatusSuccess,
			OrderID:     &orderID,
			ExecutedQty: ack.ExecutedQty,
		},
		Price:    price,
		Quantity: qty,
	}
}

// resolvePrice returns the price hint for the balance check: the signal's own
// price when present, otherwise the current market price. A failed lookup is
// advisory only; the trade proceeds with a zero price.
func (e *Executor) resolvePrice(ctx context.Context, sig model.TradeSignal) decimal.Decimal {
	if sig.Price.IsPositive() {
		return sig.Price
	}

	price, err := e.exchange.CurrentPrice(ctx, sig.Symbol)
	if err != nil {
		log.Warn().
			Err(err).
			Str("symbol", sig.Symbol).
			Msg("price unavailable, proceeding without a price hint")
		return decimal.Zero
	}

	return price
}

// checkBalance verifies the account can cover the trade before dispatch.
//
// Buys are funded from the quote asset: required = qty*price, or just qty
// when no price is known, a deliberately loose approximation that still
// catches empty accounts. Sells require the base asset to hold the quantity.
func (e *Executor) checkBalance(ctx context.Context, sig model.TradeSignal, qty, price decimal.Decimal) error {
	base, quote, err := utils.SplitSymbol(sig.Symbol)
	if err != nil {
		return fmt.Errorf("unsupported symbol %q: %w", sig.Symbol, err)
	}

	asset := quote
	required := qty
	if sig.Action == model.ActionBuy {
		if price.IsPositive() {
			required = qty.Mul(price)
		} else {
			log.Warn().
				Str("symbol", sig.Symbol).
				Str("quantity", qty.String()).
				Msg("no price available, comparing quote balance against raw quantity")
		}
	} else {
		asset = base
	}

	free, err := e.exchange.FreeBalance(ctx, asset)
	if err != nil {
		return fmt.Errorf("balance unavailable for %s: %w", asset, err)
	}

	if free.LessThan(required) {
		return fmt.Errorf("insufficient %s balance: have %s, need %s", asset, free, required)
	}

	return nil
}

// symbolLock returns the lock owned by a symbol, creating it on first use.
func (e *Executor) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[symbol] = lock
	}
	return lock
}

func failedResult(price, qty decimal.Decimal, err error) Result {
	return Result{
		Outcome: model.TradeOutcome{
			Status:       model.StatusError,
			ErrorMessage: err.Error(),
		},
		Price:    price,
		Quantity: qty,
	}
}
