// Package service implements the webhook signal pipeline.
//
// The pipeline is the single path from an inbound alert to a trade record:
// normalize the raw request, execute the trade, append the outcome to the
// ledger, and shape the HTTP response. Every signal that decodes far enough
// to carry an action string produces exactly one ledger row, success or not.
//
// Key features:
//   - One synchronous pipeline per request, no queues or async stages
//   - Rejected action strings are still audited with an error ledger row
//   - Ledger write failures never change the client-visible response
//   - Prometheus counters for signal results and order dispatches
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/executor"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/ledger"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/metrics"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/signal"
)

// ErrInvalidConfig indicates that a required pipeline dependency is missing.
var ErrInvalidConfig = errors.New("invalid configuration")

// WebhookResponse is the JSON body returned for every processed webhook.
//
// OrderID, Quantity, and Error are nullable: OrderID and Quantity are
// present only when the exchange acknowledged an order (Quantity is the
// exchange-reported executed quantity, not the requested size), Error only
// when the signal failed.
type WebhookResponse struct {
	Status    string           `json:"status"`
	Signal    string           `json:"signal"`
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	OrderID   *int64           `json:"order_id"`
	Quantity  *decimal.Decimal `json:"quantity"`
	Timestamp string           `json:"timestamp"`
	Error     string           `json:"error,omitempty"`
}

// Pipeline wires the payload normalizer, trade executor, and ledger store
// into the webhook processing path.
type Pipeline struct {
	normalizer *signal.Normalizer
	executor   *executor.Executor
	store      *ledger.Store
}

// NewPipeline creates the webhook pipeline from its three stages.
func NewPipeline(normalizer *signal.Normalizer, exec *executor.Executor, store *ledger.Store) (*Pipeline, error) {
	if normalizer == nil || exec == nil || store == nil {
		return nil, fmt.Errorf("%w: normalizer, executor, and store are all required", ErrInvalidConfig)
	}

	return &Pipeline{
		normalizer: normalizer,
		executor:   exec,
		store:      store,
	}, nil
}

// HandleSignal runs one raw webhook request through the pipeline and returns
// the response body with its HTTP status code.
//
// Status mapping: 200 when the exchange accepted the order, 400 when the
// payload could not be parsed or carried an invalid action, 500 when a
// parsed signal failed during execution.
func (p *Pipeline) HandleSignal(ctx context.Context, raw signal.RawRequest) (WebhookResponse, int) {
	sig, err := p.normalizer.Normalize(raw)
	if err != nil {
		var invalidAction *signal.InvalidActionError
		if errors.As(err, &invalidAction) {
			return p.rejectAction(sig, invalidAction)
		}

		// Unparseable requests leave no audit trail: there is no signal to
		// attribute a row to.
		metrics.SignalsTotal.WithLabelValues("parse_failure").Inc()
		return WebhookResponse{
			Status:    string(model.StatusError),
			Timestamp: time.Now().Format(time.RFC3339),
			Error:     err.Error(),
		}, http.StatusBadRequest
	}

	res := p.executor.Execute(ctx, sig)

	p.append(sig, res)

	resp := WebhookResponse{
		Status:    string(res.Outcome.Status),
		Signal:    sig.RawAction,
		Symbol:    sig.Symbol,
		Price:     res.Price,
		OrderID:   res.Outcome.OrderID,
		Timestamp: sig.ReceivedAt.Format(time.RFC3339),
	}

	if res.Outcome.Status != model.StatusSuccess {
		metrics.SignalsTotal.WithLabelValues("error").Inc()
		resp.Error = res.Outcome.ErrorMessage
		return resp, http.StatusInternalServerError
	}

	// Report what the exchange says it executed, which can differ from the
	// requested size on partial fills.
	executed := res.Outcome.ExecutedQty
	resp.Quantity = &executed

	metrics.SignalsTotal.WithLabelValues("success").Inc()
	return resp, http.StatusOK
}

// History returns every recorded trade in append order.
func (p *Pipeline) History() ([]model.LedgerRecord, error) {
	return p.store.ReadAll()
}

// rejectAction audits a decoded payload whose action string failed enum
// validation. The raw action is preserved in the ledger row verbatim.
func (p *Pipeline) rejectAction(sig model.TradeSignal, invalidErr *signal.InvalidActionError) (WebhookResponse, int) {
	metrics.SignalsTotal.WithLabelValues("invalid_action").Inc()

	record := model.LedgerRecord{
		Timestamp: sig.ReceivedAt.Format(time.RFC3339),
		Signal:    sig.RawAction,
		Symbol:    sig.Symbol,
		Price:     sig.Price.String(),
		Status:    string(model.StatusError),
		Error:     invalidErr.Error(),
	}
	if err := p.store.Append(record); err != nil {
		metrics.LedgerWriteFailures.Inc()
		log.Error().Err(err).Str("symbol", sig.Symbol).Msg("failed to record rejected signal")
	}

	return WebhookResponse{
		Status:    string(model.StatusError),
		Signal:    sig.RawAction,
		Symbol:    sig.Symbol,
		Price:     sig.Price,
		Timestamp: sig.ReceivedAt.Format(time.RFC3339),
		Error:     invalidErr.Error(),
	}, http.StatusBadRequest
}

// append persists the execution result. By policy a failed write is logged
// and counted but never surfaces to the webhook caller; the trade already
// happened and the response must reflect it.
//
// The quantity column carries the exchange-reported executed quantity and
// is only populated on success; failed trades executed nothing.
func (p *Pipeline) append(sig model.TradeSignal, res executor.Result) {
	record := model.LedgerRecord{
		Timestamp: sig.ReceivedAt.Format(time.RFC3339),
		Signal:    sig.RawAction,
		Symbol:    sig.Symbol,
		Price:     res.Price.String(),
		Status:    string(res.Outcome.Status),
		Error:     res.Outcome.ErrorMessage,
	}
	if res.Outcome.Status == model.StatusSuccess {
		record.Quantity = res.Outcome.ExecutedQty.String()
	}
	if res.Outcome.OrderID != nil {
		record.OrderID = strconv.FormatInt(*res.Outcome.OrderID, 10)
	}

	if err := p.store.Append(record); err != nil {
		metrics.LedgerWriteFailures.Inc()
		log.Error().
			Err(err).
			Str("symbol", sig.Symbol).
			Str("status", record.Status).
			Msg("failed to record trade outcome")
	}
}
