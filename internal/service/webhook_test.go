package service

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/executor"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/ledger"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/signal"
)

// stubExchange is a minimal executor.Exchange with scriptable behavior.
type stubExchange struct {
	price      decimal.Decimal
	free       map[string]decimal.Decimal
	balanceErr error
	orderErr   error
	ack        model.OrderAck
}

func (s *stubExchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.price, nil
}

func (s *stubExchange) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if s.balanceErr != nil {
		return decimal.Zero, s.balanceErr
	}
	return s.free[asset], nil
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, symbol string, side model.Action, qty decimal.Decimal) (model.OrderAck, error) {
	if s.orderErr != nil {
		return model.OrderAck{}, s.orderErr
	}
	return s.ack, nil
}

func healthyExchange() *stubExchange {
	return &stubExchange{
		price: decimal.NewFromInt(50000),
		free: map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(1000),
			"BTC":  decimal.NewFromInt(1),
		},
		ack: model.OrderAck{OrderID: 777, Status: "FILLED", ExecutedQty: decimal.RequireFromString("0.001")},
	}
}

func newTestPipeline(t *testing.T, exch executor.Exchange) (*Pipeline, *ledger.Store) {
	t.Helper()

	normalizer, err := signal.NewNormalizer(signal.Config{DefaultSymbol: "BTCUSDT", MultiFormat: true})
	require.NoError(t, err)

	exec, err := executor.New(executor.Config{DefaultQuantity: decimal.RequireFromString("0.001")}, exch)
	require.NoError(t, err)

	store, err := ledger.NewStore(&ledger.Config{Path: filepath.Join(t.TempDir(), "trade_history.csv")})
	require.NoError(t, err)

	pipeline, err := NewPipeline(normalizer, exec, store)
	require.NoError(t, err)

	return pipeline, store
}

func jsonRequest(body string) signal.RawRequest {
	return signal.RawRequest{ContentType: "application/json", Body: []byte(body)}
}

// Test_NewPipeline tests dependency validation
func Test_NewPipeline(t *testing.T) {
	p, err := NewPipeline(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, p)
}

// Test_HandleSignal_Success tests the end-to-end happy path
func Test_HandleSignal_Success(t *testing.T) {
	pipeline, store := newTestPipeline(t, healthyExchange())

	resp, code := pipeline.HandleSignal(context.Background(),
		jsonRequest(`{"signal":"buy","symbol":"BTCUSDT","price":50000}`))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "buy", resp.Signal)
	assert.Equal(t, "BTCUSDT", resp.Symbol)
	require.NotNil(t, resp.OrderID)
	assert.EqualValues(t, 777, *resp.OrderID)
	require.NotNil(t, resp.Quantity)
	assert.True(t, resp.Quantity.Equal(decimal.RequireFromString("0.001")))
	assert.Empty(t, resp.Error)

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "Exactly one ledger row per signal")
	assert.Equal(t, "buy", records[0].Signal)
	assert.Equal(t, "777", records[0].OrderID)
	assert.Equal(t, "success", records[0].Status)
	assert.Equal(t, "0.001", records[0].Quantity)
}

// Test_HandleSignal_ExecutedQuantity verifies the exchange-reported executed
// quantity is what reaches the response and the ledger, not the request size.
func Test_HandleSignal_ExecutedQuantity(t *testing.T) {
	exch := healthyExchange()
	exch.ack.ExecutedQty = decimal.RequireFromString("0.002")

	pipeline, store := newTestPipeline(t, exch)

	// The pipeline's default quantity is 0.001; the ack reports 0.002.
	resp, code := pipeline.HandleSignal(context.Background(),
		jsonRequest(`{"signal":"buy","symbol":"BTCUSDT","price":50000}`))

	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Quantity)
	assert.True(t, resp.Quantity.Equal(decimal.RequireFromString("0.002")),
		"Response must carry the executed quantity, got %s", resp.Quantity)

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0.002", records[0].Quantity,
		"Ledger must carry the executed quantity, not the requested size")
}

// Test_HandleSignal_ParseFailure verifies unparseable payloads leave no trace
func Test_HandleSignal_ParseFailure(t *testing.T) {
	pipeline, store := newTestPipeline(t, healthyExchange())

	resp, code := pipeline.HandleSignal(context.Background(),
		signal.RawRequest{ContentType: "text/plain", Body: []byte("not a signal")})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Error)

	records, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records, "Parse failures must not write ledger rows")
}

// Test_HandleSignal_InvalidAction verifies the rejected-enum audit row
func Test_HandleSignal_InvalidAction(t *testing.T) {
	pipeline, store := newTestPipeline(t, healthyExchange())

	resp, code := pipeline.HandleSignal(context.Background(),
		jsonRequest(`{"signal":"hold","symbol":"BTCUSDT","price":50000}`))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "hold", resp.Signal)
	assert.Contains(t, resp.Error, "invalid signal")

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "Rejected actions are still audited")
	assert.Equal(t, "hold", records[0].Signal, "Raw action string must be preserved")
	assert.Equal(t, "error", records[0].Status)
	assert.Empty(t, records[0].OrderID)
}

// Test_HandleSignal_ExecutionError tests the 500 path with its ledger row
func Test_HandleSignal_ExecutionError(t *testing.T) {
	tests := []struct {
		name        string
		exchange    *stubExchange
		wantMessage string
	}{
		{
			name: "Insufficient balance",
			exchange: func() *stubExchange {
				e := healthyExchange()
				e.free["USDT"] = decimal.NewFromInt(1)
				return e
			}(),
			wantMessage: "insufficient USDT balance",
		},
		{
			name: "Balance oracle down",
			exchange: func() *stubExchange {
				e := healthyExchange()
				e.balanceErr = errors.New("account endpoint down")
				return e
			}(),
			wantMessage: "balance unavailable",
		},
		{
			name: "Order rejected by exchange",
			exchange: func() *stubExchange {
				e := healthyExchange()
				e.orderErr = errors.New("binance api error (http 400, code -2010): insufficient balance")
				return e
			}(),
			wantMessage: "-2010",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline, store := newTestPipeline(t, tt.exchange)

			resp, code := pipeline.HandleSignal(context.Background(),
				jsonRequest(`{"signal":"buy","symbol":"BTCUSDT","price":50000}`))

			assert.Equal(t, http.StatusInternalServerError, code)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Error, tt.wantMessage)
			assert.Nil(t, resp.OrderID)

			records, err := store.ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 1, "Execution failures still produce a ledger row")
			assert.Equal(t, "error", records[0].Status)
			assert.Contains(t, records[0].Error, tt.wantMessage)
			assert.Empty(t, records[0].Quantity, "Nothing executed, the quantity column stays empty")
			assert.Nil(t, resp.Quantity)
		})
	}
}

// Test_History verifies pass-through of the ledger contents
func Test_History(t *testing.T) {
	pipeline, _ := newTestPipeline(t, healthyExchange())

	records, err := pipeline.History()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, code := pipeline.HandleSignal(context.Background(),
		jsonRequest(`{"signal":"sell","symbol":"BTCUSDT","price":50000}`))
	require.Equal(t, http.StatusOK, code)

	records, err = pipeline.History()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sell", records[0].Signal)
}
