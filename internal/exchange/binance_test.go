package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	})
	require.NoError(t, err)

	return client, srv
}

// Test_NewClient tests client creation and configuration defaults
func Test_NewClient(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		wantBaseURL string
		wantTimeout time.Duration
		description string
	}{
		{
			name:        "Nil config uses testnet defaults",
			config:      nil,
			wantBaseURL: "https://testnet.binance.vision",
			wantTimeout: 15 * time.Second,
			description: "Should create client with default testnet configuration",
		},
		{
			name:        "Empty config gets defaults applied",
			config:      &Config{},
			wantBaseURL: "https://testnet.binance.vision",
			wantTimeout: 15 * time.Second,
			description: "Missing fields should fall back to defaults",
		},
		{
			name: "Custom config preserved",
			config: &Config{
				BaseURL: "https://api.binance.com",
				Timeout: 3 * time.Second,
			},
			wantBaseURL: "https://api.binance.com",
			wantTimeout: 3 * time.Second,
			description: "Explicit values should not be overridden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			require.NoError(t, err, tt.description)

			assert.Equal(t, tt.wantBaseURL, client.cfg.BaseURL)
			assert.Equal(t, tt.wantTimeout, client.cfg.Timeout)
			assert.EqualValues(t, 5000, client.cfg.RecvWindow)
		})
	}

	t.Run("Configured reflects credential presence", func(t *testing.T) {
		withCreds, err := NewClient(&Config{APIKey: "k", APISecret: "s"})
		require.NoError(t, err)
		assert.True(t, withCreds.Configured())

		without, err := NewClient(nil)
		require.NoError(t, err)
		assert.False(t, without.Configured())

		keyOnly, err := NewClient(&Config{APIKey: "k"})
		require.NoError(t, err)
		assert.False(t, keyOnly.Configured(), "Both key and secret are required")
	})
}

// Test_Ping tests unauthenticated connectivity checks
func Test_Ping(t *testing.T) {
	t.Run("Successful ping", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/ping", r.URL.Path)
			w.Write([]byte(`{}`))
		}))

		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("Server error surfaces as APIError", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":-1000,"msg":"service unavailable"}`))
		}))

		err := client.Ping(context.Background())

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.EqualValues(t, -1000, apiErr.Code)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPStatus)
	})
}

// Test_CurrentPrice tests ticker price retrieval and validation
func Test_CurrentPrice(t *testing.T) {
	t.Run("Valid ticker response", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			w.Write([]byte(`{"symbol":"BTCUSDT","price":"50123.45000000"}`))
		}))

		price, err := client.CurrentPrice(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString("50123.45")), "got %s", price)
	})

	t.Run("Unknown symbol maps the exchange error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}))

		_, err := client.CurrentPrice(context.Background(), "NOPEUSDT")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.EqualValues(t, -1121, apiErr.Code)
		assert.Equal(t, "Invalid symbol.", apiErr.Msg)
	})

	t.Run("Non-numeric price rejected by validation", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"BTCUSDT","price":"not-a-number"}`))
		}))

		_, err := client.CurrentPrice(context.Background(), "BTCUSDT")
		assert.Error(t, err)
	})

	t.Run("Missing fields rejected by validation", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))

		_, err := client.CurrentPrice(context.Background(), "BTCUSDT")
		assert.Error(t, err)
	})
}

// Test_Balances tests signed account snapshot retrieval
func Test_Balances(t *testing.T) {
	accountPayload := `{"balances":[
		{"asset":"USDT","free":"1000.50","locked":"0.00"},
		{"asset":"BTC","free":"0.25","locked":"0.01"},
		{"asset":"ETH","free":"broken","locked":"0.00"}
	]}`

	t.Run("Signed request with parsed balances", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/account", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
			assert.NotEmpty(t, r.URL.Query().Get("timestamp"))
			assert.NotEmpty(t, r.URL.Query().Get("signature"))
			w.Write([]byte(accountPayload))
		}))

		balances, err := client.Balances(context.Background())
		require.NoError(t, err)

		// The malformed ETH entry is skipped, not fatal.
		require.Len(t, balances, 2)
		assert.Equal(t, "USDT", balances[0].Asset)
		assert.True(t, balances[0].Free.Equal(decimal.RequireFromString("1000.5")))
		assert.Equal(t, "BTC", balances[1].Asset)
		assert.True(t, balances[1].Locked.Equal(decimal.RequireFromString("0.01")))
	})

	t.Run("Missing credentials fail before any request", func(t *testing.T) {
		client, err := NewClient(&Config{BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err)

		_, err = client.Balances(context.Background())
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("Auth rejection maps the exchange error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":-2014,"msg":"API-key format invalid."}`))
		}))

		_, err := client.Balances(context.Background())

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.EqualValues(t, -2014, apiErr.Code)
	})
}

// Test_FreeBalance tests single-asset balance lookup semantics
func Test_FreeBalance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balances":[{"asset":"USDT","free":"1000.50","locked":"0.00"}]}`))
	})

	t.Run("Present asset returns free amount", func(t *testing.T) {
		client, _ := newTestClient(t, handler)

		free, err := client.FreeBalance(context.Background(), "USDT")
		require.NoError(t, err)
		assert.True(t, free.Equal(decimal.RequireFromString("1000.5")))
	})

	t.Run("Absent asset reports zero without error", func(t *testing.T) {
		client, _ := newTestClient(t, handler)

		free, err := client.FreeBalance(context.Background(), "DOGE")
		require.NoError(t, err)
		assert.True(t, free.IsZero())
	})
}

// Test_PlaceMarketOrder tests order submission and ack parsing
func Test_PlaceMarketOrder(t *testing.T) {
	t.Run("Accepted order", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v3/order", r.URL.Path)

			q := r.URL.Query()
			assert.Equal(t, "BTCUSDT", q.Get("symbol"))
			assert.Equal(t, "BUY", q.Get("side"))
			assert.Equal(t, "MARKET", q.Get("type"))
			assert.Equal(t, "0.001", q.Get("quantity"))
			assert.NotEmpty(t, q.Get("signature"))

			w.Write([]byte(`{"orderId":123456,"status":"FILLED","executedQty":"0.00100000"}`))
		}))

		ack, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", model.ActionBuy, decimal.RequireFromString("0.001"))
		require.NoError(t, err)

		assert.EqualValues(t, 123456, ack.OrderID)
		assert.Equal(t, "FILLED", ack.Status)
		assert.True(t, ack.ExecutedQty.Equal(decimal.RequireFromString("0.001")))
	})

	t.Run("Ack without executed quantity", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"orderId":7,"status":"NEW"}`))
		}))

		ack, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", model.ActionSell, decimal.NewFromInt(1))
		require.NoError(t, err)
		assert.True(t, ack.ExecutedQty.IsZero())
	})

	t.Run("Insufficient balance rejection", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
		}))

		_, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", model.ActionBuy, decimal.NewFromInt(100))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.EqualValues(t, -2010, apiErr.Code)
		assert.Contains(t, apiErr.Msg, "insufficient balance")
	})

	t.Run("Ack missing order id rejected by validation", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"NEW"}`))
		}))

		_, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", model.ActionBuy, decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("Non-JSON error body falls back to raw text", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream exploded"))
		}))

		_, err := client.PlaceMarketOrder(context.Background(), "BTCUSDT", model.ActionBuy, decimal.NewFromInt(1))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream exploded", apiErr.Msg)
	})
}
