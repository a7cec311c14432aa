// Package exchange provides the Binance Spot REST connector used for
// account state, market prices, and order placement.
//
// The connector implements the consumption contracts of the trade executor
// (balance oracle and order dispatch) against the Binance Spot API, testnet
// by default. It handles Binance-specific message formats, HMAC request
// signing, validation, and error normalization.
//
// Key features:
//   - Signed account and order endpoints via HMAC-SHA256 query signing
//   - Comprehensive response validation using struct tags and validator
//   - Financial precision using decimal.Decimal for price/quantity data
//   - Exchange errors normalized into APIError with code and message
//   - Bounded request time via client-level timeout and context propagation
package exchange

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
)

// APIError is a Binance error payload ({"code":-2010,"msg":"..."}) attached
// to a non-2xx response.
type APIError struct {
	Code       int64  `json:"code"`
	Msg        string `json:"msg"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Msg)
}

// Client is the Binance Spot REST connector.
//
// A Client is safe for concurrent use; all state is immutable after
// construction and the underlying resty client manages its own pooling.
type Client struct {
	cfg      Config
	http     *resty.Client
	validate *validator.Validate // Validator instance for response validation
}

// tickerPrice is the /api/v3/ticker/price response. Binance returns numeric
// values as strings to preserve precision.
type tickerPrice struct {
	Symbol string `json:"symbol" validate:"required"`
	Price  string `json:"price" validate:"required,numeric"`
}

// accountBalance is one entry of the /api/v3/account balances array.
type accountBalance struct {
	Asset  string `json:"asset" validate:"required"`
	Free   string `json:"free" validate:"required,numeric"`
	Locked string `json:"locked" validate:"required,numeric"`
}

// accountInfo is the subset of the /api/v3/account response this system
// consumes.
type accountInfo struct {
	Balances []accountBalance `json:"balances"`
}

// orderAck is the ACK/RESULT response of POST /api/v3/order.
type orderAck struct {
	OrderID     int64  `json:"orderId" validate:"required"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
}

// NewClient creates a Binance connector with the specified configuration.
//
// If no configuration is provided (cfg is nil), the connector uses testnet
// defaults. The configuration is validated against the defaults to ensure
// all required fields are present and valid.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &defaultConfig
	}

	if err := validateConfig(cfg, &defaultConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	if cfg.APIKey != "" {
		http.SetHeader("X-MBX-APIKEY", cfg.APIKey)
	}

	return &Client{
		cfg:      *cfg,
		http:     http,
		validate: validator.New(),
	}, nil
}

// Configured reports whether API credentials are present. Public endpoints
// work either way; signed endpoints require both key and secret.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// Ping checks REST connectivity to the exchange without authentication.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/v3/ping")
	if err != nil {
		return fmt.Errorf("binance ping failed: %w", err)
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	return nil
}

// CurrentPrice returns the latest traded price for a symbol.
//
// The price is used only as a hint for the balance check; callers must
// tolerate failure and proceed without a price (market orders do not
// require one).
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/api/v3/ticker/price")
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch ticker price: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, c.apiError(resp)
	}

	var t tickerPrice
	if err := json.Unmarshal(resp.Body(), &t); err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker payload: %w", err)
	}
	if err := c.validate.Struct(&t); err != nil {
		return decimal.Zero, fmt.Errorf("ticker validation failed: %w", err)
	}

	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker price %q: %w", t.Price, err)
	}

	return price, nil
}

// Balances returns the point-in-time balance snapshot of every asset in the
// account. Signed endpoint; fails with ErrMissingCredentials when the client
// has no credentials.
func (c *Client) Balances(ctx context.Context) ([]model.AssetBalance, error) {
	query, err := c.signedQuery(url.Values{})
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryString(query).
		Get("/api/v3/account")
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}

	var account accountInfo
	if err := json.Unmarshal(resp.Body(), &account); err != nil {
		return nil, fmt.Errorf("invalid account payload: %w", err)
	}

	balances := make([]model.AssetBalance, 0, len(account.Balances))
	for _, b := range account.Balances {
		if err := c.validate.Struct(&b); err != nil {
			log.Warn().Err(err).Str("asset", b.Asset).Msg("skipping malformed balance entry")
			continue
		}

		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			continue
		}

		balances = append(balances, model.AssetBalance{Asset: b.Asset, Free: free, Locked: locked})
	}

	return balances, nil
}

// FreeBalance returns the available (non-locked) balance of one asset.
//
// An asset absent from the account reports zero, matching exchange
// semantics for never-funded assets. Transport and auth failures return an
// error, which callers must treat as "balance unavailable", never as a
// default balance.
func (c *Client) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	for _, b := range balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}

	return decimal.Zero, nil
}

// PlaceMarketOrder submits a market order and returns the exchange
// acknowledgment.
//
// Acceptance of the request is terminal for this system: the executed
// quantity in the ack may be partial or zero when the exchange fills
// asynchronously, and no later polling happens.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side model.Action, qty decimal.Decimal) (model.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty.String())

	query, err := c.signedQuery(params)
	if err != nil {
		return model.OrderAck{}, err
	}

	log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("quantity", qty.String()).
		Msg("submitting market order")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryString(query).
		Post("/api/v3/order")
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("place order: %w", err)
	}
	if resp.IsError() {
		return model.OrderAck{}, c.apiError(resp)
	}

	var ack orderAck
	if err := json.Unmarshal(resp.Body(), &ack); err != nil {
		return model.OrderAck{}, fmt.Errorf("invalid order response: %w", err)
	}
	if err := c.validate.Struct(&ack); err != nil {
		return model.OrderAck{}, fmt.Errorf("order response validation failed: %w", err)
	}

	executed := decimal.Zero
	if ack.ExecutedQty != "" {
		if executed, err = decimal.NewFromString(ack.ExecutedQty); err != nil {
			return model.OrderAck{}, fmt.Errorf("invalid executed quantity %q: %w", ack.ExecutedQty, err)
		}
	}

	log.Info().
		Int64("order_id", ack.OrderID).
		Str("status", ack.Status).
		Str("executed_qty", executed.String()).
		Msg("market order accepted")

	return model.OrderAck{
		OrderID:     ack.OrderID,
		ExecutedQty: executed,
		Status:      ack.Status,
	}, nil
}

// apiError converts a non-2xx response into an *APIError, falling back to
// the raw body when the error payload does not decode.
func (c *Client) apiError(resp *resty.Response) error {
	apiErr := &APIError{HTTPStatus: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Msg == "" {
		apiErr.Msg = string(resp.Body())
	}
	return apiErr
}
