// Package signal converts inbound webhook requests of unknown encoding into
// canonical trade signals.
//
// External alerting services deliver the same logical payload in several
// inconsistent wire formats: JSON with a correct content type, form fields,
// a templated free-text message, JSON with a mislabeled content type, and
// query-string parameters. The Normalizer attempts each strategy in a fixed
// order and produces either a model.TradeSignal or a structured ParseFailure;
// nothing escapes the boundary as a panic and no state is mutated while
// parsing.
//
// Key features:
//   - Five fallback decode strategies with per-attempt logging
//   - Financial precision using decimal.Decimal for price/quantity data
//   - Input validation of structured payloads using struct tags and validator
//   - Action enum validated before a signal can reach the executor
package signal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/utils"
)

// maxExcerptLen bounds how much of an unparseable body is echoed back in a
// ParseFailure, so oversized or binary payloads never flood logs or responses.
const maxExcerptLen = 256

// textPattern matches the templated alert message
// "order <buy|sell> @ <quantity> filled on <SYMBOL>" (case-insensitive).
// The template carries no price, so price stays unset for this strategy.
var textPattern = regexp.MustCompile(`(?i)\border\s+(buy|sell)\s+@\s+([0-9]*\.?[0-9]+)\s+filled\s+on\s+([A-Za-z0-9]+)\b`)

// ParseFailure describes a request body that matched none of the decode
// strategies. It is returned to the caller with a 400 response and writes
// nothing to the ledger.
type ParseFailure struct {
	ContentType string // Content type the caller declared
	BodyExcerpt string // Bounded excerpt of the raw body for diagnostics
	Hint        string // Human-readable description of what was expected
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("unrecognized payload (content-type %q): %s", e.ContentType, e.Hint)
}

// InvalidActionError reports a payload that decoded successfully but carried
// an action outside the buy/sell enum. The partially populated signal is
// returned alongside the error so the pipeline can record the rejection.
type InvalidActionError struct {
	Action string // Raw action string as received
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid signal: %q. Must be 'buy' or 'sell'", e.Action)
}

// RawRequest carries the decoded parts of an inbound webhook request.
//
// Form and Query are pre-parsed by the HTTP layer; Body is the raw request
// body. The Normalizer never touches the network.
type RawRequest struct {
	ContentType string
	Body        []byte
	Form        url.Values
	Query       url.Values
}

// Config holds configuration parameters for the Normalizer.
type Config struct {
	// DefaultSymbol is substituted when a payload omits the trading pair.
	DefaultSymbol string

	// MultiFormat enables the full five-strategy decode chain. When false
	// only strict JSON bodies are accepted.
	MultiFormat bool
}

// Normalizer converts raw webhook requests into canonical trade signals.
type Normalizer struct {
	cfg      Config
	validate *validator.Validate // Validator instance for payload validation
}

// payload is the wire-level shape shared by the structured strategies.
//
// Price and Quantity use decimal.Decimal, which accepts both JSON numbers
// and numeric strings, preserving precision either way.
type payload struct {
	Signal   string          `json:"signal" validate:"required"`
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// NewNormalizer creates a Normalizer with the provided configuration.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	if err := utils.ValidateSymbol(cfg.DefaultSymbol); err != nil {
		return nil, fmt.Errorf("invalid default symbol: %w", err)
	}

	return &Normalizer{
		cfg:      cfg,
		validate: validator.New(),
	}, nil
}

// Normalize attempts each decode strategy in order and returns the first
// successful canonical signal.
//
// Strategy order:
//  1. JSON body with a JSON content type
//  2. Form fields (explicit signal/symbol/price set, or a free-text
//     message/text field)
//  3. Free-text templated message in the raw body
//  4. Raw body re-tried as JSON regardless of content type
//  5. Query-string parameters
//
// On success the action has already been checked against the enum; a payload
// whose action fails that check returns the signal together with an
// *InvalidActionError. When every strategy fails a *ParseFailure is returned.
func (n *Normalizer) Normalize(raw RawRequest) (model.TradeSignal, error) {
	receivedAt := time.Now()

	if p, ok := n.tryStrategies(raw); ok {
		return n.toSignal(p, receivedAt)
	}

	log.Warn().
		Str("content_type", raw.ContentType).
		Int("body_len", len(raw.Body)).
		Msg("payload matched no decode strategy")

	return model.TradeSignal{}, &ParseFailure{
		ContentType: raw.ContentType,
		BodyExcerpt: excerpt(raw.Body),
		Hint:        "expected JSON {signal, symbol, price}, form fields, templated text, or query parameters",
	}
}

// tryStrategies walks the decode chain and returns the first payload that
// decodes, or ok=false when none match.
func (n *Normalizer) tryStrategies(raw RawRequest) (payload, bool) {
	// 1. Structured body with a declared JSON content type.
	if isJSONContentType(raw.ContentType) {
		if p, ok := n.decodeJSON(raw.Body); ok {
			log.Debug().Str("strategy", "json").Msg("payload decoded")
			return p, true
		}
		log.Debug().Str("strategy", "json").Msg("declared JSON body did not decode")
	}

	if !n.cfg.MultiFormat {
		// Strict mode still tolerates a mislabeled content type, matching the
		// original JSON-only pipeline which fell back to the raw body.
		if p, ok := n.decodeJSON(raw.Body); ok {
			log.Debug().Str("strategy", "raw_json").Msg("payload decoded")
			return p, true
		}
		return payload{}, false
	}

	// 2. Form-encoded fields.
	if p, ok := n.decodeForm(raw.Form); ok {
		log.Debug().Str("strategy", "form").Msg("payload decoded")
		return p, true
	}

	// 3. Templated free-text message in the raw body.
	if p, ok := decodeText(string(raw.Body)); ok {
		log.Debug().Str("strategy", "text").Msg("payload decoded")
		return p, true
	}

	// 4. Raw body as JSON, tolerating callers who mislabel the content type.
	if p, ok := n.decodeJSON(raw.Body); ok {
		log.Debug().Str("strategy", "raw_json").Msg("payload decoded")
		return p, true
	}

	// 5. Query-string parameters as last resort.
	if p, ok := decodeValues(raw.Query); ok {
		log.Debug().Str("strategy", "query").Msg("payload decoded")
		return p, true
	}

	return payload{}, false
}

// toSignal builds the canonical signal from a decoded payload, applying the
// symbol default and validating the action enum.
func (n *Normalizer) toSignal(p payload, receivedAt time.Time) (model.TradeSignal, error) {
	symbol := utils.NormalizeSymbol(p.Symbol)
	if symbol == "" {
		symbol = n.cfg.DefaultSymbol
	}

	sig := model.TradeSignal{
		RawAction:  p.Signal,
		Symbol:     symbol,
		Price:      p.Price,
		Quantity:   p.Quantity,
		ReceivedAt: receivedAt,
	}

	action, err := model.ParseAction(p.Signal)
	if err != nil {
		log.Warn().Str("signal", p.Signal).Str("symbol", symbol).Msg("rejected payload with invalid action")
		return sig, &InvalidActionError{Action: p.Signal}
	}

	sig.Action = action
	return sig, nil
}

// decodeJSON decodes a JSON object body into a payload and validates it.
func (n *Normalizer) decodeJSON(body []byte) (payload, bool) {
	if len(body) == 0 {
		return payload{}, false
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return payload{}, false
	}

	if err := n.validate.Struct(&p); err != nil {
		return payload{}, false
	}

	return p, true
}

// decodeForm extracts a payload from form fields. An explicit signal field
// wins; otherwise a single free-text message/text field is matched against
// the template.
func (n *Normalizer) decodeForm(form url.Values) (payload, bool) {
	if len(form) == 0 {
		return payload{}, false
	}

	if form.Get("signal") != "" {
		return decodeValues(form)
	}

	for _, key := range []string{"message", "text"} {
		if msg := form.Get(key); msg != "" {
			if p, ok := decodeText(msg); ok {
				return p, true
			}
		}
	}

	return payload{}, false
}

// decodeValues extracts a payload from url.Values (form fields or query
// parameters). Malformed numeric fields fail the strategy rather than being
// silently zeroed.
func decodeValues(values url.Values) (payload, bool) {
	sig := values.Get("signal")
	if sig == "" {
		return payload{}, false
	}

	p := payload{
		Signal: sig,
		Symbol: values.Get("symbol"),
	}

	var err error
	if raw := values.Get("price"); raw != "" {
		if p.Price, err = decimal.NewFromString(raw); err != nil {
			return payload{}, false
		}
	}
	if raw := values.Get("quantity"); raw != "" {
		if p.Quantity, err = decimal.NewFromString(raw); err != nil {
			return payload{}, false
		}
	}

	return p, true
}

// decodeText matches the templated free-text alert message. The template
// carries no price, so the price hint stays unset.
func decodeText(text string) (payload, bool) {
	m := textPattern.FindStringSubmatch(text)
	if m == nil {
		return payload{}, false
	}

	qty, err := decimal.NewFromString(m[2])
	if err != nil {
		return payload{}, false
	}

	return payload{
		Signal:   m[1],
		Symbol:   m[3],
		Quantity: qty,
	}, true
}

// isJSONContentType reports whether the declared content type is a JSON
// variant (e.g. "application/json; charset=utf-8").
func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

// excerpt returns a bounded prefix of the body for diagnostics.
func excerpt(body []byte) string {
	if len(body) <= maxExcerptLen {
		return string(body)
	}
	return string(body[:maxExcerptLen]) + "..."
}
