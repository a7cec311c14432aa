// Package server exposes the HTTP surface of the trading bot.
//
// Routes:
//   - POST /webhook  alert ingestion, the trading entry point
//   - GET  /health   liveness plus exchange connectivity and credential state
//   - GET  /balance  live free/locked balances for the configured assets
//   - GET  /history  the full trade ledger
//   - GET  /metrics  prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/service"
	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/signal"
)

// ErrInvalidConfig indicates that the provided Config contains invalid values.
var ErrInvalidConfig = errors.New("invalid configuration")

// maxBodySize bounds webhook payloads; TradingView alerts are tiny.
const maxBodySize = 64 * 1024

// ExchangeStatus is the read-only exchange surface the HTTP endpoints need.
type ExchangeStatus interface {
	Ping(ctx context.Context) error
	Configured() bool
	Balances(ctx context.Context) ([]model.AssetBalance, error)
}

// Config provides configuration for the HTTP server.
type Config struct {
	// ListenAddr is the address the server binds to, e.g. ":5000".
	ListenAddr string

	// BalanceAssets is the asset allow-list reported by GET /balance.
	BalanceAssets []string
}

// defaultConfig provides sensible default configuration values.
var defaultConfig = Config{
	ListenAddr:    ":5000",
	BalanceAssets: []string{"USDT", "BTC", "ETH", "BNB"},
}

// Server is the HTTP front end of the trading bot.
type Server struct {
	cfg      Config
	pipeline *service.Pipeline
	exchange ExchangeStatus
	http     *http.Server
}

// New creates the HTTP server with the specified configuration.
//
// If no configuration is provided (cfg is nil), default values are used.
func New(cfg *Config, pipeline *service.Pipeline, exchange ExchangeStatus) (*Server, error) {
	if cfg == nil {
		cfg = &defaultConfig
	}
	if pipeline == nil || exchange == nil {
		return nil, fmt.Errorf("%w: pipeline and exchange are required", ErrInvalidConfig)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultConfig.ListenAddr
	}
	if len(cfg.BalanceAssets) == 0 {
		cfg.BalanceAssets = defaultConfig.BalanceAssets
	}

	s := &Server{
		cfg:      *cfg,
		pipeline: pipeline,
		exchange: exchange,
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// router assembles the gin engine with all routes registered.
func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/webhook", s.handleWebhook)
	r.GET("/health", s.handleHealth)
	r.GET("/balance", s.handleBalance)
	r.GET("/history", s.handleHistory)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Start runs the HTTP server until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

// handleWebhook ingests one TradingView alert in any supported encoding.
func (s *Server) handleWebhook(c *gin.Context) {
	raw := signal.RawRequest{
		ContentType: c.ContentType(),
		Query:       c.Request.URL.Query(),
	}

	// Multipart bodies are consumed by the multipart reader, so the raw body
	// is not kept for the fallback strategies; the form fields are the
	// payload in that encoding.
	if strings.Contains(raw.ContentType, "multipart/form-data") {
		if err := c.Request.ParseMultipartForm(maxBodySize); err == nil {
			raw.Form = c.Request.PostForm
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable request body"})
			return
		}
		raw.Body = body

		// Form decoding happens here, not via ParseForm, because the raw
		// body must stay available for the fallback strategies.
		if strings.Contains(raw.ContentType, "application/x-www-form-urlencoded") {
			if form, err := url.ParseQuery(string(body)); err == nil {
				raw.Form = form
			}
		}
	}

	resp, code := s.pipeline.HandleSignal(c.Request.Context(), raw)
	c.JSON(code, resp)
}

// handleHealth reports liveness and exchange reachability. It always answers
// 200; degraded connectivity shows up in the body, not the status code.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	connected := s.exchange.Ping(ctx) == nil

	c.JSON(http.StatusOK, gin.H{
		"status":                 "ok",
		"timestamp":              time.Now().Format(time.RFC3339),
		"binance_connected":      connected,
		"credentials_configured": s.exchange.Configured(),
	})
}

// handleBalance returns live balances for the configured asset allow-list.
func (s *Server) handleBalance(c *gin.Context) {
	balances, err := s.exchange.Balances(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("balance lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	allowed := map[string]bool{}
	for _, asset := range s.cfg.BalanceAssets {
		allowed[asset] = true
	}

	report := map[string]gin.H{}
	for _, b := range balances {
		if !allowed[b.Asset] {
			continue
		}
		report[b.Asset] = gin.H{"free": b.Free, "locked": b.Locked}
	}

	c.JSON(http.StatusOK, gin.H{"balances": report})
}

// handleHistory returns every ledger row in append order.
func (s *Server) handleHistory(c *gin.Context) {
	trades, err := s.pipeline.History()
	if err != nil {
		log.Error().Err(err).Msg("history read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// requestLogger logs one line per request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}
