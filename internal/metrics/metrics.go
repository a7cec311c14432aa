// Package metrics exposes prometheus counters for the webhook pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SignalsTotal counts webhook deliveries by terminal result
	// (success, error, parse_failure, invalid_action).
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_signals_total", Help: "Webhook signals received by result"},
		[]string{"result"},
	)

	// OrdersTotal counts market orders accepted by the exchange.
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Market orders accepted by the exchange"},
		[]string{"symbol", "side"},
	)

	// LedgerWriteFailures counts trade-history rows that could not be appended.
	LedgerWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ledger_write_failures_total", Help: "Failed trade history appends"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, OrdersTotal, LedgerWriteFailures)
}
