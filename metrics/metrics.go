// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotrisk_orders_total",
		Help: "Orders placed, by mode and side.",
	}, []string{"mode", "side"})

	exitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotrisk_exits_total",
		Help: "Position exits, by reason.",
	}, []string{"reason"})

	tradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotrisk_trades_total",
		Help: "Completed round trips, by result (win/loss).",
	}, []string{"result"})

	haltsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotrisk_halts_total",
		Help: "Risk governor halts, by reason.",
	}, []string{"reason"})

	equityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spotrisk_equity_usd",
		Help: "Total account value (cash plus marked positions).",
	})

	openPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spotrisk_open_positions",
		Help: "Number of open positions.",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spotrisk_breaker_state",
		Help: "Circuit breaker state (1 for the active state).",
	}, []string{"state"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spotrisk_tick_duration_seconds",
		Help:    "Wall time of one engine tick.",
		Buckets: prometheus.DefBuckets,
	})
)

func IncOrder(mode, side string)  { ordersTotal.WithLabelValues(mode, side).Inc() }
func IncExit(reason string)       { exitsTotal.WithLabelValues(reason).Inc() }
func IncHalt(reason string)       { haltsTotal.WithLabelValues(reason).Inc() }
func ObserveEquity(v float64)     { equityGauge.Set(v) }
func SetOpenPositions(n int)      { openPositions.Set(float64(n)) }
func ObserveTick(seconds float64) { tickDuration.Observe(seconds) }

func IncTrade(pnlUSD float64) {
	if pnlUSD >= 0 {
		tradesTotal.WithLabelValues("win").Inc()
	} else {
		tradesTotal.WithLabelValues("loss").Inc()
	}
}

// SetBreakerState marks the active breaker state, clearing the others.
func SetBreakerState(state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(s).Set(v)
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
