package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ohlcv-backtester/pkg/types"
)

// MetricsRegistry exposes run-level counters and gauges on a dedicated
// prometheus registry, served by internal/api at /metrics.
type MetricsRegistry struct {
	Registry *prometheus.Registry

	BarsProcessedTotal prometheus.Counter
	TradesTotal        prometheus.Counter
	Equity             prometheus.Gauge
	RunDurationSeconds prometheus.Histogram
}

// NewMetricsRegistry constructs and registers the backtest_* metrics
// family.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()

	m := &MetricsRegistry{
		Registry: reg,
		BarsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Total number of bars processed across all runs.",
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Total number of closed trades across all runs.",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_equity",
			Help: "Final equity of the most recently completed run.",
		}),
		RunDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_duration_seconds",
			Help:    "Wall-clock duration of completed backtest runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.BarsProcessedTotal, m.TradesTotal, m.Equity, m.RunDurationSeconds)
	return m
}

// RecordRun updates the registry's gauges and counters with a completed
// run's report.
func (m *MetricsRegistry) RecordRun(r types.BacktestReport) {
	m.BarsProcessedTotal.Add(float64(len(r.EquityCurve)))
	m.TradesTotal.Add(float64(r.TotalTrades))
	m.Equity.Set(r.FinalEquity)
	m.RunDurationSeconds.Observe(time.Duration(r.DurationMs * int64(time.Millisecond)).Seconds())
}
