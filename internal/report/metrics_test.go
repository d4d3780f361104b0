package report

import (
	"math"
	"testing"

	"ohlcv-backtester/pkg/types"
)

func TestComputeExtendedMetricsEmptyCurve(t *testing.T) {
	m := ComputeExtendedMetrics(nil)
	if !m.SharpeRatio.IsZero() || !m.MaxDrawdown.IsZero() {
		t.Fatalf("expected zero-valued metrics for an empty equity curve, got %+v", m)
	}
}

func TestComputeExtendedMetricsFlatEquityHasZeroSharpe(t *testing.T) {
	curve := make([]types.EquityPoint, 10)
	for i := range curve {
		curve[i] = types.EquityPoint{Equity: 1000}
	}
	m := ComputeExtendedMetrics(curve)
	if !m.SharpeRatio.IsZero() {
		t.Fatalf("expected zero sharpe when returns have zero variance, got %s", m.SharpeRatio.String())
	}
}

func TestComputeExtendedMetricsDetectsDrawdown(t *testing.T) {
	curve := []types.EquityPoint{
		{Equity: 1000}, {Equity: 1100}, {Equity: 900}, {Equity: 950},
	}
	m := ComputeExtendedMetrics(curve)
	dd, _ := m.MaxDrawdown.Float64()
	want := (1100.0 - 900.0) / 1100.0
	if math.Abs(dd-want) > 1e-9 {
		t.Fatalf("max drawdown mismatch: got %f want %f", dd, want)
	}
}

func TestComputeExtendedMetricsVaRIsNonNegativeUnderLosses(t *testing.T) {
	curve := []types.EquityPoint{
		{Equity: 1000}, {Equity: 950}, {Equity: 900}, {Equity: 850}, {Equity: 800},
	}
	m := ComputeExtendedMetrics(curve)
	v95, _ := m.VaR95.Float64()
	if v95 < 0 {
		t.Fatalf("expected non-negative VaR95 under a losing streak, got %f", v95)
	}
}
