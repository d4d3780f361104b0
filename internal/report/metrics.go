package report

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"ohlcv-backtester/pkg/types"
)

// ExtendedMetrics holds the risk-adjusted performance statistics beyond
// the core end-of-run record: Sharpe, Sortino, max drawdown, VaR at the
// 95% and 99% confidence levels and CVaR at 95%, derived from the per-bar
// equity curve's return series.
type ExtendedMetrics struct {
	SharpeRatio  decimal.Decimal
	SortinoRatio decimal.Decimal
	MaxDrawdown  decimal.Decimal
	VaR95        decimal.Decimal
	VaR99        decimal.Decimal
	CVaR95       decimal.Decimal
}

// periodsPerYear annualizes as if each bar were one trading day (252 per
// year). For any other bar cadence the Sharpe/Sortino magnitudes are not
// true annualized values; only their relative ranking is meaningful.
const periodsPerYear = 252

// ComputeExtendedMetrics derives Sharpe, Sortino, max drawdown, and VaR
// from an equity curve's bar-over-bar return series.
func ComputeExtendedMetrics(equityCurve []types.EquityPoint) ExtendedMetrics {
	if len(equityCurve) < 2 {
		return ExtendedMetrics{}
	}
	returns := barReturns(equityCurve)
	if len(returns) == 0 {
		return ExtendedMetrics{}
	}

	mean := meanOf(returns)
	std := stdDevOf(returns)
	sharpe := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(periodsPerYear)
	}

	downside := downsideDeviation(returns)
	sortino := 0.0
	if downside > 0 {
		sortino = mean / downside * math.Sqrt(periodsPerYear)
	}

	maxDD := maxDrawdown(equityCurve)

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	var95 := -percentileAt(sorted, 0.05)
	var99 := -percentileAt(sorted, 0.01)
	cvar95 := -conditionalMean(sorted, 0.05)

	return ExtendedMetrics{
		SharpeRatio:  decimal.NewFromFloat(sharpe),
		SortinoRatio: decimal.NewFromFloat(sortino),
		MaxDrawdown:  decimal.NewFromFloat(maxDD),
		VaR95:        decimal.NewFromFloat(var95),
		VaR99:        decimal.NewFromFloat(var99),
		CVaR95:       decimal.NewFromFloat(cvar95),
	}
}

func barReturns(equityCurve []types.EquityPoint) []float64 {
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equityCurve[i].Equity-prev)/prev)
	}
	return returns
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := meanOf(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}

func downsideDeviation(returns []float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return 0
	}
	return stdDevOf(negative)
}

func maxDrawdown(equityCurve []types.EquityPoint) float64 {
	if len(equityCurve) == 0 {
		return 0
	}
	peak := equityCurve[0].Equity
	maxDD := 0.0
	for _, point := range equityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - point.Equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func percentileAt(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func conditionalMean(sorted []float64, p float64) float64 {
	n := int(p * float64(len(sorted)))
	if n <= 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += sorted[i]
	}
	return sum / float64(n)
}
