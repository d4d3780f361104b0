package report

import "github.com/shopspring/decimal"

// ViabilityThresholds are the minimum bar a completed run must clear to be
// considered viable enough to progress past backtesting.
type ViabilityThresholds struct {
	MinSharpeRatio  decimal.Decimal
	MaxDrawdown     decimal.Decimal
	MinProfitFactor decimal.Decimal
	MinWinRate      decimal.Decimal
	MinTrades       int
}

// DefaultViabilityThresholds returns conservative defaults.
func DefaultViabilityThresholds() ViabilityThresholds {
	return ViabilityThresholds{
		MinSharpeRatio:  decimal.NewFromFloat(0.5),
		MaxDrawdown:     decimal.NewFromFloat(0.20),
		MinProfitFactor: decimal.NewFromFloat(1.5),
		MinWinRate:      decimal.NewFromFloat(0.40),
		MinTrades:       30,
	}
}

// ViabilityVerdict names which thresholds a run failed, if any.
type ViabilityVerdict struct {
	Viable        bool
	FailedChecks  []string
}

// AssessViability compares a report and its extended metrics against a set
// of thresholds.
func AssessViability(r DecimalReport, metrics ExtendedMetrics, thresholds ViabilityThresholds) ViabilityVerdict {
	var failed []string

	if r.TotalTrades < thresholds.MinTrades {
		failed = append(failed, "insufficient trades for statistical significance")
	}
	if metrics.SharpeRatio.LessThan(thresholds.MinSharpeRatio) {
		failed = append(failed, "sharpe ratio below minimum")
	}
	if metrics.MaxDrawdown.GreaterThan(thresholds.MaxDrawdown) {
		failed = append(failed, "max drawdown above limit")
	}
	if r.ProfitFactor.LessThan(thresholds.MinProfitFactor) {
		failed = append(failed, "profit factor below minimum")
	}
	if r.WinRate.LessThan(thresholds.MinWinRate) {
		failed = append(failed, "win rate below minimum")
	}

	return ViabilityVerdict{Viable: len(failed) == 0, FailedChecks: failed}
}
