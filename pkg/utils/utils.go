// Package utils provides reporting-layer helpers for the backtesting core.
//
// Everything here operates on decimal.Decimal and lives at the report/API
// boundary; the core simulation path (indicators, execution, risk) is
// float64 end to end and never imports this package. See SPEC_FULL.md §3
// for why the split exists.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CalculateMean calculates the mean of decimal values.
func CalculateMean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// CalculateStdDev calculates standard deviation of decimal values.
func CalculateStdDev(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	mean := CalculateMean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// CalculateSharpeRatio calculates an annualized Sharpe ratio from a
// per-bar return series.
func CalculateSharpeRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal, periodsPerYear int) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	meanReturn := CalculateMean(returns)
	stdDev := CalculateStdDev(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}
	annualizationFactor := decimal.NewFromFloat(math.Sqrt(float64(periodsPerYear)))
	excessReturn := meanReturn.Sub(riskFreeRate.Div(decimal.NewFromInt(int64(periodsPerYear))))
	return excessReturn.Div(stdDev).Mul(annualizationFactor)
}

// CalculateMaxDrawdown calculates maximum drawdown from an equity curve.
func CalculateMaxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}
	maxDrawdown := decimal.Zero
	peak := equity[0]
	for _, value := range equity {
		if value.GreaterThan(peak) {
			peak = value
		}
		if peak.IsZero() {
			continue
		}
		drawdown := peak.Sub(value).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// CalculateWinRate calculates win rate from a closed-trade PnL series.
func CalculateWinRate(pnls []decimal.Decimal) decimal.Decimal {
	if len(pnls) == 0 {
		return decimal.Zero
	}
	wins := 0
	for _, pnl := range pnls {
		if pnl.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(pnls))))
}

// CalculateProfitFactor calculates profit factor (gross profit / gross loss).
func CalculateProfitFactor(pnls []decimal.Decimal) decimal.Decimal {
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, pnl := range pnls {
		if pnl.GreaterThan(decimal.Zero) {
			grossProfit = grossProfit.Add(pnl)
		} else {
			grossLoss = grossLoss.Add(pnl.Abs())
		}
	}
	if grossLoss.IsZero() {
		return decimal.NewFromInt(100) // infinite profit factor, capped
	}
	return grossProfit.Div(grossLoss)
}

// FormatMoney formats a decimal as a money string for console/report output.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return "$" + d.StringFixed(2)
	case "GBP":
		return "£" + d.StringFixed(2)
	case "EUR":
		return "€" + d.StringFixed(2)
	default:
		return d.String() + " " + currency
	}
}

// FormatDuration formats a duration in human-readable form for the console
// report when dustin/go-humanize's relative-time formatting isn't a fit
// (exact elapsed run time, not "3 hours ago").
func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// MinDecimal returns the minimum of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal clamps a value between min and max.
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}
