// Package report builds the end-of-run record from a completed engine's
// trade ledger and equity curve, and renders it for JSON/API consumption
// (decimal) and for console output (humanize + term width fitting).
package report

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ohlcv-backtester/pkg/types"
	"ohlcv-backtester/pkg/utils"
)

// Builder assembles a types.BacktestReport from a run's raw outputs. Build's
// math is float64, matching the core simulation path; decimal conversion
// happens in Decimal() and in BuildChecked's cross-check.
type Builder struct {
	RunID       string
	InitialCapital float64
	Trades      []types.Trade
	EquityCurve []types.EquityPoint
	StartedAt   time.Time
	CompletedAt time.Time
	BarsProcessed int64
}

// Build computes the end-of-run fields: final_equity, total_return_pct,
// total_trades, winning_trades, win_rate, gross_profit, gross_loss,
// profit_factor, duration_ms, bars_per_sec.
func (b Builder) Build() types.BacktestReport {
	finalEquity := b.InitialCapital
	if len(b.EquityCurve) > 0 {
		finalEquity = b.EquityCurve[len(b.EquityCurve)-1].Equity
	}

	var winning int
	var grossProfit, grossLoss float64
	for _, tr := range b.Trades {
		if tr.PnL > 0 {
			winning++
			grossProfit += tr.PnL
		} else {
			grossLoss += -tr.PnL
		}
	}

	winRate := 0.0
	if len(b.Trades) > 0 {
		winRate = float64(winning) / float64(len(b.Trades))
	}

	profitFactor := 0.0
	if grossLoss > 0 {
		profitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		profitFactor = math.Inf(1)
	}

	totalReturnPct := 0.0
	if b.InitialCapital > 0 {
		totalReturnPct = (finalEquity - b.InitialCapital) / b.InitialCapital * 100
	}

	duration := b.CompletedAt.Sub(b.StartedAt)
	durationMs := duration.Milliseconds()
	barsPerSec := 0.0
	if duration > 0 {
		barsPerSec = float64(b.BarsProcessed) / duration.Seconds()
	}

	return types.BacktestReport{
		RunID:          b.RunID,
		FinalEquity:    finalEquity,
		TotalReturnPct: totalReturnPct,
		TotalTrades:    len(b.Trades),
		WinningTrades:  winning,
		WinRate:        winRate,
		GrossProfit:    grossProfit,
		GrossLoss:      grossLoss,
		ProfitFactor:   profitFactor,
		DurationMs:     durationMs,
		BarsPerSec:     barsPerSec,
		Trades:         b.Trades,
		EquityCurve:    b.EquityCurve,
		StartedAt:      b.StartedAt,
		CompletedAt:    b.CompletedAt,
	}
}

// DecimalReport re-expresses a report's money fields as shopspring/decimal,
// the boundary representation used by the API/JSON and archival layers.
type DecimalReport struct {
	RunID          string
	FinalEquity    decimal.Decimal
	TotalReturnPct decimal.Decimal
	TotalTrades    int
	WinningTrades  int
	WinRate        decimal.Decimal
	GrossProfit    decimal.Decimal
	GrossLoss      decimal.Decimal
	ProfitFactor   decimal.Decimal
	DurationMs     int64
	BarsPerSec     decimal.Decimal
}

// Decimal converts a report's float64 money fields to decimal.Decimal,
// clamping WinRate and ProfitFactor to their valid domains defensively
// against any NaN/Inf that could otherwise leak from the float64 core.
func Decimal(r types.BacktestReport) DecimalReport {
	// decimal.NewFromFloat panics on NaN/Inf, so those are mapped first: a
	// loss-free +Inf profit factor to the cap utils.CalculateProfitFactor uses.
	wr, pf := r.WinRate, r.ProfitFactor
	if math.IsNaN(wr) {
		wr = 0
	}
	if math.IsInf(pf, 1) {
		pf = 100
	} else if math.IsNaN(pf) || math.IsInf(pf, -1) {
		pf = 0
	}
	winRate := utils.ClampDecimal(decimal.NewFromFloat(wr), decimal.Zero, decimal.NewFromInt(1))
	profitFactor := utils.MaxDecimal(decimal.Zero, decimal.NewFromFloat(pf))

	return DecimalReport{
		RunID:          r.RunID,
		FinalEquity:    decimal.NewFromFloat(r.FinalEquity),
		TotalReturnPct: decimal.NewFromFloat(r.TotalReturnPct),
		TotalTrades:    r.TotalTrades,
		WinningTrades:  r.WinningTrades,
		WinRate:        winRate,
		GrossProfit:    decimal.NewFromFloat(r.GrossProfit),
		GrossLoss:      decimal.NewFromFloat(r.GrossLoss),
		ProfitFactor:   profitFactor,
		DurationMs:     r.DurationMs,
		BarsPerSec:     decimal.NewFromFloat(r.BarsPerSec),
	}
}
