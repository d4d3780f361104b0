// Package sizing computes order quantity at entry. The default Sizer
// implements the literal fixed-fraction formula: qty = fraction * initial
// capital / price. KellySizer is an opt-in enrichment that, once enough
// trades have closed, replaces the fraction with a fractional-Kelly
// estimate derived from the closed-trade ledger.
package sizing

import (
	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// Request carries everything a Sizer needs to compute an order quantity.
type Request struct {
	InitialCapital float64
	Price          float64
	Trades         []types.Trade // closed-trade ledger so far, oldest first
}

// Sizer computes the quantity to submit for a new entry.
type Sizer interface {
	Quantity(req Request) float64
}

// FixedFractionSizer computes qty = fraction * initial capital / price,
// with no feedback from trade history.
type FixedFractionSizer struct {
	Fraction float64
}

// NewFixedFractionSizer constructs the default fixed-fraction sizer.
func NewFixedFractionSizer(fraction float64) *FixedFractionSizer {
	return &FixedFractionSizer{Fraction: fraction}
}

// Quantity implements Sizer.
func (s *FixedFractionSizer) Quantity(req Request) float64 {
	if req.Price <= 0 {
		return 0
	}
	return s.Fraction * req.InitialCapital / req.Price
}

// KellySizer sizes with KellyWeight times the Kelly fraction computed from
// the closed-trade ledger, clamped to [MinPositionPct, MaxPositionPct];
// BaseFraction does not enter that value. Uses BaseFraction until at least
// MinSampleTrades closed trades are available.
type KellySizer struct {
	logger *zap.Logger

	BaseFraction    float64
	KellyWeight     float64 // fraction of full Kelly to apply, e.g. 0.25
	MinPositionPct  float64
	MaxPositionPct  float64
	MinSampleTrades int
}

// NewKellySizer constructs a Kelly-scaled sizer from a SizingConfig.
func NewKellySizer(logger *zap.Logger, baseFraction float64, cfg types.SizingConfig) *KellySizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KellySizer{
		logger:          logger,
		BaseFraction:    baseFraction,
		KellyWeight:     cfg.KellyWeight,
		MinPositionPct:  cfg.MinPositionPct,
		MaxPositionPct:  cfg.MaxPositionPct,
		MinSampleTrades: cfg.MinSampleTrades,
	}
}

// Quantity implements Sizer.
func (s *KellySizer) Quantity(req Request) float64 {
	if req.Price <= 0 {
		return 0
	}
	fraction := s.BaseFraction
	if len(req.Trades) >= s.MinSampleTrades {
		stats := ComputeTradeStatistics(req.Trades)
		kelly := KellyCriterion(stats.WinRate, stats.AvgWin, stats.AvgLoss)
		fraction = kelly * s.KellyWeight
		if fraction < s.MinPositionPct {
			fraction = s.MinPositionPct
		}
		if fraction > s.MaxPositionPct {
			fraction = s.MaxPositionPct
		}
	}
	return fraction * req.InitialCapital / req.Price
}

// KellyCriterion implements the standard Kelly Criterion f* = p - q/b,
// where p is the win probability, q = 1-p, and b is the win/loss ratio.
// Returns 0 when the edge is non-positive or inputs are degenerate, and
// clamps the upper bound to 1 (never bet more than the full bankroll).
func KellyCriterion(winRate, avgWin, avgLoss float64) float64 {
	if winRate <= 0 || winRate >= 1 || avgLoss == 0 {
		return 0
	}
	p := winRate
	q := 1 - p
	b := avgWin / avgLoss
	if b <= 0 {
		return 0
	}
	kelly := p - q/b
	if kelly < 0 {
		return 0
	}
	if kelly > 1 {
		kelly = 1
	}
	return kelly
}

// TradeStatistics summarizes a closed-trade ledger for Kelly sizing.
type TradeStatistics struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64
	AvgWin      float64
	AvgLoss     float64
	PayoffRatio float64
	Expectancy  float64
}

// ComputeTradeStatistics aggregates win rate and average win/loss
// magnitude from a closed-trade ledger.
func ComputeTradeStatistics(trades []types.Trade) TradeStatistics {
	var stats TradeStatistics
	stats.TotalTrades = len(trades)
	if stats.TotalTrades == 0 {
		return stats
	}

	var sumWins, sumLosses float64
	for _, tr := range trades {
		if tr.PnL > 0 {
			stats.Wins++
			sumWins += tr.PnL
		} else {
			stats.Losses++
			sumLosses += -tr.PnL
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades)
	if stats.Wins > 0 {
		stats.AvgWin = sumWins / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = sumLosses / float64(stats.Losses)
	}
	if stats.AvgLoss > 0 {
		stats.PayoffRatio = stats.AvgWin / stats.AvgLoss
	}
	stats.Expectancy = stats.WinRate*stats.AvgWin - (1-stats.WinRate)*stats.AvgLoss
	return stats
}

// New constructs the Sizer named by cfg.Mode, defaulting to the fixed
// fraction sizer for any unrecognized mode.
func New(logger *zap.Logger, baseFraction float64, cfg types.SizingConfig) Sizer {
	if cfg.Mode == "kelly" {
		return NewKellySizer(logger, baseFraction, cfg)
	}
	return NewFixedFractionSizer(baseFraction)
}
