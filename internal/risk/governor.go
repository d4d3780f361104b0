// Package risk implements the trailing-stop, trade-cap, and cooldown
// governor that gates and bounds the engine's entries and exits.
package risk

import (
	"time"

	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// Config tunes the governor's limits.
type Config struct {
	ATRStopMultiplier float64
	MaxTradesPerDay   int
	CooldownBars      int
}

// Governor holds the per-position trailing-stop state plus the per-day
// trade cap and post-loss cooldown counters.
type Governor struct {
	logger *zap.Logger
	cfg    Config

	side            types.Side
	entryPrice      float64
	atrAtEntry      float64
	peakFavorable   float64
	stopPrice       float64

	tradesToday     int
	lastTradeDay    string
	cooldownRemaining int
}

// New constructs a Governor.
func New(logger *zap.Logger, cfg Config) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{logger: logger, cfg: cfg}
}

func dayKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// CanEnter reports whether a new entry is permitted on this bar: the
// per-day trade cap has not been reached and no cooldown is active.
// It also resets the trades-today counter when the bar crosses into a new
// calendar day.
func (g *Governor) CanEnter(bar types.Bar) bool {
	today := dayKey(bar.Timestamp)
	if today != g.lastTradeDay {
		g.tradesToday = 0
	}
	return g.tradesToday < g.cfg.MaxTradesPerDay && g.cooldownRemaining == 0
}

// OnEntry records a new position's entry state, sets the initial trailing
// stop, and stamps the calendar day for the per-day trade cap. entryTime
// is the bar timestamp the entry occurred on.
func (g *Governor) OnEntry(price, atr float64, side types.Side, entryTime int64) {
	g.side = side
	g.entryPrice = price
	g.atrAtEntry = atr
	g.peakFavorable = price
	m := g.cfg.ATRStopMultiplier
	if side == types.SideLong {
		g.stopPrice = price - m*atr
	} else {
		g.stopPrice = price + m*atr
	}

	g.tradesToday++
	g.lastTradeDay = dayKey(entryTime)
}

// CheckExit evaluates the trailing stop against the bar's intrabar
// high/low and ratchets the stop in the favorable direction. Returns true
// when the stop has triggered. Returns false immediately while flat.
func (g *Governor) CheckExit(bar types.Bar) bool {
	if g.side == types.SideFlat {
		return false
	}
	m := g.cfg.ATRStopMultiplier

	if g.side == types.SideLong {
		if bar.Low < g.stopPrice {
			return true
		}
		if bar.High > g.peakFavorable {
			g.peakFavorable = bar.High
			candidate := g.peakFavorable - m*g.atrAtEntry
			if candidate > g.stopPrice {
				g.stopPrice = candidate
			}
		}
		return false
	}

	// Short side: symmetric using low/min.
	if bar.High > g.stopPrice {
		return true
	}
	if bar.Low < g.peakFavorable {
		g.peakFavorable = bar.Low
		candidate := g.peakFavorable + m*g.atrAtEntry
		if candidate < g.stopPrice {
			g.stopPrice = candidate
		}
	}
	return false
}

// OnExit clears the governor's position state and starts a cooldown if the
// closed trade was a loss.
func (g *Governor) OnExit(wasWin bool) {
	g.side = types.SideFlat
	if !wasWin {
		g.cooldownRemaining = g.cfg.CooldownBars
	}
}

// Tick decrements the cooldown counter toward zero. Called once per bar.
func (g *Governor) Tick() {
	if g.cooldownRemaining > 0 {
		g.cooldownRemaining--
	}
}

// StopPrice returns the current trailing stop level. The engine also uses
// it as the fill price when RealisticStopFill is set.
func (g *Governor) StopPrice() float64 { return g.stopPrice }

// CooldownRemaining returns the number of bars left in the post-loss
// cooldown.
func (g *Governor) CooldownRemaining() int { return g.cooldownRemaining }
