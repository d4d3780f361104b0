package strategy

import (
	"math"

	"go.uber.org/zap"

	"ohlcv-backtester/internal/indicators"
	"ohlcv-backtester/pkg/types"
)

// MeanReversion is the range-trading producer: Bollinger %b-derived
// position within bands, gated by RSI and a short/long stddev comparison.
type MeanReversion struct {
	logger *zap.Logger
	cfg    types.MeanReversionConfig

	bb         *indicators.Bollinger
	rsi        *indicators.RSI
	shortStats *indicators.RollingStats
	longStats  *indicators.RollingStats

	havePrevClose bool
	prevClose     float64

	signal int
}

// NewMeanReversion constructs the mean-reversion producer from its
// configuration.
func NewMeanReversion(logger *zap.Logger, cfg types.MeanReversionConfig) *MeanReversion {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeanReversion{
		logger:     logger,
		cfg:        cfg,
		bb:         indicators.NewBollinger(cfg.BollingerPeriod, cfg.BollingerWidth),
		rsi:        indicators.NewRSI(cfg.RSIPeriod),
		shortStats: indicators.NewRollingStats(cfg.ShortStatsWindow),
		longStats:  indicators.NewRollingStats(cfg.LongStatsWindow),
	}
}

// Name returns the producer's identifier.
func (mr *MeanReversion) Name() string { return "mean_reversion" }

// OnBar updates every underlying indicator and re-evaluates the signal.
func (mr *MeanReversion) OnBar(bar types.Bar) {
	mr.bb.Update(bar.Close)
	mr.rsi.Update(bar.Close)

	if mr.havePrevClose && mr.prevClose > 0 {
		logReturn := math.Log(bar.Close / mr.prevClose)
		mr.shortStats.Update(logReturn)
		mr.longStats.Update(logReturn)
	}
	mr.havePrevClose = true
	mr.prevClose = bar.Close

	if !mr.ready() {
		mr.signal = 0
		return
	}

	middle, _, _, _ := mr.bb.Bands()
	std := mr.bollingerStdDev()
	bbPos := 0.0
	if std > 0 {
		bbPos = (bar.Close - middle) / (2 * std)
	}
	rsi := mr.rsi.Value()
	shortLtLong := mr.shortStats.StdDev() < mr.longStats.StdDev()

	switch {
	case mr.signal == 1 && bbPos > mr.cfg.ExitBandPos:
		mr.signal = 0
	case mr.signal == -1 && bbPos < -mr.cfg.ExitBandPos:
		mr.signal = 0
	case bbPos < -mr.cfg.EntryBandPos && rsi < mr.cfg.RSIFloor && shortLtLong:
		mr.signal = 1
	case bbPos > mr.cfg.EntryBandPos && rsi > mr.cfg.RSICeiling && shortLtLong:
		mr.signal = -1
	}
	// otherwise: hold the prior signal unchanged
}

func (mr *MeanReversion) bollingerStdDev() float64 {
	middle, upper, _, _ := mr.bb.Bands()
	return (upper - middle) / mr.cfg.BollingerWidth
}

// Signal returns the producer's current desired position side.
func (mr *MeanReversion) Signal() int {
	if !mr.ready() {
		return 0
	}
	return mr.signal
}

func (mr *MeanReversion) ready() bool {
	return mr.bb.Ready() && mr.rsi.Ready() && mr.shortStats.Ready() && mr.longStats.Ready()
}
