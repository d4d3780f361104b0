// Package regime classifies recent market behavior into one of four coarse
// regimes from rolling volatility comparison and a trend-strength threshold.
// It never emits a trade signal; it only exposes Regime() for the dispatcher
// in internal/engine to act on.
package regime

import (
	"math"

	"go.uber.org/zap"

	"ohlcv-backtester/internal/indicators"
	"ohlcv-backtester/pkg/types"
)

// Config tunes the detector's windows and trend threshold.
type Config struct {
	VolShort       int
	VolLong        int
	TrendSMA       int
	TrendThreshold float64
}

// DefaultConfig returns spec defaults: VOL_SHORT=50, VOL_LONG=200,
// TREND_SMA=300, TREND_THRESHOLD=0.005.
func DefaultConfig() Config {
	return Config{
		VolShort:       50,
		VolLong:        200,
		TrendSMA:       300,
		TrendThreshold: 0.005,
	}
}

// Detector maintains two RollingStats over log-returns and one SMA of
// closes to classify the current regime on every bar.
type Detector struct {
	logger *zap.Logger
	cfg    Config

	volShort *indicators.RollingStats
	volLong  *indicators.RollingStats
	trendSMA *indicators.SMA

	havePrevClose bool
	prevClose     float64

	current types.Regime
}

// New constructs a Detector. A nil logger defaults to zap.NewNop().
func New(logger *zap.Logger, cfg Config) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		logger:   logger,
		cfg:      cfg,
		volShort: indicators.NewRollingStats(cfg.VolShort),
		volLong:  indicators.NewRollingStats(cfg.VolLong),
		trendSMA: indicators.NewSMA(cfg.TrendSMA),
		current:  types.RegimeUndefined,
	}
}

// OnBar feeds one bar's close into the detector's indicators and updates
// the current regime if everything is ready.
func (d *Detector) OnBar(bar types.Bar) {
	d.trendSMA.Update(bar.Close)

	if !d.havePrevClose {
		d.havePrevClose = true
		d.prevClose = bar.Close
		return
	}
	logReturn := 0.0
	if d.prevClose > 0 {
		logReturn = math.Log(bar.Close / d.prevClose)
	}
	d.prevClose = bar.Close

	d.volShort.Update(logReturn)
	d.volLong.Update(logReturn)

	if !d.Ready() {
		return
	}

	// <= rather than <: a flat/constant price gives short stddev == long
	// stddev == 0, and that tie resolves to low-vol (LV_RANGE alongside
	// zero trend strength) rather than HV_RANGE.
	lowVol := d.volShort.StdDev() <= d.volLong.StdDev()
	trendSMA := d.trendSMA.Value()
	trendStrength := 0.0
	if trendSMA != 0 {
		trendStrength = math.Abs(bar.Close-trendSMA) / trendSMA
	}
	trending := trendStrength > d.cfg.TrendThreshold

	switch {
	case lowVol && trending:
		d.current = types.RegimeLVTrend
	case !lowVol && trending:
		d.current = types.RegimeHVTrend
	case lowVol && !trending:
		d.current = types.RegimeLVRange
	default:
		d.current = types.RegimeHVRange
	}
}

// Ready reports whether both volatility windows and the trend SMA have
// filled.
func (d *Detector) Ready() bool {
	return d.volShort.Ready() && d.volLong.Ready() && d.trendSMA.Ready()
}

// Regime returns the most recently classified regime. RegimeUndefined
// until Ready.
func (d *Detector) Regime() types.Regime { return d.current }
