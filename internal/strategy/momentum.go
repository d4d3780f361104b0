package strategy

import (
	"go.uber.org/zap"

	"ohlcv-backtester/internal/indicators"
	"ohlcv-backtester/pkg/types"
)

// Momentum is the trend-following producer: ROC(100) fed into a
// RollingStats z-score, filtered by an EMA cross, a volume SMA, and RSI.
type Momentum struct {
	logger *zap.Logger
	cfg    types.MomentumConfig

	roc      *indicators.ROC
	zscore   *indicators.RollingStats
	emaFast  *indicators.EMA
	emaSlow  *indicators.EMA
	volSMA   *indicators.SMA
	rsi      *indicators.RSI

	lastZ  float64
	signal int
}

// NewMomentum constructs the momentum producer from its configuration.
func NewMomentum(logger *zap.Logger, cfg types.MomentumConfig) *Momentum {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Momentum{
		logger:  logger,
		cfg:     cfg,
		roc:     indicators.NewROC(cfg.ROCPeriod),
		zscore:  indicators.NewRollingStats(cfg.ZScoreWindow),
		emaFast: indicators.NewEMA(cfg.EMAFast),
		emaSlow: indicators.NewEMA(cfg.EMASlow),
		volSMA:  indicators.NewSMA(cfg.VolumeSMA),
		rsi:     indicators.NewRSI(cfg.RSIPeriod),
	}
}

// Name returns the producer's identifier.
func (m *Momentum) Name() string { return "momentum" }

// OnBar updates every underlying indicator and re-evaluates the signal.
func (m *Momentum) OnBar(bar types.Bar) {
	rocVal := m.roc.Update(bar.Close)
	m.emaFast.Update(bar.Close)
	m.emaSlow.Update(bar.Close)
	m.volSMA.Update(bar.Volume)
	m.rsi.Update(bar.Close)

	if !m.roc.Ready() {
		m.zscore.Update(rocVal)
		m.signal = 0
		return
	}
	z := m.zscore.Update(rocVal)

	if !m.ready() {
		m.signal = 0
		m.lastZ = z
		return
	}

	emaFast := m.emaFast.Value()
	emaSlow := m.emaSlow.Value()
	rsi := m.rsi.Value()
	volumeOK := bar.Volume > m.volSMA.Value()

	longEntry := z > m.cfg.EntryZScore && emaFast > emaSlow && volumeOK && rsi < m.cfg.RSICeiling && z > m.lastZ
	shortEntry := z < -m.cfg.EntryZScore && emaFast < emaSlow && volumeOK && rsi > m.cfg.RSIFloor && z < m.lastZ
	weakening := absFloat(z) < m.cfg.ExitZScore

	switch {
	case weakening:
		m.signal = 0
	case longEntry:
		m.signal = 1
	case shortEntry:
		m.signal = -1
	}
	// otherwise: hold the prior signal unchanged

	m.lastZ = z
}

// Signal returns the producer's current desired position side.
func (m *Momentum) Signal() int {
	if !m.ready() {
		return 0
	}
	return m.signal
}

func (m *Momentum) ready() bool {
	return m.roc.Ready() && m.zscore.Ready() && m.emaSlow.Ready() && m.volSMA.Ready() && m.rsi.Ready()
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
