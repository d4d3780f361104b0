// Package types provides configuration types for the backtesting core.
package types

import "time"

// MomentumConfig tunes the momentum producer (ROC + RollingStats z-score,
// EMA cross and RSI filters).
type MomentumConfig struct {
	ROCPeriod     int     `yaml:"roc_period" mapstructure:"roc_period"`
	ZScoreWindow  int     `yaml:"zscore_window" mapstructure:"zscore_window"`
	EMAFast       int     `yaml:"ema_fast" mapstructure:"ema_fast"`
	EMASlow       int     `yaml:"ema_slow" mapstructure:"ema_slow"`
	VolumeSMA     int     `yaml:"volume_sma" mapstructure:"volume_sma"`
	RSIPeriod     int     `yaml:"rsi_period" mapstructure:"rsi_period"`
	EntryZScore   float64 `yaml:"entry_zscore" mapstructure:"entry_zscore"`
	ExitZScore    float64 `yaml:"exit_zscore" mapstructure:"exit_zscore"`
	RSIFloor      float64 `yaml:"rsi_floor" mapstructure:"rsi_floor"`
	RSICeiling    float64 `yaml:"rsi_ceiling" mapstructure:"rsi_ceiling"`
}

// DefaultMomentumConfig returns the reference momentum producer defaults.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		ROCPeriod:    100,
		ZScoreWindow: 100,
		EMAFast:      12,
		EMASlow:      26,
		VolumeSMA:    20,
		RSIPeriod:    14,
		EntryZScore:  1.5,
		ExitZScore:   0.3,
		RSIFloor:     25,
		RSICeiling:   75,
	}
}

// MeanReversionConfig tunes the mean-reversion producer (Bollinger %b + RSI
// + a pair of RollingStats windows).
type MeanReversionConfig struct {
	BollingerPeriod  int     `yaml:"bollinger_period" mapstructure:"bollinger_period"`
	BollingerWidth   float64 `yaml:"bollinger_width" mapstructure:"bollinger_width"`
	RSIPeriod        int     `yaml:"rsi_period" mapstructure:"rsi_period"`
	ShortStatsWindow int     `yaml:"short_stats_window" mapstructure:"short_stats_window"`
	LongStatsWindow  int     `yaml:"long_stats_window" mapstructure:"long_stats_window"`
	RSIFloor         float64 `yaml:"rsi_floor" mapstructure:"rsi_floor"`
	RSICeiling       float64 `yaml:"rsi_ceiling" mapstructure:"rsi_ceiling"`
	EntryBandPos     float64 `yaml:"entry_band_pos" mapstructure:"entry_band_pos"`
	ExitBandPos      float64 `yaml:"exit_band_pos" mapstructure:"exit_band_pos"`
}

// DefaultMeanReversionConfig returns the reference mean-reversion producer defaults.
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		BollingerPeriod:  100,
		BollingerWidth:   2.0,
		RSIPeriod:        20,
		ShortStatsWindow: 20,
		LongStatsWindow:  60,
		RSIFloor:         30,
		RSICeiling:       70,
		EntryBandPos:     0.8,
		ExitBandPos:      0.1,
	}
}

// RegimeConfig tunes the regime classifier's rolling-volatility comparison
// and trend-strength threshold.
type RegimeConfig struct {
	ShortWindow    int     `yaml:"short_window" mapstructure:"short_window"`
	LongWindow     int     `yaml:"long_window" mapstructure:"long_window"`
	TrendWindow    int     `yaml:"trend_window" mapstructure:"trend_window"`
	TrendThreshold float64 `yaml:"trend_threshold" mapstructure:"trend_threshold"`
}

// DefaultRegimeConfig mirrors internal/regime.DefaultConfig's
// VOL_SHORT=50, VOL_LONG=200, TREND_SMA=300, TREND_THRESHOLD=0.005.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ShortWindow:    50,
		LongWindow:     200,
		TrendWindow:    300,
		TrendThreshold: 0.005,
	}
}

// ArchiveConfig gates the optional Postgres archival store. Archival is
// advisory and never required for a run to complete.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// SizingConfig selects and tunes the order-sizing strategy applied on
// entry. Mode "fixed" is the literal fixed-fraction formula; "kelly" is an
// enrichment that, after MinSampleTrades closed trades, sizes with
// KellyWeight times the Kelly fraction of the closed-trade ledger (clamped
// to [MinPositionPct, MaxPositionPct]) in place of AllocationFraction.
type SizingConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"` // "fixed" or "kelly"
	KellyWeight     float64 `yaml:"kelly_weight" mapstructure:"kelly_weight"`
	MinPositionPct  float64 `yaml:"min_position_pct" mapstructure:"min_position_pct"`
	MaxPositionPct  float64 `yaml:"max_position_pct" mapstructure:"max_position_pct"`
	MinSampleTrades int     `yaml:"min_sample_trades" mapstructure:"min_sample_trades"`
}

// DefaultSizingConfig defaults to the fixed-fraction sizer; Kelly scaling
// is opt-in.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		Mode:            "fixed",
		KellyWeight:     0.25,
		MinPositionPct:  0.05,
		MaxPositionPct:  0.50,
		MinSampleTrades: 20,
	}
}

// EngineConfig carries every engine-level tunable, plus the producer and
// regime sub-configs and the ambient archival and sizing knobs layered on
// top. API server settings live separately in ServerConfig.
type EngineConfig struct {
	InitialCapital    float64 `yaml:"initial_capital" mapstructure:"initial_capital"`
	AllocationFraction float64 `yaml:"allocation_fraction" mapstructure:"allocation_fraction"`
	FeeRate           float64 `yaml:"fee_rate" mapstructure:"fee_rate"`
	ATRStopMultiplier float64 `yaml:"atr_stop_multiplier" mapstructure:"atr_stop_multiplier"`
	ATRPeriod         int     `yaml:"atr_period" mapstructure:"atr_period"`

	// MaxDrawdownLimit, when > 0, forces flat and suspends new entries for
	// CooldownBars bars once drawdown from peak equity exceeds this fraction.
	MaxDrawdownLimit float64 `yaml:"max_drawdown_limit" mapstructure:"max_drawdown_limit"`

	MaxTradesPerDay int `yaml:"max_trades_per_day" mapstructure:"max_trades_per_day"`
	CooldownBars    int `yaml:"cooldown_bars" mapstructure:"cooldown_bars"`

	// RealisticStopFill, when true, fills a triggered trailing stop at the
	// intrabar stop price instead of the conservative next-bar-open price.
	RealisticStopFill bool `yaml:"realistic_stop_fill" mapstructure:"realistic_stop_fill"`

	Momentum      MomentumConfig       `yaml:"momentum" mapstructure:"momentum"`
	MeanReversion MeanReversionConfig  `yaml:"mean_reversion" mapstructure:"mean_reversion"`
	Regime        RegimeConfig         `yaml:"regime" mapstructure:"regime"`
	Archive       ArchiveConfig        `yaml:"archive" mapstructure:"archive"`
	Sizing        SizingConfig         `yaml:"sizing" mapstructure:"sizing"`
}

// DefaultEngineConfig returns the reference default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialCapital:      100000.0,
		AllocationFraction:  0.20,
		FeeRate:             0.0,
		ATRStopMultiplier:   2.0,
		ATRPeriod:           14,
		MaxDrawdownLimit:    0,
		MaxTradesPerDay:     10,
		CooldownBars:        5,
		RealisticStopFill:   false,
		Momentum:            DefaultMomentumConfig(),
		MeanReversion:       DefaultMeanReversionConfig(),
		Regime:              DefaultRegimeConfig(),
		Archive:             ArchiveConfig{Enabled: false},
		Sizing:              DefaultSizingConfig(),
	}
}

// BacktestReport is the end-of-run record, before the reporting layer's
// decimal/console projections are applied.
type BacktestReport struct {
	RunID           string    `json:"runId"`
	FinalEquity     float64   `json:"finalEquity"`
	TotalReturnPct  float64   `json:"totalReturnPct"`
	TotalTrades     int       `json:"totalTrades"`
	WinningTrades   int       `json:"winningTrades"`
	WinRate         float64   `json:"winRate"`
	GrossProfit     float64   `json:"grossProfit"`
	GrossLoss       float64   `json:"grossLoss"`
	ProfitFactor    float64   `json:"profitFactor"`
	DurationMs      int64     `json:"durationMs"`
	BarsPerSec      float64   `json:"barsPerSec"`
	Trades          []Trade       `json:"trades"`
	EquityCurve     []EquityPoint `json:"equityCurve"`
	StartedAt       time.Time `json:"startedAt"`
	CompletedAt     time.Time `json:"completedAt"`
}

// BacktestProgress is streamed over the websocket hub and optional Redis
// pub/sub channel while a run is in flight.
type BacktestProgress struct {
	RunID          string  `json:"runId"`
	Status         string  `json:"status"` // "running", "completed", "failed"
	BarsProcessed  int64   `json:"barsProcessed"`
	TotalBars      int64   `json:"totalBars"`
	TradesExecuted int     `json:"tradesExecuted"`
	CurrentEquity  float64 `json:"currentEquity"`
	Error          string  `json:"error,omitempty"`
}

// ServerConfig configures the ambient API server.
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
}

// DefaultServerConfig returns sane defaults for the ambient API server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}
