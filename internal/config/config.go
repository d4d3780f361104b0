// Package config loads types.EngineConfig from a YAML file with
// BACKTEST_-prefixed environment variable overrides, using
// types.DefaultEngineConfig as the viper defaults layer.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ohlcv-backtester/pkg/types"
)

// Load reads an EngineConfig from the YAML file at path, falling back to
// spec defaults for any key the file and environment don't set. An empty
// path skips file loading and returns pure defaults plus env overrides.
func Load(path string) (types.EngineConfig, error) {
	v := viper.New()
	setDefaults(v, types.DefaultEngineConfig())

	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return types.EngineConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults seeds viper with a fully-populated default EngineConfig so
// that a missing file or a partial override still produces a
// fully-populated configuration.
func setDefaults(v *viper.Viper, d types.EngineConfig) {
	v.SetDefault("initial_capital", d.InitialCapital)
	v.SetDefault("allocation_fraction", d.AllocationFraction)
	v.SetDefault("fee_rate", d.FeeRate)
	v.SetDefault("atr_stop_multiplier", d.ATRStopMultiplier)
	v.SetDefault("atr_period", d.ATRPeriod)
	v.SetDefault("max_drawdown_limit", d.MaxDrawdownLimit)
	v.SetDefault("max_trades_per_day", d.MaxTradesPerDay)
	v.SetDefault("cooldown_bars", d.CooldownBars)
	v.SetDefault("realistic_stop_fill", d.RealisticStopFill)

	v.SetDefault("momentum.roc_period", d.Momentum.ROCPeriod)
	v.SetDefault("momentum.zscore_window", d.Momentum.ZScoreWindow)
	v.SetDefault("momentum.ema_fast", d.Momentum.EMAFast)
	v.SetDefault("momentum.ema_slow", d.Momentum.EMASlow)
	v.SetDefault("momentum.volume_sma", d.Momentum.VolumeSMA)
	v.SetDefault("momentum.rsi_period", d.Momentum.RSIPeriod)
	v.SetDefault("momentum.entry_zscore", d.Momentum.EntryZScore)
	v.SetDefault("momentum.exit_zscore", d.Momentum.ExitZScore)
	v.SetDefault("momentum.rsi_floor", d.Momentum.RSIFloor)
	v.SetDefault("momentum.rsi_ceiling", d.Momentum.RSICeiling)

	v.SetDefault("mean_reversion.bollinger_period", d.MeanReversion.BollingerPeriod)
	v.SetDefault("mean_reversion.bollinger_width", d.MeanReversion.BollingerWidth)
	v.SetDefault("mean_reversion.rsi_period", d.MeanReversion.RSIPeriod)
	v.SetDefault("mean_reversion.short_stats_window", d.MeanReversion.ShortStatsWindow)
	v.SetDefault("mean_reversion.long_stats_window", d.MeanReversion.LongStatsWindow)
	v.SetDefault("mean_reversion.rsi_floor", d.MeanReversion.RSIFloor)
	v.SetDefault("mean_reversion.rsi_ceiling", d.MeanReversion.RSICeiling)
	v.SetDefault("mean_reversion.entry_band_pos", d.MeanReversion.EntryBandPos)
	v.SetDefault("mean_reversion.exit_band_pos", d.MeanReversion.ExitBandPos)

	v.SetDefault("regime.short_window", d.Regime.ShortWindow)
	v.SetDefault("regime.long_window", d.Regime.LongWindow)
	v.SetDefault("regime.trend_window", d.Regime.TrendWindow)
	v.SetDefault("regime.trend_threshold", d.Regime.TrendThreshold)

	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.dsn", d.Archive.DSN)

	v.SetDefault("sizing.mode", d.Sizing.Mode)
	v.SetDefault("sizing.kelly_weight", d.Sizing.KellyWeight)
	v.SetDefault("sizing.min_position_pct", d.Sizing.MinPositionPct)
	v.SetDefault("sizing.max_position_pct", d.Sizing.MaxPositionPct)
	v.SetDefault("sizing.min_sample_trades", d.Sizing.MinSampleTrades)
}
