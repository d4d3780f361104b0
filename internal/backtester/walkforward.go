package backtester

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ohlcv-backtester/internal/engine"
	"ohlcv-backtester/internal/runner"
	"ohlcv-backtester/pkg/types"
)

// WalkForwardConfig tunes the windowing.
type WalkForwardConfig struct {
	Enabled    bool
	WindowDays int
	StepDays   int
}

// DefaultWalkForwardConfig returns sensible defaults.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{Enabled: true, WindowDays: 30, StepDays: 7}
}

type window struct {
	inSampleStart, inSampleEnd   int64
	outSampleStart, outSampleEnd int64
}

type windowOutcome struct {
	result WalkForwardWindowResult
	trades []types.Trade
	equity []types.EquityPoint
}

// WalkForwardWindowResult captures one window's in-sample and
// out-of-sample performance.
type WalkForwardWindowResult struct {
	InSampleStart, InSampleEnd   int64
	OutSampleStart, OutSampleEnd int64
	InSampleReturn               float64
	OutSampleReturn              float64
}

// WalkForwardResult is the overall robustness summary across all windows.
type WalkForwardResult struct {
	Windows        []WalkForwardWindowResult
	OverallTrades  []types.Trade
	OverallEquity  []types.EquityPoint
	Robustness     float64
}

// WalkForwardAnalyzer re-runs the engine over a rolling sequence of
// in-sample/out-of-sample bar windows to estimate how much a strategy's
// edge decays outside the window it was observed on.
type WalkForwardAnalyzer struct {
	logger *zap.Logger
	engineCfg types.EngineConfig
	wfCfg     WalkForwardConfig
}

// NewWalkForwardAnalyzer constructs an analyzer. A nil logger defaults to
// zap.NewNop().
func NewWalkForwardAnalyzer(logger *zap.Logger, engineCfg types.EngineConfig, wfCfg WalkForwardConfig) *WalkForwardAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalkForwardAnalyzer{logger: logger, engineCfg: engineCfg, wfCfg: wfCfg}
}

// Run partitions bars into rolling windows (80% in-sample, 20%
// out-of-sample) and runs an independent Engine over each half.
func (wf *WalkForwardAnalyzer) Run(ctx context.Context, bars []types.Bar) (*WalkForwardResult, error) {
	if !wf.wfCfg.Enabled {
		return nil, nil
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("walkforward: no bars supplied")
	}

	windows := wf.generateWindows(bars[0].Timestamp, bars[len(bars)-1].Timestamp)
	if len(windows) == 0 {
		return nil, fmt.Errorf("walkforward: no windows generated for the given range")
	}

	wf.logger.Info("starting walk-forward analysis",
		zap.Int("window_count", len(windows)),
		zap.Int("window_days", wf.wfCfg.WindowDays),
		zap.Int("step_days", wf.wfCfg.StepDays),
	)

	// Each window re-runs two independent Engine instances (in-sample,
	// out-of-sample) over disjoint bar slices, so windows can be evaluated
	// concurrently. slots[i] stays nil for a skipped empty window.
	slots := make([]*windowOutcome, len(windows))
	var mu sync.Mutex

	pool := runner.New(wf.logger, runner.DefaultConfig())
	err := pool.Run(ctx, len(windows), func(ctx context.Context, i int) error {
		w := windows[i]
		inBars := slice(bars, w.inSampleStart, w.inSampleEnd)
		outBars := slice(bars, w.outSampleStart, w.outSampleEnd)
		if len(inBars) == 0 || len(outBars) == 0 {
			wf.logger.Warn("skipping empty window", zap.Int("window", i))
			return nil
		}

		inEngine := engine.New(wf.logger, wf.engineCfg)
		inEngine.Run(inBars)
		inReturn := (inEngine.FinalEquity() - wf.engineCfg.InitialCapital) / wf.engineCfg.InitialCapital

		outEngine := engine.New(wf.logger, wf.engineCfg)
		outEngine.Run(outBars)
		outReturn := (outEngine.FinalEquity() - wf.engineCfg.InitialCapital) / wf.engineCfg.InitialCapital

		outcome := &windowOutcome{
			result: WalkForwardWindowResult{
				InSampleStart: w.inSampleStart, InSampleEnd: w.inSampleEnd,
				OutSampleStart: w.outSampleStart, OutSampleEnd: w.outSampleEnd,
				InSampleReturn: inReturn, OutSampleReturn: outReturn,
			},
			trades: outEngine.Trades(),
			equity: outEngine.EquityCurve(),
		}

		mu.Lock()
		slots[i] = outcome
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var results []WalkForwardWindowResult
	var overallTrades []types.Trade
	var overallEquity []types.EquityPoint
	var inSum, outSum float64
	for _, outcome := range slots {
		if outcome == nil {
			continue
		}
		results = append(results, outcome.result)
		overallTrades = append(overallTrades, outcome.trades...)
		overallEquity = append(overallEquity, outcome.equity...)
		inSum += outcome.result.InSampleReturn
		outSum += outcome.result.OutSampleReturn
	}

	robustness := 0.0
	if inSum != 0 {
		robustness = outSum / inSum
		if robustness < 0 {
			robustness = 0
		}
		if robustness > 2 {
			robustness = 2
		}
	}

	result := &WalkForwardResult{
		Windows:       results,
		OverallTrades: overallTrades,
		OverallEquity: overallEquity,
		Robustness:    robustness,
	}

	wf.logger.Info("walk-forward analysis complete",
		zap.Float64("robustness", robustness),
		zap.Int("total_out_of_sample_trades", len(overallTrades)),
	)
	return result, nil
}

func (wf *WalkForwardAnalyzer) generateWindows(start, end int64) []window {
	var windows []window
	windowSeconds := int64(wf.wfCfg.WindowDays) * 86400
	stepSeconds := int64(wf.wfCfg.StepDays) * 86400
	inSampleSeconds := int64(float64(windowSeconds) * 0.8)

	for current := start; current+windowSeconds <= end; current += stepSeconds {
		windows = append(windows, window{
			inSampleStart:  current,
			inSampleEnd:    current + inSampleSeconds,
			outSampleStart: current + inSampleSeconds,
			outSampleEnd:   current + windowSeconds,
		})
	}
	return windows
}

func slice(bars []types.Bar, start, end int64) []types.Bar {
	var out []types.Bar
	for _, b := range bars {
		if b.Timestamp >= start && b.Timestamp < end {
			out = append(out, b)
		}
	}
	return out
}
