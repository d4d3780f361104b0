package backtester

import (
	"context"
	"testing"

	"ohlcv-backtester/pkg/types"
)

func syntheticBars(days int) []types.Bar {
	const secondsPerHour = 3600
	hours := days * 24
	bars := make([]types.Bar, 0, hours)
	price := 100.0
	for i := 0; i < hours; i++ {
		price += 0.05
		ts := int64(i) * secondsPerHour
		bars = append(bars, types.Bar{
			Timestamp: ts,
			Open:      price,
			High:      price + 0.3,
			Low:       price - 0.3,
			Close:     price + 0.1,
			Volume:    1000,
		})
	}
	return bars
}

func TestWalkForwardAnalyzerDisabledReturnsNil(t *testing.T) {
	wf := NewWalkForwardAnalyzer(nil, types.DefaultEngineConfig(), WalkForwardConfig{Enabled: false})
	result, err := wf.Run(context.Background(), syntheticBars(60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result when disabled, got %+v", result)
	}
}

func TestWalkForwardAnalyzerNoBarsReturnsError(t *testing.T) {
	wf := NewWalkForwardAnalyzer(nil, types.DefaultEngineConfig(), DefaultWalkForwardConfig())
	if _, err := wf.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty bar slice")
	}
}

func TestWalkForwardAnalyzerProducesWindowsAndRobustness(t *testing.T) {
	cfg := WalkForwardConfig{Enabled: true, WindowDays: 10, StepDays: 5}
	wf := NewWalkForwardAnalyzer(nil, types.DefaultEngineConfig(), cfg)

	result, err := wf.Run(context.Background(), syntheticBars(60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Windows) == 0 {
		t.Fatal("expected at least one window")
	}
	if result.Robustness < 0 || result.Robustness > 2 {
		t.Fatalf("robustness out of clamp range: %f", result.Robustness)
	}
	for _, w := range result.Windows {
		if w.OutSampleStart < w.InSampleEnd {
			t.Fatalf("out-of-sample window should start after in-sample ends: %+v", w)
		}
	}
}

func TestWalkForwardAnalyzerTooShortRangeYieldsNoWindows(t *testing.T) {
	cfg := WalkForwardConfig{Enabled: true, WindowDays: 30, StepDays: 7}
	wf := NewWalkForwardAnalyzer(nil, types.DefaultEngineConfig(), cfg)
	if _, err := wf.Run(context.Background(), syntheticBars(5)); err == nil {
		t.Fatal("expected error when no windows fit the supplied range")
	}
}
