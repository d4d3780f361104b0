package backtester

import (
	"testing"

	"ohlcv-backtester/pkg/types"
)

func winLossTrades() []types.Trade {
	return []types.Trade{
		{PnL: 500}, {PnL: -200}, {PnL: 800}, {PnL: -300}, {PnL: 400},
		{PnL: -150}, {PnL: 600}, {PnL: -250}, {PnL: 300}, {PnL: -100},
	}
}

func TestMonteCarloRunEmptyTradesReturnsZeroIterations(t *testing.T) {
	mc := NewMonteCarloSimulator(nil, DefaultMonteCarloConfig())
	result := mc.Run(nil)
	if result.Iterations != 0 {
		t.Fatalf("expected zero iterations for empty trades, got %d", result.Iterations)
	}
}

func TestMonteCarloRunProducesOrderedPercentiles(t *testing.T) {
	cfg := MonteCarloConfig{Iterations: 500, ConfidenceLevel: 0.95}
	mc := NewMonteCarloSimulator(nil, cfg)
	result := mc.Run(winLossTrades())

	if result.Iterations != 500 {
		t.Fatalf("expected 500 iterations, got %d", result.Iterations)
	}
	if result.P5Return > result.MedianReturn || result.MedianReturn > result.P95Return {
		t.Fatalf("expected p5 <= median <= p95, got p5=%f median=%f p95=%f",
			result.P5Return, result.MedianReturn, result.P95Return)
	}
	if result.ProbabilityRuin < 0 || result.ProbabilityRuin > 1 {
		t.Fatalf("probability of ruin out of range: %f", result.ProbabilityRuin)
	}
	if len(result.Distribution) != 500 {
		t.Fatalf("expected distribution of 500 samples, got %d", len(result.Distribution))
	}
}

func TestMonteCarloRunZeroIterationsDefaultsToOneThousand(t *testing.T) {
	mc := NewMonteCarloSimulator(nil, MonteCarloConfig{Iterations: 0, ConfidenceLevel: 0.95})
	result := mc.Run(winLossTrades())
	if result.Iterations != 1000 {
		t.Fatalf("expected default of 1000 iterations, got %d", result.Iterations)
	}
}

func TestSimulatePathDetectsRuin(t *testing.T) {
	mc := NewMonteCarloSimulator(nil, DefaultMonteCarloConfig())
	// A single catastrophic loss should breach the 50% ruin threshold
	// against the nominal 100000 unit of starting capital.
	_, _, isRuin := mc.simulatePath([]float64{-60000})
	if !isRuin {
		t.Fatal("expected a 60% loss to register as ruin")
	}
}

func TestPercentileInterpolatesBetweenSamples(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	if got := percentile(sorted, 0); got != 1 {
		t.Fatalf("expected p0 == 1, got %f", got)
	}
	if got := percentile(sorted, 100); got != 5 {
		t.Fatalf("expected p100 == 5, got %f", got)
	}
	if got := percentile(sorted, 50); got != 3 {
		t.Fatalf("expected p50 == 3, got %f", got)
	}
}

func TestBootstrapConfidenceIntervalOrdersBounds(t *testing.T) {
	mc := NewMonteCarloSimulator(nil, MonteCarloConfig{Iterations: 200, ConfidenceLevel: 0.9})
	trades := winLossTrades()
	meanPnL := func(sample []types.Trade) float64 {
		sum := 0.0
		for _, tr := range sample {
			sum += tr.PnL
		}
		return sum / float64(len(sample))
	}
	lower, upper := mc.BootstrapConfidenceInterval(meanPnL, trades, 0.9)
	if lower > upper {
		t.Fatalf("expected lower <= upper, got lower=%f upper=%f", lower, upper)
	}
}

func TestBootstrapConfidenceIntervalEmptyTrades(t *testing.T) {
	mc := NewMonteCarloSimulator(nil, DefaultMonteCarloConfig())
	lower, upper := mc.BootstrapConfidenceInterval(func([]types.Trade) float64 { return 0 }, nil, 0.95)
	if lower != 0 || upper != 0 {
		t.Fatalf("expected zero bounds for no trades, got lower=%f upper=%f", lower, upper)
	}
}
