// Package backtester implements the supplemental robustness analyses built
// on top of a completed run's closed-trade ledger: Monte Carlo bootstrap
// resampling and walk-forward windowed re-evaluation.
package backtester

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"ohlcv-backtester/pkg/types"
)

// MonteCarloConfig tunes the bootstrap simulation.
type MonteCarloConfig struct {
	Iterations      int
	ConfidenceLevel float64
}

// DefaultMonteCarloConfig returns sensible defaults.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{Iterations: 1000, ConfidenceLevel: 0.95}
}

// MonteCarloResult summarizes the distribution of simulated equity paths
// built by reshuffling a run's closed trades.
type MonteCarloResult struct {
	Iterations      int
	MedianReturn    float64
	P5Return        float64
	P95Return       float64
	ProbabilityRuin float64
	MaxDrawdownP95  float64
	Distribution    []float64
}

// MonteCarloSimulator resamples a closed-trade ledger to estimate how
// sensitive a run's equity path is to trade ordering.
type MonteCarloSimulator struct {
	logger *zap.Logger
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator constructs a simulator. A nil logger defaults to
// zap.NewNop().
func NewMonteCarloSimulator(logger *zap.Logger, config MonteCarloConfig) *MonteCarloSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonteCarloSimulator{
		logger: logger,
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run reshuffles the trade PnL series Iterations times and reports the
// distribution of total return and max drawdown across the reshuffled
// paths, plus the fraction of paths that breach a 50% ruin threshold.
func (mc *MonteCarloSimulator) Run(trades []types.Trade) MonteCarloResult {
	if len(trades) == 0 {
		return MonteCarloResult{Iterations: 0}
	}

	pnls := make([]float64, len(trades))
	for i, trade := range trades {
		pnls[i] = trade.PnL
	}

	iterations := mc.config.Iterations
	if iterations <= 0 {
		iterations = 1000
	}

	simulatedReturns := make([]float64, iterations)
	maxDrawdowns := make([]float64, iterations)
	ruinCount := 0

	for i := 0; i < iterations; i++ {
		shuffled := mc.shufflePnLs(pnls)
		totalReturn, maxDD, isRuin := mc.simulatePath(shuffled)
		simulatedReturns[i] = totalReturn
		maxDrawdowns[i] = maxDD
		if isRuin {
			ruinCount++
		}
	}

	sort.Float64s(simulatedReturns)
	sort.Float64s(maxDrawdowns)

	result := MonteCarloResult{
		Iterations:      iterations,
		MedianReturn:    percentile(simulatedReturns, 50),
		P5Return:        percentile(simulatedReturns, 5),
		P95Return:       percentile(simulatedReturns, 95),
		ProbabilityRuin: float64(ruinCount) / float64(iterations),
		MaxDrawdownP95:  percentile(maxDrawdowns, 95),
		Distribution:    simulatedReturns,
	}

	mc.logger.Info("monte carlo simulation complete",
		zap.Int("iterations", iterations),
		zap.Float64("median_return", result.MedianReturn),
		zap.Float64("p5_return", result.P5Return),
		zap.Float64("p95_return", result.P95Return),
		zap.Float64("probability_ruin", result.ProbabilityRuin),
	)

	return result
}

func (mc *MonteCarloSimulator) shufflePnLs(pnls []float64) []float64 {
	shuffled := make([]float64, len(pnls))
	copy(shuffled, pnls)
	mc.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// simulatePath walks a reshuffled PnL sequence starting from unit equity,
// returning total return, max drawdown, and whether equity ever breached
// the ruin threshold (50% loss from start).
func (mc *MonteCarloSimulator) simulatePath(pnls []float64) (totalReturn, maxDrawdown float64, isRuin bool) {
	const ruinThreshold = 0.5
	equity := 1.0
	peak := equity
	maxDD := 0.0

	for _, pnl := range pnls {
		equity += pnl / 100000.0 // normalized against a nominal unit of starting capital
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
		if equity <= ruinThreshold {
			return equity - 1.0, maxDD, true
		}
	}
	return equity - 1.0, maxDD, false
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// BootstrapConfidenceInterval resamples trades with replacement to compute
// a confidence interval for an arbitrary metric function.
func (mc *MonteCarloSimulator) BootstrapConfidenceInterval(
	metric func([]types.Trade) float64,
	trades []types.Trade,
	confidence float64,
) (lower, upper float64) {
	iterations := mc.config.Iterations
	if iterations <= 0 {
		iterations = 1000
	}
	n := len(trades)
	if n == 0 {
		return 0, 0
	}

	bootstrapValues := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		sample := make([]types.Trade, n)
		for j := 0; j < n; j++ {
			sample[j] = trades[mc.rng.Intn(n)]
		}
		bootstrapValues[i] = metric(sample)
	}

	sort.Float64s(bootstrapValues)
	alpha := 1 - confidence
	lowerIdx := int(alpha / 2 * float64(iterations))
	upperIdx := int((1 - alpha/2) * float64(iterations))
	if upperIdx >= iterations {
		upperIdx = iterations - 1
	}
	return bootstrapValues[lowerIdx], bootstrapValues[upperIdx]
}
