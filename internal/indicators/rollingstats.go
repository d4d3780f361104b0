package indicators

import (
	"math"

	"ohlcv-backtester/internal/ring"
)

// epsilon below which stddev is treated as zero for z-score purposes.
const epsilon = 1e-9

// RollingStats maintains sum and sum-of-squares over a fixed window,
// exposing population mean, population stddev, and the z-score of the
// most recent sample.
type RollingStats struct {
	buf    *ring.Buffer
	sum    float64
	sumSq  float64
	last   float64
}

// NewRollingStats constructs a RollingStats over the given window.
func NewRollingStats(period int) *RollingStats {
	return &RollingStats{buf: ring.New(period)}
}

// Update pushes a new sample and returns the current z-score.
func (r *RollingStats) Update(x float64) float64 {
	evicted, ok := r.buf.Push(x)
	r.sum += x
	r.sumSq += x * x
	if ok {
		r.sum -= evicted
		r.sumSq -= evicted * evicted
	}
	r.last = x
	return r.ZScore()
}

// Mean returns the current population mean.
func (r *RollingStats) Mean() float64 {
	n := float64(r.buf.Len())
	if n == 0 {
		return 0
	}
	return r.sum / n
}

// StdDev returns the current population standard deviation. Negative
// variance introduced by floating-point round-off is clamped to zero
// before the square root.
func (r *RollingStats) StdDev() float64 {
	n := float64(r.buf.Len())
	if n == 0 {
		return 0
	}
	mean := r.sum / n
	variance := r.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// ZScore returns (last - mean) / stddev, or 0 if stddev is below epsilon.
func (r *RollingStats) ZScore() float64 {
	std := r.StdDev()
	if std < epsilon {
		return 0
	}
	return (r.last - r.Mean()) / std
}

// Ready reports whether the window has filled.
func (r *RollingStats) Ready() bool { return r.buf.Full() }
