package indicators

import (
	"math"

	"ohlcv-backtester/internal/ring"
)

// Bollinger computes Bollinger Bands over closes: a middle SMA(P), bands at
// +/- k population standard deviations, and %b, the close's position
// within the bands.
type Bollinger struct {
	period int
	k      float64
	buf    *ring.Buffer
	sum    float64
	sumSq  float64
	last   float64
}

// NewBollinger constructs a Bollinger band indicator over the given period
// and band width multiplier k.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, buf: ring.New(period)}
}

// Update pushes a new close and returns the current %b value.
func (b *Bollinger) Update(close float64) float64 {
	evicted, ok := b.buf.Push(close)
	b.sum += close
	b.sumSq += close * close
	if ok {
		b.sum -= evicted
		b.sumSq -= evicted * evicted
	}
	b.last = close
	_, _, _, pctB := b.Bands()
	return pctB
}

// Middle returns the SMA basis of the bands.
func (b *Bollinger) Middle() float64 {
	n := float64(b.buf.Len())
	if n == 0 {
		return 0
	}
	return b.sum / n
}

func (b *Bollinger) stdDev() float64 {
	n := float64(b.buf.Len())
	if n == 0 {
		return 0
	}
	mean := b.sum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Bands returns middle, upper, lower, and %b = (close-lower)/(upper-lower),
// or 0.5 when the bands coincide (zero width).
func (b *Bollinger) Bands() (middle, upper, lower, pctB float64) {
	middle = b.Middle()
	std := b.stdDev()
	upper = middle + b.k*std
	lower = middle - b.k*std
	width := upper - lower
	if width < epsilon {
		return middle, upper, lower, 0.5
	}
	return middle, upper, lower, (b.last - lower) / width
}

// Ready reports whether the window has filled.
func (b *Bollinger) Ready() bool { return b.buf.Full() }
