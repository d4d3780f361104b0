// Package indicators implements the streaming, O(1), allocation-free
// technical indicators the strategy layer consumes. Every indicator shares
// the update(x) -> value contract plus a Ready gate: callers must never
// read Value before Ready reports true.
package indicators

import "ohlcv-backtester/internal/ring"

// SMA is a simple moving average over a fixed window, maintained as a
// running sum against a ring buffer so each Update is O(1).
type SMA struct {
	buf *ring.Buffer
	sum float64
}

// NewSMA constructs an SMA over the given period. Period must be positive.
func NewSMA(period int) *SMA {
	return &SMA{buf: ring.New(period)}
}

// Update pushes a new sample and returns the current SMA value, which is
// meaningless until Ready.
func (s *SMA) Update(x float64) float64 {
	evicted, ok := s.buf.Push(x)
	s.sum += x
	if ok {
		s.sum -= evicted
	}
	return s.Value()
}

// Value returns the current SMA. Undefined while !Ready.
func (s *SMA) Value() float64 {
	if s.buf.Len() == 0 {
		return 0
	}
	return s.sum / float64(s.buf.Len())
}

// Ready reports whether the window has filled.
func (s *SMA) Ready() bool { return s.buf.Full() }
