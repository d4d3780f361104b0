// Package ring provides a fixed-capacity, allocation-free ring buffer used
// as the building block for every windowed indicator in internal/indicators.
package ring

// Buffer is a push-only, overwrite-oldest ring buffer of float64 samples.
// Once Len reaches Cap, the next Push evicts the oldest sample. A zero-value
// Buffer is not usable; construct with New.
type Buffer struct {
	data  []float64
	head  int // index of the oldest element
	count int
}

// New allocates a Buffer with the given fixed capacity. Capacity must be
// positive; callers that need capacity 0 should not use a Buffer at all.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest one if the buffer is full.
// It returns the evicted value and true if an eviction occurred.
func (b *Buffer) Push(v float64) (evicted float64, ok bool) {
	cap := len(b.data)
	if b.count < cap {
		idx := (b.head + b.count) % cap
		b.data[idx] = v
		b.count++
		return 0, false
	}
	evicted = b.data[b.head]
	b.data[b.head] = v
	b.head = (b.head + 1) % cap
	return evicted, true
}

// Len returns the number of samples currently held, never exceeding Cap.
func (b *Buffer) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Full reports whether the buffer has reached capacity.
func (b *Buffer) Full() bool { return b.count == len(b.data) }

// At returns the i-th oldest sample (0 is the oldest, Len()-1 the newest).
// It panics if i is out of range.
func (b *Buffer) At(i int) float64 {
	if i < 0 || i >= b.count {
		panic("ring: index out of range")
	}
	return b.data[(b.head+i)%len(b.data)]
}

// Newest returns the most recently pushed sample. It panics if empty.
func (b *Buffer) Newest() float64 {
	if b.count == 0 {
		panic("ring: buffer is empty")
	}
	return b.At(b.count - 1)
}

// Oldest returns the least recently pushed sample still held. It panics if
// empty.
func (b *Buffer) Oldest() float64 {
	if b.count == 0 {
		panic("ring: buffer is empty")
	}
	return b.data[b.head]
}

// Sum returns the sum of all held samples, recomputed on demand. Callers in
// the hot path (SMA) maintain their own running sum instead of calling this.
func (b *Buffer) Sum() float64 {
	var sum float64
	for i := 0; i < b.count; i++ {
		sum += b.data[i]
	}
	return sum
}
