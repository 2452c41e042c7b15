// internal/nilm/ring.go
package nilm

import "errors"

var (
	// ErrInvalidCapacity indicates a ring buffer needs positive capacity
	ErrInvalidCapacity = errors.New("ring capacity must be positive")
)

// PowerRing is a fixed-capacity circular buffer of power samples. Once
// capacity samples have been written at least once the ring reports Full
// and keeps overwriting the oldest entry.
type PowerRing struct {
	buf  []float64
	next int
	full bool
}

// NewPowerRing creates a ring with the given capacity.
func NewPowerRing(capacity int) (*PowerRing, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &PowerRing{buf: make([]float64, capacity)}, nil
}

// Push writes one sample, overwriting the oldest once the ring is full.
func (r *PowerRing) Push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Full reports whether capacity samples have been written at least once.
func (r *PowerRing) Full() bool {
	return r.full
}

// Len returns the number of valid samples currently held.
func (r *PowerRing) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap returns the fixed capacity.
func (r *PowerRing) Cap() int {
	return len(r.buf)
}

// Mean returns the arithmetic mean of the valid samples, or 0 when the
// ring is empty.
func (r *PowerRing) Mean() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.buf[:n] {
		sum += v
	}
	return sum / float64(n)
}

// Reset empties the ring and clears the full flag.
func (r *PowerRing) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.next = 0
	r.full = false
}
