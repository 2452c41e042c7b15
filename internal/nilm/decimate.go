// internal/nilm/decimate.go

// Package nilm implements the power-event detection pipeline: decimation
// of the raw acquisition stream, high-pass event isolation, debounced
// on/off detection and device classification from the power step.
package nilm

import "errors"

var (
	// ErrInvalidFactor indicates the decimation factor must be positive
	ErrInvalidFactor = errors.New("decimation factor must be positive")
	// ErrInvalidChannels indicates the channel count must be positive
	ErrInvalidChannels = errors.New("channel count must be positive")
	// ErrChannelMismatch indicates a frame with the wrong channel count
	ErrChannelMismatch = errors.New("frame channel count mismatch")
)

// Decimator reduces the raw sample rate by averaging. It accumulates a
// running sum per channel and, once factor frames have been pushed, emits
// one arithmetic mean per channel and resets the accumulators to zero.
//
// Decimation is count-based, not time-based: if raw frames arrive at a
// non-uniform rate the decimated rate still depends only on count. This
// is a documented limitation, not corrected here.
type Decimator struct {
	factor   int
	channels int
	sums     []float64
	count    int
}

// NewDecimator creates a decimator for the given channel count and
// decimation factor.
func NewDecimator(channels, factor int) (*Decimator, error) {
	if channels <= 0 {
		return nil, ErrInvalidChannels
	}
	if factor <= 0 {
		return nil, ErrInvalidFactor
	}
	return &Decimator{
		factor:   factor,
		channels: channels,
		sums:     make([]float64, channels),
	}, nil
}

// PushFrame accumulates one raw frame (one sample per channel). When the
// decimation window completes it returns the per-channel means and true;
// otherwise it returns nil and false.
func (d *Decimator) PushFrame(frame []float64) ([]float64, bool, error) {
	if len(frame) != d.channels {
		return nil, false, ErrChannelMismatch
	}

	for ch, v := range frame {
		d.sums[ch] += v
	}
	d.count++

	if d.count < d.factor {
		return nil, false, nil
	}

	means := make([]float64, d.channels)
	for ch := range d.sums {
		means[ch] = d.sums[ch] / float64(d.factor)
		d.sums[ch] = 0
	}
	d.count = 0
	return means, true, nil
}

// Pending returns how many raw frames have been accumulated in the
// current window.
func (d *Decimator) Pending() int {
	return d.count
}

// Factor returns the configured decimation factor.
func (d *Decimator) Factor() int {
	return d.factor
}

// Reset discards the current window: accumulators and count go back to
// zero without emitting.
func (d *Decimator) Reset() {
	for ch := range d.sums {
		d.sums[ch] = 0
	}
	d.count = 0
}
