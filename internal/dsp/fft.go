// internal/dsp/fft.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrNotPowerOfTwo indicates the FFT size must be a power of two
	ErrNotPowerOfTwo = errors.New("fft size must be a positive power of two")
	// ErrShortInput indicates the input is shorter than the FFT size
	ErrShortInput = errors.New("input shorter than fft size")
)

// MagnitudeFloor is added to every normalized magnitude before taking the
// logarithm so that silence maps to a finite dB value instead of -Inf.
const MagnitudeFloor = 1e-12

// FFT computes single-sided log-magnitude spectra of real-valued windows.
// The window size is fixed at construction; a Hann window is applied to
// the input before the transform to reduce spectral leakage.
type FFT struct {
	size   int
	window []float64
	re     []float64
	im     []float64
}

// NewFFT creates a transform for the given window size, which must be a
// power of two.
func NewFFT(size int) (*FFT, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	return &FFT{
		size:   size,
		window: HannWindow(size),
		re:     make([]float64, size),
		im:     make([]float64, size),
	}, nil
}

// Size returns the configured window size.
func (f *FFT) Size() int {
	return f.size
}

// MagnitudeDB windows the first Size samples of input, computes the
// forward transform and writes the single-sided magnitude in dB into out,
// which must hold at least Size/2 values:
//
//	out[k] = 20*log10(|X[k]|/N + MagnitudeFloor)   for k in [0, N/2)
func (f *FFT) MagnitudeDB(input []float64, out []float64) error {
	if len(input) < f.size {
		return ErrShortInput
	}
	if len(out) < f.size/2 {
		return ErrShortInput
	}

	for i := 0; i < f.size; i++ {
		f.re[i] = input[i] * f.window[i]
		f.im[i] = 0
	}

	f.transform()

	n := float64(f.size)
	for k := 0; k < f.size/2; k++ {
		mag := math.Sqrt(f.re[k]*f.re[k] + f.im[k]*f.im[k])
		out[k] = 20 * math.Log10(mag/n+MagnitudeFloor)
	}
	return nil
}

// transform runs an in-place radix-2 decimation-in-time FFT: bit-reversal
// reorder first, then butterfly passes.
func (f *FFT) transform() {
	n := f.size

	// Reorder by bit-reversed index
	for i, j := 0, 0; i < n; i++ {
		if i < j {
			f.re[i], f.re[j] = f.re[j], f.re[i]
			f.im[i], f.im[j] = f.im[j], f.im[i]
		}
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
	}

	// Butterfly passes
	for length := 2; length <= n; length <<= 1 {
		theta := -2 * math.Pi / float64(length)
		wRe := math.Cos(theta)
		wIm := math.Sin(theta)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				i := start + k
				j := i + half
				tRe := f.re[j]*curRe - f.im[j]*curIm
				tIm := f.re[j]*curIm + f.im[j]*curRe
				f.re[j] = f.re[i] - tRe
				f.im[j] = f.im[i] - tIm
				f.re[i] += tRe
				f.im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// BinFrequency returns the center frequency in Hz of spectrum bin k for
// the given transform size and sample rate.
func BinFrequency(k, size int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(size)
}
