// internal/dsp/presets.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrUnknownPreset indicates the named filter preset does not exist
	ErrUnknownPreset = errors.New("unknown filter preset")
)

// High-pass preset names. The two presets target the same design
// (Butterworth 6th order, fc = 0.002 Hz at 10 Hz) but come from different
// offline design runs. "default" has an exact DC zero and all poles inside
// the unit circle; "alt" is a later re-derivation whose published
// truncation left one section marginally unstable (pole radius ~1.003) and
// a nonzero DC gain, so it is kept only for comparison against
// deployments that shipped it.
const (
	PresetDefault = "default"
	PresetAlt     = "alt"
)

// highpassDefault is the canonical event-detection filter: Butterworth
// 6th order high-pass, fc = 0.002 Hz, fs = 10 Hz, decomposed into three
// second-order sections.
var highpassDefault = []Coefficients{
	{B0: 0.999001949317, B1: -1.998003898634, B2: 0.999001949317, A1: -1.998001949634, A2: 0.998005898268},
	{B0: 1.000000000000, B1: -2.000000000000, B2: 1.000000000000, A1: -1.997003947368, A2: 0.997005896736},
	{B0: 1.000000000000, B1: -2.000000000000, B2: 1.000000000000, A1: -1.996007894737, A2: 0.996009844211},
}

// highpassAlt is the alternate second-order-section decomposition
// (scipy.signal.butter, output='sos') for nominally the same design
// target. See the preset-name comment for its known defects.
var highpassAlt = []Coefficients{
	{B0: 0.997575307740, B1: -1.988312337657, B2: 0.990752632414, A1: -1.991046493047, A2: 0.991071281177},
	{B0: 1.000000000000, B1: -2.006874965307, B2: 1.006890743483, A1: -2.005708281949, A2: 1.005721304286},
	{B0: 1.000000000000, B1: -1.999979933536, B2: 0.999995642535, A1: -1.998389952299, A2: 0.998409811440},
}

// lowpassSmoothing is the slow power-characterization filter: Butterworth
// 2nd order low-pass, fc = 0.01 Hz, fs = 10 Hz.
var lowpassSmoothing = Coefficients{
	B0: 0.000009446918, B1: 0.000018893836, B2: 0.000009446918,
	A1: -1.999924093655, A2: 0.999961880327,
}

// HighpassPreset returns the ordered section coefficients for the named
// event-detection high-pass preset. The returned slice is a copy.
func HighpassPreset(name string) ([]Coefficients, error) {
	var src []Coefficients
	switch name {
	case PresetDefault:
		src = highpassDefault
	case PresetAlt:
		src = highpassAlt
	default:
		return nil, ErrUnknownPreset
	}
	out := make([]Coefficients, len(src))
	copy(out, src)
	return out, nil
}

// LowpassSmoothing returns the slow low-pass smoothing section used for
// power characterization.
func LowpassSmoothing() Coefficients {
	return lowpassSmoothing
}

// LowpassDesign computes second-order low-pass coefficients for the given
// cutoff using the RBJ audio-EQ cookbook formulation. Used once at
// analyzer startup; the event-detection path uses only the fixed presets
// above.
func LowpassDesign(cutoff, sampleRate, q float64) Coefficients {
	omega := 2 * math.Pi * cutoff / sampleRate
	sinW := math.Sin(omega)
	cosW := math.Cos(omega)
	alpha := sinW / (2 * q)

	a0 := 1 + alpha
	return Coefficients{
		B0: ((1 - cosW) / 2) / a0,
		B1: (1 - cosW) / a0,
		B2: ((1 - cosW) / 2) / a0,
		A1: (-2 * cosW) / a0,
		A2: (1 - alpha) / a0,
	}
}
