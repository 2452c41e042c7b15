// internal/dsp/biquad.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrNoSections indicates a cascade needs at least one section
	ErrNoSections = errors.New("cascade requires at least one section")
)

// Coefficients holds the transfer function of a single second-order
// section (biquad). The denominator a0 is normalized to 1 and not stored.
// Coefficients come from an offline filter design and are never mutated
// at run time; only the section state changes per sample.
type Coefficients struct {
	B0, B1, B2 float64 // numerator
	A1, A2     float64 // denominator (a0 = 1 implicit)
}

// Section is one biquad stage with its running state. It implements
// Direct Form II Transposed:
//
//	y  = b0*x + w1
//	w1 = b1*x - a1*y + w2
//	w2 = b2*x - a2*y
//
// The transposed form keeps only two state registers and avoids storing
// raw delayed inputs/outputs, which limits cancellation error in
// floating point.
type Section struct {
	Coefficients
	w1, w2 float64
}

// NewSection returns a Section with the given coefficients and zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// Apply filters one sample and returns the output.
func (s *Section) Apply(x float64) float64 {
	y := s.B0*x + s.w1
	s.w1 = s.B1*x - s.A1*y + s.w2
	s.w2 = s.B2*x - s.A2*y
	return y
}

// Reset zeroes the state registers. Coefficients are untouched.
func (s *Section) Reset() {
	s.w1 = 0
	s.w2 = 0
}

// FrequencyResponse returns the magnitude response (linear, not dB) of the
// section at the given frequency. Useful for verifying a designed filter.
func (s *Section) FrequencyResponse(frequency, sampleRate float64) float64 {
	omega := 2 * math.Pi * frequency / sampleRate

	// |b0 + b1*e^(-jw) + b2*e^(-j2w)| / |1 + a1*e^(-jw) + a2*e^(-j2w)|
	numRe := s.B0 + s.B1*math.Cos(omega) + s.B2*math.Cos(2*omega)
	numIm := -s.B1*math.Sin(omega) - s.B2*math.Sin(2*omega)
	denRe := 1 + s.A1*math.Cos(omega) + s.A2*math.Cos(2*omega)
	denIm := -s.A1*math.Sin(omega) - s.A2*math.Sin(2*omega)

	return math.Sqrt((numRe*numRe + numIm*numIm) / (denRe*denRe + denIm*denIm))
}

// Cascade chains second-order sections into a higher-order filter.
// Sections are applied in declared order; the order must match the
// designed decomposition.
type Cascade struct {
	sections []*Section
}

// NewCascade builds a cascade from ordered section coefficients.
func NewCascade(coeffs []Coefficients) (*Cascade, error) {
	if len(coeffs) == 0 {
		return nil, ErrNoSections
	}
	sections := make([]*Section, len(coeffs))
	for i, c := range coeffs {
		sections[i] = NewSection(c)
	}
	return &Cascade{sections: sections}, nil
}

// Apply filters one sample through every section in order.
func (c *Cascade) Apply(x float64) float64 {
	y := x
	for _, s := range c.sections {
		y = s.Apply(y)
	}
	return y
}

// ApplyBlock filters src into dst sample by sample. Both slices must have
// the same length. Filter state carries over between calls.
func (c *Cascade) ApplyBlock(dst, src []float64) {
	for i, x := range src {
		dst[i] = c.Apply(x)
	}
}

// Reset zeroes the state of every section without touching coefficients.
// Required before re-arming a detector after a configuration change, and
// used by tests to get a deterministic impulse response.
func (c *Cascade) Reset() {
	for _, s := range c.sections {
		s.Reset()
	}
}

// Len returns the number of sections in the cascade.
func (c *Cascade) Len() int {
	return len(c.sections)
}

// FrequencyResponse returns the combined magnitude response of the cascade
// at the given frequency.
func (c *Cascade) FrequencyResponse(frequency, sampleRate float64) float64 {
	mag := 1.0
	for _, s := range c.sections {
		mag *= s.FrequencyResponse(frequency, sampleRate)
	}
	return mag
}
