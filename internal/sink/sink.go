// internal/sink/sink.go

// Package sink serializes events, sample windows and spectra to the
// downstream collaborator boundary. The format is line-oriented text with
// explicit delimiter markers, so a parser on the other end of the
// serial-like transport needs no length-prefix framing.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Block names for the delimited sections of a spectral emission.
const (
	BlockSignalOriginal = "SIGNAL_ORIGINAL"
	BlockSignalFiltered = "SIGNAL_FILTERED"
	BlockFFTOriginal    = "FFT_ORIGINAL"
	BlockFFTFiltered    = "FFT_FILTERED"

	completeMarker = "---DATA_COMPLETE---\n"
)

// Sink writes the textual output stream. Every block or line is written
// with a single Write call so interleaved producers cannot tear a block,
// and is optionally mirrored to a broadcast function (e.g. a websocket
// hub).
type Sink struct {
	mu        sync.Mutex
	w         io.Writer
	broadcast func([]byte)
}

// New creates a sink writing to w.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// SetBroadcast registers a secondary target that receives a copy of every
// payload. The function must not block; slow consumers are its problem.
func (s *Sink) SetBroadcast(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = fn
}

func (s *Sink) emit(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	if s.broadcast != nil {
		s.broadcast(payload)
	}
	return nil
}

// WriteEventLine emits one parseable line for a detected event.
func (s *Sink) WriteEventLine(eventType, device string, power, delta float64) error {
	line := fmt.Sprintf("EVENT DETECTED: %s | Device: %s | Power: %.1fW | Delta: %.1fW\n",
		eventType, device, power, delta)
	return s.emit([]byte(line))
}

// WriteSignal emits a time-domain block: one "<time_s>,<value>" line per
// sample between the block's start and end markers.
func (s *Sink) WriteSignal(name string, samples []float64, sampleRate float64) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "---%s_START---\n", name)
	for i, v := range samples {
		fmt.Fprintf(&buf, "%.6f,%.6f\n", float64(i)/sampleRate, v)
	}
	fmt.Fprintf(&buf, "---%s_END---\n", name)
	return s.emit(buf.Bytes())
}

// WriteSpectrum emits a frequency-domain block: one "<freq_hz>,<mag_db>"
// line per bin. size is the transform size the bins came from, which
// fixes the bin spacing at sampleRate/size.
func (s *Sink) WriteSpectrum(name string, magDB []float64, sampleRate float64, size int) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "---%s_START---\n", name)
	for k, v := range magDB {
		fmt.Fprintf(&buf, "%.1f,%.6f\n", float64(k)*sampleRate/float64(size), v)
	}
	fmt.Fprintf(&buf, "---%s_END---\n", name)
	return s.emit(buf.Bytes())
}

// WriteComplete emits the terminator that marks a full spectral emission.
func (s *Sink) WriteComplete() error {
	return s.emit([]byte(completeMarker))
}
