// internal/nilm/detector.go
package nilm

import (
	"errors"
	"time"
)

var (
	// ErrInvalidThreshold indicates the event threshold must be positive
	ErrInvalidThreshold = errors.New("event threshold must be positive")
	// ErrInvalidDebounce indicates the debounce window must be non-negative
	ErrInvalidDebounce = errors.New("debounce window must be non-negative")
)

// EventType is the polarity of a detected power event.
type EventType int

const (
	// EventOff means a load switched off (filtered delta negative or zero)
	EventOff EventType = iota
	// EventOn means a load switched on (filtered delta positive)
	EventOn
)

// String returns "ON" or "OFF".
func (t EventType) String() string {
	if t == EventOn {
		return "ON"
	}
	return "OFF"
}

// Event is one detected and classified power transition. Immutable once
// created.
type Event struct {
	// Timestamp is the position on the decimated sample clock
	Timestamp time.Duration
	// Type is the event polarity
	Type EventType
	// DeltaPower is the signed high-pass filtered power step in watts
	DeltaPower float64
	// Power is the instantaneous power at the time of the event
	Power float64
	// Baseline is the moving mean power, 0 until the ring has filled once
	Baseline float64
	// Device and DeviceName are the classified category for |DeltaPower|
	Device     DeviceType
	DeviceName string
}

// DetectorConfig holds the trigger parameters. All values come from the
// application config file.
type DetectorConfig struct {
	// ThresholdWatts is the filtered-power magnitude that must be
	// exceeded for an event (from config: event_threshold_w)
	ThresholdWatts float64
	// Debounce is the minimum spacing between fired events, measured
	// from the last fired event (from config: debounce_ms)
	Debounce time.Duration
}

// Detector is the debounced threshold state machine. Timestamps are
// supplied by the caller from the decimated sample clock, which keeps the
// machine deterministic and independent of wall time.
//
// The debounce is absolute: once an event fires at time t, every
// threshold crossing before t+Debounce is ignored outright, with no
// timestamp update. Crossings during the window never extend it.
type Detector struct {
	config    DetectorConfig
	lastEvent time.Duration
	fired     bool
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.ThresholdWatts <= 0 {
		return nil, ErrInvalidThreshold
	}
	if cfg.Debounce < 0 {
		return nil, ErrInvalidDebounce
	}
	return &Detector{config: cfg}, nil
}

// Process feeds one high-pass filtered power value at the given stream
// time. It returns the event polarity and true when an event fires. The
// polarity follows the sign of the filtered value: strictly positive is
// ON, negative or exactly zero is OFF.
func (d *Detector) Process(filtered float64, now time.Duration) (EventType, bool) {
	if d.fired && now-d.lastEvent < d.config.Debounce {
		return EventOff, false
	}

	mag := filtered
	if mag < 0 {
		mag = -mag
	}
	if mag <= d.config.ThresholdWatts {
		return EventOff, false
	}

	d.lastEvent = now
	d.fired = true

	if filtered > 0 {
		return EventOn, true
	}
	return EventOff, true
}

// LastEvent returns the stream time of the last fired event and whether
// any event has fired yet.
func (d *Detector) LastEvent() (time.Duration, bool) {
	return d.lastEvent, d.fired
}

// Reset re-arms the detector: the debounce window and last-event record
// are cleared. Callers that also reset the filter cascade get a machine
// indistinguishable from a freshly constructed one.
func (d *Detector) Reset() {
	d.lastEvent = 0
	d.fired = false
}

// Config returns the detector configuration.
func (d *Detector) Config() DetectorConfig {
	return d.config
}
