// internal/nilm/pipeline.go
package nilm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/openwatt/nilmd/internal/dsp"
	"github.com/openwatt/nilmd/internal/sink"
)

var (
	// ErrInvalidSampleRate indicates the raw sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrHighpassRequired indicates the pipeline needs a high-pass cascade
	ErrHighpassRequired = errors.New("high-pass coefficients are required")
)

// Calibration converts a pair of decimated channel voltages into
// instantaneous power in watts. The formula is sensor-dependent, so it is
// injected rather than fixed.
type Calibration func(v1, v2 float64) float64

// ScaledProduct is the placeholder calibration |v1 * v2 * scale|, for a
// setup where channel 1 carries voltage and channel 2 a current proxy.
func ScaledProduct(scale float64) Calibration {
	return func(v1, v2 float64) float64 {
		return math.Abs(v1 * v2 * scale)
	}
}

// heartbeatInterval is the coarse liveness signal of the control loop.
const heartbeatInterval = 10 * time.Second

// Config holds the pipeline parameters. All values come from the
// application config file.
type Config struct {
	// SampleRate is the raw acquisition rate in Hz (from config: adc_sample_rate)
	SampleRate float64
	// DecimationFactor is the raw-to-decimated ratio (from config: decimation_factor)
	DecimationFactor int
	// ThresholdWatts is the event trigger level (from config: event_threshold_w)
	ThresholdWatts float64
	// Debounce is the minimum spacing between events (from config: debounce_ms)
	Debounce time.Duration
	// RingCapacity sizes the baseline power ring (from config: power_buffer_size)
	RingCapacity int
	// StatusInterval is the number of decimated samples between status
	// log lines; 0 selects the default of 100
	StatusInterval int
	// Highpass is the ordered section set of the event-detection filter
	Highpass []dsp.Coefficients
	// Table is the ordered classification table; nil selects the default
	Table []DeviceRange
	// Calibration converts channel voltages to watts; nil selects
	// ScaledProduct(100)
	Calibration Calibration
}

// decimated is one completed decimation window on its sample clock.
type decimated struct {
	v1, v2 float64
	at     time.Duration
}

// Pipeline owns every stage of the event path: decimator, calibration,
// high-pass cascade, baseline ring, detector and classifier. The
// acquisition side calls Accumulate; the processing task runs Run. The
// two sides meet at a capacity-1 coalescing channel: Accumulate performs
// a non-blocking send, Run a blocking receive, so at most one decimated
// sample is ever pending and a slow consumer only ever skips windows,
// it never reads a half-written one.
//
// Single-writer rule: only the acquisition goroutine may call Accumulate,
// and only the processing goroutine may call Run. The stages themselves
// are unlocked; correctness relies on this producer-signal-consumer
// ordering, not on a mutex.
type Pipeline struct {
	cfg Config

	dec      *Decimator
	highpass *dsp.Cascade
	ring     *PowerRing
	det      *Detector
	cls      *Classifier
	cal      Calibration

	ready chan decimated

	out *sink.Sink
	log *slog.Logger

	windows  int64 // decimated windows emitted by the acquisition side
	baseline float64
	dropped  atomic.Int64
}

// NewPipeline wires the event-detection pipeline.
func NewPipeline(cfg Config, out *sink.Sink, logger *slog.Logger) (*Pipeline, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(cfg.Highpass) == 0 {
		return nil, ErrHighpassRequired
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 100
	}

	dec, err := NewDecimator(2, cfg.DecimationFactor)
	if err != nil {
		return nil, err
	}
	highpass, err := dsp.NewCascade(cfg.Highpass)
	if err != nil {
		return nil, err
	}
	ring, err := NewPowerRing(cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	det, err := NewDetector(DetectorConfig{
		ThresholdWatts: cfg.ThresholdWatts,
		Debounce:       cfg.Debounce,
	})
	if err != nil {
		return nil, err
	}

	cal := cfg.Calibration
	if cal == nil {
		cal = ScaledProduct(100)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:      cfg,
		dec:      dec,
		highpass: highpass,
		ring:     ring,
		det:      det,
		cls:      NewClassifier(cfg.Table),
		cal:      cal,
		ready:    make(chan decimated, 1),
		out:      out,
		log:      logger,
	}, nil
}

// Accumulate consumes a burst of interleaved two-channel raw samples from
// the acquisition driver. Completed decimation windows are handed to the
// processing task through the coalescing channel; if the previous window
// has not been consumed yet the new one is dropped, never queued.
// Must only be called from the acquisition goroutine.
func (p *Pipeline) Accumulate(interleaved []float32) error {
	for i := 0; i+1 < len(interleaved); i += 2 {
		means, done, err := p.dec.PushFrame([]float64{
			float64(interleaved[i]),
			float64(interleaved[i+1]),
		})
		if err != nil {
			return err
		}
		if !done {
			continue
		}

		p.windows++
		s := decimated{v1: means[0], v2: means[1], at: p.streamTime(p.windows)}
		select {
		case p.ready <- s:
		default:
			p.dropped.Add(1)
		}
	}
	return nil
}

// streamTime converts a decimated window count to stream time.
func (p *Pipeline) streamTime(window int64) time.Duration {
	secs := float64(window) * float64(p.cfg.DecimationFactor) / p.cfg.SampleRate
	return time.Duration(secs * float64(time.Second))
}

// Run is the processing task: it blocks on the ready channel, pushes each
// decimated sample through the power, filter, baseline and detection
// stages and emits event lines through the sink. It returns when ctx is
// cancelled. Must only be called from one goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var processed int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			p.log.Info("pipeline running",
				"processed", processed,
				"dropped", p.dropped.Load(),
				"baseline_w", p.baseline)
		case s := <-p.ready:
			processed++
			if err := p.process(s, processed); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) process(s decimated, processed int64) error {
	power := p.cal(s.v1, s.v2)
	filtered := p.highpass.Apply(power)

	p.ring.Push(power)
	if p.ring.Full() {
		p.baseline = p.ring.Mean()
	}

	if typ, fired := p.det.Process(filtered, s.at); fired {
		device, name := p.cls.Classify(filtered)
		e := Event{
			Timestamp:  s.at,
			Type:       typ,
			DeltaPower: filtered,
			Power:      power,
			Baseline:   p.baseline,
			Device:     device,
			DeviceName: name,
		}
		p.log.Info("event detected",
			"type", e.Type.String(),
			"device", e.DeviceName,
			"power_w", e.Power,
			"delta_w", e.DeltaPower,
			"baseline_w", e.Baseline,
			"at", e.Timestamp)
		if err := p.out.WriteEventLine(e.Type.String(), e.DeviceName, e.Power, e.DeltaPower); err != nil {
			return err
		}
	}

	if processed%int64(p.cfg.StatusInterval) == 0 {
		p.log.Info("power status",
			"power_w", power,
			"baseline_w", p.baseline,
			"filtered_w", filtered)
	}
	return nil
}

// Baseline returns the latest moving-mean power, 0 until the ring has
// filled once.
func (p *Pipeline) Baseline() float64 {
	return p.baseline
}

// Dropped returns how many completed windows were discarded because the
// processing task had not consumed the previous one.
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Reset re-arms the pipeline after a configuration change: filter state,
// ring, detector and any half-accumulated decimation window are cleared.
// Coefficients are untouched. Callers must ensure neither task is running.
func (p *Pipeline) Reset() {
	p.dec.Reset()
	p.highpass.Reset()
	p.ring.Reset()
	p.det.Reset()
	p.baseline = 0
	p.windows = 0
}
