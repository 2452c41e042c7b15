// internal/analyzer/analyzer.go

// Package analyzer is the spectral characterization mode. It shares the
// acquisition stage with the event-detection pipeline but consumes raw
// (not decimated) samples: a fixed window is filled, low-pass filtered,
// Hann-windowed and transformed, and the resulting spectra are streamed
// in the delimited block format, rate-limited by a send interval.
package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openwatt/nilmd/internal/dsp"
	"github.com/openwatt/nilmd/internal/sink"
)

var (
	// ErrInvalidSampleRate indicates the analyzer rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidSendInterval indicates the send interval must be positive
	ErrInvalidSendInterval = errors.New("send interval must be positive")
	// ErrLowpassRequired indicates the analyzer needs a low-pass cascade
	ErrLowpassRequired = errors.New("low-pass coefficients are required")
)

// heartbeatInterval is the coarse liveness signal of the analysis loop.
const heartbeatInterval = 10 * time.Second

// Config holds the analyzer parameters. All values come from the
// application config file.
type Config struct {
	// WindowSize is the FFT size, a power of two (from config: fft_size)
	WindowSize int
	// SampleRate is the raw acquisition rate in Hz (from config:
	// analyzer_sample_rate)
	SampleRate float64
	// Lowpass is the ordered section set of the display smoothing filter
	Lowpass []dsp.Coefficients
	// SendInterval is the number of analysis cycles between full
	// spectral emissions (from config: send_interval)
	SendInterval int
	// StatusInterval is the number of cycles between window-average log
	// lines; 0 selects the default of 50
	StatusInterval int
}

// Analyzer runs one analysis cycle per filled raw window. Accumulate is
// the acquisition side, Run the processing task; they meet at a
// capacity-1 coalescing channel carrying a private copy of the completed
// window, so the processing task never observes a half-written buffer
// and skipped windows are dropped, not queued.
type Analyzer struct {
	cfg Config

	fft     *dsp.FFT
	lowpass *dsp.Cascade

	window []float64
	fill   int
	ready  chan []float64

	out *sink.Sink
	log *slog.Logger

	cycles  uint64
	dropped atomic.Uint64
}

// New wires the spectral analyzer.
func New(cfg Config, out *sink.Sink, logger *slog.Logger) (*Analyzer, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.SendInterval <= 0 {
		return nil, ErrInvalidSendInterval
	}
	if len(cfg.Lowpass) == 0 {
		return nil, ErrLowpassRequired
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 50
	}

	fft, err := dsp.NewFFT(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	lowpass, err := dsp.NewCascade(cfg.Lowpass)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		cfg:     cfg,
		fft:     fft,
		lowpass: lowpass,
		window:  make([]float64, cfg.WindowSize),
		ready:   make(chan []float64, 1),
		out:     out,
		log:     logger,
	}, nil
}

// Accumulate consumes a burst of channel-0 raw samples. Each time the
// window fills, a copy is handed to the processing task through the
// coalescing channel and filling restarts; if the previous window has
// not been consumed yet the new one is dropped.
// Must only be called from the acquisition goroutine.
func (a *Analyzer) Accumulate(samples []float32) {
	for _, v := range samples {
		a.window[a.fill] = float64(v)
		a.fill++
		if a.fill < len(a.window) {
			continue
		}
		a.fill = 0

		w := make([]float64, len(a.window))
		copy(w, a.window)
		select {
		case a.ready <- w:
		default:
			a.dropped.Add(1)
		}
	}
}

// Run is the processing task: it blocks on the ready channel and runs one
// analysis cycle per window. It returns when ctx is cancelled.
// Must only be called from one goroutine.
func (a *Analyzer) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			a.log.Info("analyzer running", "cycles", a.cycles, "dropped", a.dropped.Load())
		case w := <-a.ready:
			if err := a.Cycle(w); err != nil {
				return err
			}
		}
	}
}

// Cycle runs one analysis pass over a filled raw window: low-pass filter,
// transform both signals, and emit every SendInterval-th cycle. Exported
// so offline captures can be analyzed without the live loop.
func (a *Analyzer) Cycle(raw []float64) error {
	a.cycles++
	n := a.fft.Size()

	filtered := make([]float64, n)
	a.lowpass.ApplyBlock(filtered, raw)

	magRaw := make([]float64, n/2)
	magFiltered := make([]float64, n/2)
	if err := a.fft.MagnitudeDB(raw, magRaw); err != nil {
		return err
	}
	if err := a.fft.MagnitudeDB(filtered, magFiltered); err != nil {
		return err
	}

	if a.cycles%uint64(a.cfg.SendInterval) == 0 {
		a.log.Info("sending data packet", "packet", a.cycles/uint64(a.cfg.SendInterval))
		if err := a.emit(raw, filtered, magRaw, magFiltered); err != nil {
			return err
		}
	}

	if a.cycles%uint64(a.cfg.StatusInterval) == 0 {
		a.log.Info("window averages",
			"avg_original", mean(raw),
			"avg_filtered", mean(filtered))
	}
	return nil
}

// emit writes the four delimited blocks and the terminator.
func (a *Analyzer) emit(raw, filtered, magRaw, magFiltered []float64) error {
	rate := a.cfg.SampleRate
	n := a.fft.Size()

	if err := a.out.WriteSignal(sink.BlockSignalOriginal, raw, rate); err != nil {
		return err
	}
	if err := a.out.WriteSignal(sink.BlockSignalFiltered, filtered, rate); err != nil {
		return err
	}
	if err := a.out.WriteSpectrum(sink.BlockFFTOriginal, magRaw, rate, n); err != nil {
		return err
	}
	if err := a.out.WriteSpectrum(sink.BlockFFTFiltered, magFiltered, rate, n); err != nil {
		return err
	}
	return a.out.WriteComplete()
}

// Dropped returns how many filled windows were discarded because the
// processing task had not consumed the previous one. Safe to call from
// any goroutine; the counter is written from the acquisition side while
// the processing task runs.
func (a *Analyzer) Dropped() uint64 {
	return a.dropped.Load()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
