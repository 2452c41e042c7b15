// internal/adc/capture.go

// Package adc acquires the raw electrical signal. The front end is a
// multi-channel audio-capture device driven by malgo: the device's data
// callback plays the role of the hardware sampling interrupt, doing the
// minimum possible work before handing off to the acquisition task.
package adc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("adc capture not initialized")
	ErrAlreadyRunning = errors.New("adc capture already running")
	ErrNotRunning     = errors.New("adc capture not running")
)

// Config holds acquisition configuration.
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // raw rate in Hz (from config: adc_sample_rate)
	Channels    uint32 // sensor channels, interleaved in each burst
	BufferSize  uint32 // frames per driver callback
}

// DefaultConfig returns the acquisition defaults: 20 kHz, two channels
// (voltage and current proxy).
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  20000,
		Channels:    2,
		BufferSize:  256,
	}
}

// Capture owns the acquisition device. Raw bursts arrive on Frames as
// interleaved normalized samples; the sampling callback performs a
// non-blocking send, so if the acquisition task falls behind, bursts are
// dropped whole rather than queued without bound. No partial or garbage
// samples are ever delivered, a late burst is simply a skipped cycle.
type Capture struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	// Frames carries interleaved sample bursts to the acquisition task.
	Frames chan []float32
}

// New creates a capture instance. Call Init before Start.
func New(cfg Config) *Capture {
	return &Capture{
		config: cfg,
		Frames: make(chan []float32, 64),
	}
}

// Init initializes the acquisition backend. Failure here is fatal for
// the pipeline: without a working driver no valid sample can ever be
// produced.
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init adc context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// Devices returns the available capture devices.
func (c *Capture) Devices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins acquisition. The device callback converts each burst and
// performs a non-blocking send on Frames. Capture stops when ctx is
// cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BufferSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}

	if c.config.DeviceIndex >= 0 {
		devices, err := c.Devices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		// Empty reads are skipped: the cycle simply waits for the next
		// signal, nothing partial is accumulated.
		if len(inputSamples) == 0 {
			return
		}

		samples := decodeF32LE(inputSamples)

		select {
		case c.Frames <- samples:
		default:
			// Acquisition task too slow: drop the whole burst.
		}
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// Stop halts acquisition but keeps the backend initialized.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
	return nil
}

// Close releases all acquisition resources and closes Frames.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}
	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit adc context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	close(c.Frames)
	return nil
}

// IsRunning reports whether acquisition is active.
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// decodeF32LE converts a raw little-endian F32 byte stream into samples.
func decodeF32LE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
