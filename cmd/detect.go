// cmd/detect.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openwatt/nilmd/internal/adc"
	"github.com/openwatt/nilmd/internal/config"
	"github.com/openwatt/nilmd/internal/dsp"
	"github.com/openwatt/nilmd/internal/nilm"
	"github.com/openwatt/nilmd/internal/recovery"
	"github.com/openwatt/nilmd/internal/sink"
	"github.com/openwatt/nilmd/internal/stream"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the real-time power event detector",
	Long: `Continuously samples the sensor channels, decimates the power signal
and prints an event line for every appliance switch-on or switch-off
it detects. Runs until interrupted.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(settings.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := sink.New(cmd.OutOrStdout())

	if settings.StreamAddr != "" {
		hub := stream.NewHub(logger)
		out.SetBroadcast(hub.Broadcast)
		go func() {
			defer recovery.HandlePanic()
			if err := stream.Serve(ctx, settings.StreamAddr, hub, logger); err != nil {
				logger.Error("stream server stopped", "error", err)
			}
		}()
	}

	highpass, err := dsp.HighpassPreset(settings.FilterPreset)
	if err != nil {
		return fmt.Errorf("filter preset: %w", err)
	}
	if settings.Debug {
		if casc, err := dsp.NewCascade(highpass); err == nil {
			decimatedRate := float64(settings.ADCSampleRate) / float64(settings.DecimationFactor)
			logger.Debug("high-pass response",
				"preset", settings.FilterPreset,
				"dc_gain", casc.FrequencyResponse(0, decimatedRate),
				"passband_1hz", casc.FrequencyResponse(1, decimatedRate))
		}
	}

	pipe, err := nilm.NewPipeline(nilm.Config{
		SampleRate:       float64(settings.ADCSampleRate),
		DecimationFactor: settings.DecimationFactor,
		ThresholdWatts:   settings.EventThresholdW,
		Debounce:         time.Duration(settings.DebounceMs) * time.Millisecond,
		RingCapacity:     settings.PowerBufferSize,
		Highpass:         highpass,
		Calibration:      nilm.ScaledProduct(settings.PowerScale),
	}, out, logger)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	capture := adc.New(adc.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.ADCSampleRate),
		Channels:    uint32(settings.Channels),
		BufferSize:  uint32(settings.BufferSize),
	})
	if err := capture.Init(); err != nil {
		return fmt.Errorf("adc init: %w", err)
	}
	defer capture.Close()

	if err := capture.Start(ctx); err != nil {
		return fmt.Errorf("adc start: %w", err)
	}
	defer capture.Stop()

	// Acquisition task: drain raw bursts into the decimator. The frame
	// channel closes when the device is closed.
	go func() {
		defer recovery.HandlePanicFunc(func() {
			_ = capture.Stop()
		})
		for frames := range capture.Frames {
			if err := pipe.Accumulate(frames); err != nil {
				logger.Error("accumulate", "error", err)
				return
			}
		}
	}()

	logger.Info("detector running",
		"sample_rate", settings.ADCSampleRate,
		"decimation_factor", settings.DecimationFactor,
		"threshold_w", settings.EventThresholdW,
		"debounce_ms", settings.DebounceMs,
		"preset", settings.FilterPreset)

	if err := pipe.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("detector stopped")
	return nil
}
