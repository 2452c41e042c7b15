// cmd/analyze.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openwatt/nilmd/internal/adc"
	"github.com/openwatt/nilmd/internal/analyzer"
	"github.com/openwatt/nilmd/internal/config"
	"github.com/openwatt/nilmd/internal/dsp"
	"github.com/openwatt/nilmd/internal/recovery"
	"github.com/openwatt/nilmd/internal/sink"
	"github.com/openwatt/nilmd/internal/stream"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the spectral analyzer",
	Long: `Captures one sensor channel and periodically emits the raw and
smoothed signal windows together with their spectra, in the block
format downstream tooling parses. Runs until interrupted.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	lowpass := dsp.LowpassDesign(settings.LowpassCutoffHz, float64(settings.AnalyzerSampleRate), settings.LowpassQ)

	an, err := analyzer.New(analyzer.Config{
		WindowSize:   settings.FFTSize,
		SampleRate:   float64(settings.AnalyzerSampleRate),
		Lowpass:      []dsp.Coefficients{lowpass},
		SendInterval: settings.SendInterval,
	}, out, logger)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}

	capture := adc.New(adc.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.AnalyzerSampleRate),
		Channels:    1,
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

	go func() {
		defer recovery.HandlePanicFunc(func() {
			_ = capture.Stop()
		})
		for frames := range capture.Frames {
			an.Accumulate(frames)
		}
	}()

	logger.Info("analyzer running",
		"sample_rate", settings.AnalyzerSampleRate,
		"fft_size", settings.FFTSize,
		"lowpass_cutoff_hz", settings.LowpassCutoffHz,
		"send_interval", settings.SendInterval)

	if err := an.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("analyzer stopped")
	return nil
}
