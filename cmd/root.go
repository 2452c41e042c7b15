// cmd/root.go
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openwatt/nilmd/internal/config"
	"github.com/openwatt/nilmd/internal/dsp"
)

var rootCmd = &cobra.Command{
	Use:   "nilmd",
	Short: "Non-intrusive load monitor for household power lines",
	Long: `A real-time power event detector. It samples a two-channel current
sensor, decimates and filters the power signal, and reports appliance
switch-on and switch-off events with a device classification.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "capture device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("threshold", "t", 50.0, "event threshold in watts")
	rootCmd.PersistentFlags().Int("debounce", 2000, "minimum spacing between events in ms")
	rootCmd.PersistentFlags().StringP("preset", "p", dsp.PresetDefault, "high-pass filter preset (default or alt)")
	rootCmd.PersistentFlags().String("stream", "", "WebSocket stream address, host:port (empty disables)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("event_threshold_w", rootCmd.PersistentFlags().Lookup("threshold"))
	viper.BindPFlag("debounce_ms", rootCmd.PersistentFlags().Lookup("debounce"))
	viper.BindPFlag("filter_preset", rootCmd.PersistentFlags().Lookup("preset"))
	viper.BindPFlag("stream_addr", rootCmd.PersistentFlags().Lookup("stream"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the application logger. Log lines go to stderr so
// the detector's data protocol on stdout stays machine-parseable.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
