// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/openwatt/nilmd/internal/dsp"
)

const (
	AppName       = "nilmd"
	ConfigType    = "yaml"
	DefaultConfig = `# NILM Detector Configuration

# Acquisition (the ADC front end)
device_index: -1        # -1 for default capture device
adc_sample_rate: 20000  # Raw sampling rate in Hz
channels: 2             # Sensor channels, fixed pair (voltage, current proxy)
buffer_size: 256        # Frames per acquisition callback

# Event detection pipeline
target_rate: 10         # Decimated rate in Hz
decimation_factor: 2000 # Raw samples averaged per decimated sample
                        # (must equal adc_sample_rate / target_rate)
event_threshold_w: 50.0 # Filtered-power magnitude that triggers an event (W)
debounce_ms: 2000       # Minimum spacing between events (ms)
power_buffer_size: 100  # Baseline ring capacity (decimated samples)
power_scale: 100.0      # Calibration scale for power = |v1 * v2 * scale|
filter_preset: default  # High-pass coefficient preset: default or alt

# Spectral analyzer mode
fft_size: 512             # Analysis window, power of two
analyzer_sample_rate: 10000 # Raw rate in analyzer mode (Hz)
lowpass_cutoff_hz: 1000   # Display smoothing filter cutoff (Hz)
lowpass_q: 0.707          # Smoothing filter Q
send_interval: 100        # Analysis cycles between full spectral emissions

# Diagnostics
stream_addr: ""         # host:port for the WebSocket stream ("" disables)
debug: false            # Enable debug logging
`
)

// Settings holds all application configuration
type Settings struct {
	// Acquisition
	DeviceIndex   int `mapstructure:"device_index"`
	ADCSampleRate int `mapstructure:"adc_sample_rate"`
	Channels      int `mapstructure:"channels"`
	BufferSize    int `mapstructure:"buffer_size"`

	// Event detection pipeline
	TargetRate       int     `mapstructure:"target_rate"`
	DecimationFactor int     `mapstructure:"decimation_factor"`
	EventThresholdW  float64 `mapstructure:"event_threshold_w"`
	DebounceMs       int     `mapstructure:"debounce_ms"`
	PowerBufferSize  int     `mapstructure:"power_buffer_size"`
	PowerScale       float64 `mapstructure:"power_scale"`
	FilterPreset     string  `mapstructure:"filter_preset"`

	// Spectral analyzer
	FFTSize            int     `mapstructure:"fft_size"`
	AnalyzerSampleRate int     `mapstructure:"analyzer_sample_rate"`
	LowpassCutoffHz    float64 `mapstructure:"lowpass_cutoff_hz"`
	LowpassQ           float64 `mapstructure:"lowpass_q"`
	SendInterval       int     `mapstructure:"send_interval"`

	// Diagnostics
	StreamAddr string `mapstructure:"stream_addr"`
	Debug      bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/nilmd/
func Init() error {
	viper.SetDefault("device_index", -1)
	viper.SetDefault("adc_sample_rate", 20000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("buffer_size", 256)
	viper.SetDefault("target_rate", 10)
	viper.SetDefault("decimation_factor", 2000)
	viper.SetDefault("event_threshold_w", 50.0)
	viper.SetDefault("debounce_ms", 2000)
	viper.SetDefault("power_buffer_size", 100)
	viper.SetDefault("power_scale", 100.0)
	viper.SetDefault("filter_preset", dsp.PresetDefault)
	viper.SetDefault("fft_size", 512)
	viper.SetDefault("analyzer_sample_rate", 10000)
	viper.SetDefault("lowpass_cutoff_hz", 1000.0)
	viper.SetDefault("lowpass_q", 0.707)
	viper.SetDefault("send_interval", 100)
	viper.SetDefault("stream_addr", "")
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/nilmd/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Acquisition
	if s.ADCSampleRate < 1000 || s.ADCSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("adc_sample_rate must be between 1000 and 192000 Hz, got %d", s.ADCSampleRate))
	}
	if s.Channels != 2 {
		// The power path pairs channel 1 (voltage) with channel 2 (current proxy).
		errs = append(errs, fmt.Errorf("channels must be 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}

	// Pipeline
	if s.TargetRate < 1 {
		errs = append(errs, fmt.Errorf("target_rate must be positive, got %d", s.TargetRate))
	}
	if s.DecimationFactor < 1 {
		errs = append(errs, fmt.Errorf("decimation_factor must be positive, got %d", s.DecimationFactor))
	} else if s.TargetRate > 0 && s.ADCSampleRate != s.TargetRate*s.DecimationFactor {
		errs = append(errs, fmt.Errorf("adc_sample_rate (%d) must equal target_rate (%d) * decimation_factor (%d)",
			s.ADCSampleRate, s.TargetRate, s.DecimationFactor))
	}
	if s.EventThresholdW <= 0 {
		errs = append(errs, fmt.Errorf("event_threshold_w must be positive, got %v", s.EventThresholdW))
	}
	if s.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("debounce_ms must be non-negative, got %d", s.DebounceMs))
	}
	if s.PowerBufferSize < 1 {
		errs = append(errs, fmt.Errorf("power_buffer_size must be positive, got %d", s.PowerBufferSize))
	}
	if s.PowerScale <= 0 {
		errs = append(errs, fmt.Errorf("power_scale must be positive, got %v", s.PowerScale))
	}
	if _, err := dsp.HighpassPreset(s.FilterPreset); err != nil {
		errs = append(errs, fmt.Errorf("filter_preset %q: %w", s.FilterPreset, err))
	}

	// Analyzer
	if s.FFTSize < 32 || s.FFTSize > 65536 {
		errs = append(errs, fmt.Errorf("fft_size must be between 32 and 65536, got %d", s.FFTSize))
	} else if s.FFTSize&(s.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("fft_size must be a power of 2, got %d", s.FFTSize))
	}
	if s.AnalyzerSampleRate < 1000 || s.AnalyzerSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("analyzer_sample_rate must be between 1000 and 192000 Hz, got %d", s.AnalyzerSampleRate))
	}
	if s.LowpassQ <= 0 {
		errs = append(errs, fmt.Errorf("lowpass_q must be positive, got %v", s.LowpassQ))
	}
	if s.SendInterval < 1 {
		errs = append(errs, fmt.Errorf("send_interval must be positive, got %d", s.SendInterval))
	}

	// Nyquist check: the smoothing cutoff must be below half the rate
	if s.LowpassCutoffHz <= 0 || s.LowpassCutoffHz >= float64(s.AnalyzerSampleRate)/2 {
		errs = append(errs, fmt.Errorf("lowpass_cutoff_hz (%v Hz) must be positive and below the Nyquist frequency (%v Hz)",
			s.LowpassCutoffHz, float64(s.AnalyzerSampleRate)/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
