// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/openwatt/nilmd/internal/dsp"
)

func resetViper() {
	viper.Reset()
}

func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	return tmpDir
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()

	tmpDir := isolateHome(t)

	// Create the config file so Init doesn't try to create one
	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"device_index", -1},
		{"adc_sample_rate", 20000},
		{"channels", 2},
		{"buffer_size", 256},
		{"target_rate", 10},
		{"decimation_factor", 2000},
		{"event_threshold_w", 50.0},
		{"debounce_ms", 2000},
		{"power_buffer_size", 100},
		{"power_scale", 100.0},
		{"filter_preset", dsp.PresetDefault},
		{"fft_size", 512},
		{"analyzer_sample_rate", 10000},
		{"lowpass_cutoff_hz", 1000.0},
		{"lowpass_q", 0.707},
		{"send_interval", 100},
		{"stream_addr", ""},
		{"debug", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()

	tmpDir := isolateHome(t)

	// Don't create config - let Init create it
	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()

	isolateHome(t)

	tmpWork := t.TempDir()
	local := strings.Replace(DefaultConfig, "event_threshold_w: 50.0", "event_threshold_w: 75.0", 1)
	if err := os.WriteFile(filepath.Join(tmpWork, ".config.yaml"), []byte(local), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpWork); err != nil {
		t.Fatalf("failed to change working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origWd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetFloat64("event_threshold_w"); got != 75.0 {
		t.Errorf("event_threshold_w = %v, want 75.0 from local .config.yaml", got)
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()

	tmpDir := isolateHome(t)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("not: [valid: yaml"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err == nil {
		t.Error("Init() should fail on malformed yaml")
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()

	tmpDir := isolateHome(t)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if s.ADCSampleRate != 20000 {
		t.Errorf("ADCSampleRate = %d, want 20000", s.ADCSampleRate)
	}
	if s.TargetRate != 10 {
		t.Errorf("TargetRate = %d, want 10", s.TargetRate)
	}
	if s.DecimationFactor != 2000 {
		t.Errorf("DecimationFactor = %d, want 2000", s.DecimationFactor)
	}
	if s.EventThresholdW != 50.0 {
		t.Errorf("EventThresholdW = %v, want 50.0", s.EventThresholdW)
	}
	if s.FilterPreset != dsp.PresetDefault {
		t.Errorf("FilterPreset = %q, want %q", s.FilterPreset, dsp.PresetDefault)
	}
	if s.FFTSize != 512 {
		t.Errorf("FFTSize = %d, want 512", s.FFTSize)
	}
}

func TestGet_RejectsInvalidSettings(t *testing.T) {
	resetViper()

	tmpDir := isolateHome(t)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	bad := strings.Replace(DefaultConfig, "event_threshold_w: 50.0", "event_threshold_w: -1.0", 1)
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(bad), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := Get(); err == nil {
		t.Error("Get() should reject a negative event threshold")
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	custom := []byte("debug: true\n")
	if err := os.WriteFile(configFile, custom, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := ensureConfigExists(tmpDir); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	got, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(got) != string(custom) {
		t.Error("ensureConfigExists() overwrote an existing config file")
	}
}

func TestConstants(t *testing.T) {
	if AppName != "nilmd" {
		t.Errorf("AppName = %q, want %q", AppName, "nilmd")
	}
	if ConfigType != "yaml" {
		t.Errorf("ConfigType = %q, want %q", ConfigType, "yaml")
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	keys := []string{
		"device_index:",
		"adc_sample_rate:",
		"channels:",
		"buffer_size:",
		"target_rate:",
		"decimation_factor:",
		"event_threshold_w:",
		"debounce_ms:",
		"power_buffer_size:",
		"power_scale:",
		"filter_preset:",
		"fft_size:",
		"analyzer_sample_rate:",
		"lowpass_cutoff_hz:",
		"lowpass_q:",
		"send_interval:",
		"stream_addr:",
		"debug:",
	}

	for _, key := range keys {
		if !strings.Contains(DefaultConfig, key) {
			t.Errorf("DefaultConfig missing key %q", key)
		}
	}
}

func validSettings() Settings {
	return Settings{
		DeviceIndex:        -1,
		ADCSampleRate:      20000,
		Channels:           2,
		BufferSize:         256,
		TargetRate:         10,
		DecimationFactor:   2000,
		EventThresholdW:    50.0,
		DebounceMs:         2000,
		PowerBufferSize:    100,
		PowerScale:         100.0,
		FilterPreset:       dsp.PresetDefault,
		FFTSize:            512,
		AnalyzerSampleRate: 10000,
		LowpassCutoffHz:    1000.0,
		LowpassQ:           0.707,
		SendInterval:       100,
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	s := validSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	alt := validSettings()
	alt.FilterPreset = dsp.PresetAlt
	if err := alt.Validate(); err != nil {
		t.Errorf("Validate() with alt preset error = %v, want nil", err)
	}
}

func TestSettings_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "sample rate too low",
			mutate:  func(s *Settings) { s.ADCSampleRate = 500 },
			wantErr: "adc_sample_rate",
		},
		{
			name:    "too many channels",
			mutate:  func(s *Settings) { s.Channels = 3 },
			wantErr: "channels",
		},
		{
			name:    "single channel cannot form power pairs",
			mutate:  func(s *Settings) { s.Channels = 1 },
			wantErr: "channels",
		},
		{
			name:    "buffer too small",
			mutate:  func(s *Settings) { s.BufferSize = 16 },
			wantErr: "buffer_size",
		},
		{
			name:    "zero target rate",
			mutate:  func(s *Settings) { s.TargetRate = 0 },
			wantErr: "target_rate",
		},
		{
			name:    "zero decimation factor",
			mutate:  func(s *Settings) { s.DecimationFactor = 0 },
			wantErr: "decimation_factor",
		},
		{
			name:    "rates inconsistent with factor",
			mutate:  func(s *Settings) { s.DecimationFactor = 1000 },
			wantErr: "must equal target_rate",
		},
		{
			name:    "negative threshold",
			mutate:  func(s *Settings) { s.EventThresholdW = -5 },
			wantErr: "event_threshold_w",
		},
		{
			name:    "negative debounce",
			mutate:  func(s *Settings) { s.DebounceMs = -1 },
			wantErr: "debounce_ms",
		},
		{
			name:    "zero ring capacity",
			mutate:  func(s *Settings) { s.PowerBufferSize = 0 },
			wantErr: "power_buffer_size",
		},
		{
			name:    "zero power scale",
			mutate:  func(s *Settings) { s.PowerScale = 0 },
			wantErr: "power_scale",
		},
		{
			name:    "unknown filter preset",
			mutate:  func(s *Settings) { s.FilterPreset = "chebyshev" },
			wantErr: "filter_preset",
		},
		{
			name:    "fft size not power of two",
			mutate:  func(s *Settings) { s.FFTSize = 500 },
			wantErr: "power of 2",
		},
		{
			name:    "fft size too small",
			mutate:  func(s *Settings) { s.FFTSize = 16 },
			wantErr: "fft_size",
		},
		{
			name:    "analyzer rate too high",
			mutate:  func(s *Settings) { s.AnalyzerSampleRate = 400000 },
			wantErr: "analyzer_sample_rate",
		},
		{
			name:    "zero lowpass q",
			mutate:  func(s *Settings) { s.LowpassQ = 0 },
			wantErr: "lowpass_q",
		},
		{
			name:    "zero send interval",
			mutate:  func(s *Settings) { s.SendInterval = 0 },
			wantErr: "send_interval",
		},
		{
			name:    "cutoff above nyquist",
			mutate:  func(s *Settings) { s.LowpassCutoffHz = 6000 },
			wantErr: "lowpass_cutoff_hz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := validSettings()
	s.EventThresholdW = 0
	s.FilterPreset = "nope"
	s.SendInterval = 0

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want joined errors")
	}
	for _, want := range []string{"event_threshold_w", "filter_preset", "send_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}
