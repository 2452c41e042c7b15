package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/openwatt/nilmd/internal/dsp"
)

func resetViperForTest() {
	viper.Reset()
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
	}{
		{"device", "d"},
		{"threshold", "t"},
		{"debounce", ""},
		{"preset", "p"},
		{"stream", ""},
		{"debug", "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Errorf("flag %q not found", tt.name)
				return
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "nilmd" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "nilmd")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	want := []string{"detect", "analyze", "devices"}

	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			for _, c := range rootCmd.Commands() {
				if c.Name() == name {
					if c.Short == "" {
						t.Errorf("subcommand %q has no short description", name)
					}
					return
				}
			}
			t.Errorf("subcommand %q not registered", name)
		})
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	resetViperForTest()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--help"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"nilmd", "--device", "--threshold", "detect", "analyze", "devices"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		defaultValue string
	}{
		{"device", "-1"},
		{"threshold", "50"},
		{"debounce", "2000"},
		{"preset", dsp.PresetDefault},
		{"stream", ""},
		{"debug", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
		})
	}
}

func TestRootCmd_FlagDescriptions(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	flagsToCheck := []string{"device", "threshold", "debounce", "preset", "stream", "debug"}

	for _, name := range flagsToCheck {
		t.Run(name, func(t *testing.T) {
			flag := flags.Lookup(name)
			if flag == nil {
				t.Fatalf("flag %q not found", name)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", name)
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	quiet := newLogger(false)
	if quiet.Enabled(nil, -4) {
		t.Error("info logger should not enable debug level")
	}
	if !quiet.Enabled(nil, 0) {
		t.Error("info logger should enable info level")
	}

	verbose := newLogger(true)
	if !verbose.Enabled(nil, -4) {
		t.Error("debug logger should enable debug level")
	}
}

// writeTestConfig isolates the config search path in a temp home and
// plants the given yaml there.
func writeTestConfig(t *testing.T, yaml string) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	configDir := filepath.Join(tmpDir, ".config", "nilmd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestRunDetect_InvalidConfig(t *testing.T) {
	resetViperForTest()

	writeTestConfig(t, "event_threshold_w: -5\n")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"detect"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for invalid threshold, got nil")
	}
	if err != nil && !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}

func TestRunDetect_UnknownPreset(t *testing.T) {
	resetViperForTest()

	writeTestConfig(t, "filter_preset: elliptic\n")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"detect"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for unknown preset, got nil")
	}
}

func TestRunAnalyze_InvalidConfig(t *testing.T) {
	resetViperForTest()

	writeTestConfig(t, "fft_size: 500\n")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"analyze"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for invalid config, got nil")
	}
}
