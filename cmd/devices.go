// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openwatt/nilmd/internal/adc"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available capture devices",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	capture := adc.New(adc.DefaultConfig())
	if err := capture.Init(); err != nil {
		return fmt.Errorf("adc init: %w", err)
	}
	defer capture.Close()

	devices, err := capture.Devices()
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no capture devices found")
		return nil
	}

	for i, d := range devices {
		marker := " "
		if d.IsDefault != 0 {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %2d: %s\n", marker, i, d.Name())
	}
	return nil
}
