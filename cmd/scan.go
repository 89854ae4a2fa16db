package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan <device-name>",
	Short: "Look up a scanned device code",
	Long:  "Resolve the device name encoded in a QR code against the local device groups and show its maintenance history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		if err := a.cache.Boot(cmd.Context()); err != nil {
			return err
		}

		name := args[0]
		res, ok := a.cache.FindDevice(name)
		if !ok {
			if _, err := model.ParseDeviceCode(name); err != nil {
				return err
			}
			return fmt.Errorf("device '%s' not found, run 'maintsync sync' and try again", name)
		}
		a.track(analytics.EventScan)

		cmd.Printf("Group: %s\n", res.Group)
		printDevice(cmd, res.Device)
		printHistory(cmd, res.History)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func printDevice(cmd *cobra.Command, d model.DeviceRow) {
	cmd.Printf("Device: %s\n", d.Name)
	if d.Type != "" {
		cmd.Printf("Type: %s\n", d.Type)
	}
	if d.Freq != "" {
		cmd.Printf("Frequency: %s\n", d.Freq)
	}
}

func printHistory(cmd *cobra.Command, rows []model.HistoryRow) {
	if len(rows) == 0 {
		cmd.Println("No maintenance history")
		return
	}
	cmd.Printf("History (%d):\n", len(rows))
	for _, h := range rows {
		cmd.Printf("  %s  %s\n", h.Date, h.Content)
	}
}
