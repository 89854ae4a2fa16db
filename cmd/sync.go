package main

import (
	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download all device groups",
	Long:  "Replace the local copy of the device groups with the server's current data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		if err := a.cache.RefreshAllData(cmd.Context()); err != nil {
			return err
		}
		a.track(analytics.EventSync)

		groups := a.cache.Groups()
		cmd.Printf("Synced %d group(s), %d device(s)\n", len(groups), countDevices(groups))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func countDevices(groups []model.DeviceGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Devices.Rows)
	}
	return n
}
