package main

import (
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <device-name>",
	Short: "Fetch the maintenance history of a device",
	Long:  "Fetch the maintenance history of one device from the server, newest first.",
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

		rows, err := a.cache.FetchMaintenanceHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printHistory(cmd, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
