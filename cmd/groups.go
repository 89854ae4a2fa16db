package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var groupsRefresh bool

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List device groups",
	Long:  "List device groups from the local copy. When nothing is stored yet, or with --refresh, the groups are fetched first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() { groupsRefresh = false }()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		if groupsRefresh {
			if _, err := a.cache.FetchDeviceGroups(cmd.Context()); err != nil {
				return err
			}
		} else if err := a.cache.Boot(cmd.Context()); err != nil {
			return err
		}

		snap := a.cache.Snapshot()
		if len(snap.Groups) == 0 {
			cmd.Println("No device groups")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tDEVICES\tHISTORY")
		for _, g := range snap.Groups {
			fmt.Fprintf(w, "%s\t%d\t%d\n", g.Table, len(g.Devices.Rows), len(g.History.Rows))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if snap.FromCache() {
			cmd.Println("(cached copy, run 'maintsync sync' to refresh)")
		}
		return nil
	},
}

func init() {
	groupsCmd.Flags().BoolVar(&groupsRefresh, "refresh", false, "Fetch groups from the server first")
	rootCmd.AddCommand(groupsCmd)
}
