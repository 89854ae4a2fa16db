package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equiptrack/maintsync/internal/analytics"
)

var logoutLocal bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Long:  "Sign out of the maintenance backend by removing the stored session token. The server is told unless --local is set.",
	RunE:  runLogout,
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutLocal, "local", false, "Only clear the local session")
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	defer func() { logoutLocal = false }()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.auth.Hydrate(cmd.Context()); err != nil {
		return err
	}
	if err := a.auth.Logout(cmd.Context(), "user", !logoutLocal); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	a.track(analytics.EventLogout)
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully. Session removed.")
	return nil
}
