package main

import (
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Long:  "Re-validate the stored session with the server and show the account it belongs to.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		res, err := a.auth.RefreshMe(cmd.Context())
		if err != nil {
			return err
		}

		u := res.User
		cmd.Printf("Username: %s\n", u.Username)
		if u.FullName != "" {
			cmd.Printf("Name: %s\n", u.FullName)
		}
		cmd.Printf("Role: %s\n", valueOrNone(u.Role))
		cmd.Printf("Session expires: %s\n", a.auth.Session().ExpiresAt.Local().Format("2006-01-02 15:04"))
		if !res.Verified {
			cmd.Println("(server unreachable, showing cached account)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
