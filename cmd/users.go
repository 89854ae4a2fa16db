package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Administer accounts",
	Long:  "List accounts, change roles and approve or lock accounts. Requires an admin session.",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		users, err := a.auth.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			cmd.Println("No users")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tACTIVE")
		for _, u := range users {
			active := "-"
			if u.Active != nil {
				active = strconv.FormatBool(*u.Active)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.UserID, u.Username, u.FullName, u.Role, active)
		}
		return w.Flush()
	},
}

var usersRoleCmd = &cobra.Command{
	Use:   "role <user-id> <admin|user>",
	Short: "Change the role of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		if err := a.auth.SetUserRole(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("User %s is now %s\n", args[0], args[1])
		return nil
	},
}

var usersActiveCmd = &cobra.Command{
	Use:   "active <user-id> <true|false>",
	Short: "Approve or lock an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q, expected true or false", args[1])
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		if err := a.auth.SetUserActive(cmd.Context(), args[0], active); err != nil {
			return err
		}
		if active {
			cmd.Printf("User %s activated\n", args[0])
		} else {
			cmd.Printf("User %s locked\n", args[0])
		}
		return nil
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRoleCmd)
	usersCmd.AddCommand(usersActiveCmd)
	rootCmd.AddCommand(usersCmd)
}
